// Package registry keeps shared building facts that several services read: the building
// type catalog and the latest known runner and land polygon of each building.
package registry

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/serenissima/contracts-gateway/internal/model"
)

type BuildingType struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	SubCategory string `yaml:"sub_category"`
}

type Catalog struct {
	BuildingTypes []BuildingType `yaml:"building_types"`
}

func LoadCatalog(path string) (Catalog, error) {
	cfg := defaultCatalog()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var loaded Catalog
	if err := yaml.Unmarshal(b, &loaded); err != nil {
		return cfg, fmt.Errorf("building types: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return cfg, fmt.Errorf("building types: %w", err)
	}
	return loaded, nil
}

func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.BuildingTypes))
	for i, bt := range c.BuildingTypes {
		key := strings.TrimSpace(bt.Type)
		if key == "" {
			return fmt.Errorf("entry %d: type is required", i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate type %q", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func defaultCatalog() Catalog {
	return Catalog{BuildingTypes: []BuildingType{
		{Type: "theater", Name: "Theater", Category: "public_service", SubCategory: "entertainment"},
		{Type: "small_warehouse", Name: "Small Warehouse", Category: "business", SubCategory: "storage"},
		{Type: "bakery", Name: "Bakery", Category: "business", SubCategory: "food_processing"},
		{Type: "market_stall", Name: "Market Stall", Category: "business", SubCategory: "retail_shops"},
		{Type: "canal_house", Name: "Canal House", Category: "home", SubCategory: "housing"},
		{Type: "masons_lodge", Name: "Mason's Lodge", Category: "business", SubCategory: "construction"},
	}}
}

// Registry replaces ad hoc process-wide state with one shared, lock-guarded value that
// is passed to whoever needs it.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]BuildingType
	runBy    map[string]string
	polygons map[string]model.Land
}

func New(catalog Catalog) *Registry {
	r := &Registry{
		types:    make(map[string]BuildingType, len(catalog.BuildingTypes)),
		runBy:    make(map[string]string),
		polygons: make(map[string]model.Land),
	}
	for _, bt := range catalog.BuildingTypes {
		r.types[strings.TrimSpace(bt.Type)] = bt
	}
	return r
}

func (r *Registry) BuildingType(typ string) (BuildingType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bt, ok := r.types[typ]
	return bt, ok
}

// Classify fills missing category fields of b from the catalog.
func (r *Registry) Classify(b model.Building) model.Building {
	bt, ok := r.BuildingType(b.Type)
	if !ok {
		return b
	}
	if b.Category == "" {
		b.Category = bt.Category
	}
	if b.SubCategory == "" {
		b.SubCategory = bt.SubCategory
	}
	return b
}

func (r *Registry) SetRunBy(buildingID, runBy string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if runBy == "" {
		delete(r.runBy, buildingID)
		return
	}
	r.runBy[buildingID] = runBy
}

func (r *Registry) RunBy(buildingID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.runBy[buildingID]
	return v, ok
}

func (r *Registry) SetPolygon(buildingID string, land model.Land) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polygons[buildingID] = land
}

func (r *Registry) Polygon(buildingID string) (model.Land, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	land, ok := r.polygons[buildingID]
	return land, ok
}
