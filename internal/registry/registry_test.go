package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenissima/contracts-gateway/internal/model"
)

func TestLoadCatalogFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "building_types.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
building_types:
  - type: glassblower_workshop
    name: Glassblower Workshop
    category: business
    sub_category: glass
  - type: public_dock
    name: Public Dock
    category: public_service
    sub_category: transport
`), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.BuildingTypes, 2)

	reg := New(catalog)
	b := reg.Classify(model.Building{BuildingID: "b1", Type: "glassblower_workshop"})
	assert.Equal(t, "business", b.Category)
	assert.Equal(t, "glass", b.SubCategory)
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
building_types:
  - type: bakery
  - type: bakery
`), 0o600))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestDefaultCatalogWithoutPath(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)
	_, ok := New(catalog).BuildingType("theater")
	assert.True(t, ok)
}

func TestRunByAndPolygon(t *testing.T) {
	reg := New(Catalog{})
	reg.SetRunBy("b1", "giulia")
	v, ok := reg.RunBy("b1")
	require.True(t, ok)
	assert.Equal(t, "giulia", v)

	reg.SetRunBy("b1", "")
	_, ok = reg.RunBy("b1")
	assert.False(t, ok)

	reg.SetPolygon("b1", model.Land{LandID: "polygon-9"})
	land, ok := reg.Polygon("b1")
	require.True(t, ok)
	assert.Equal(t, "polygon-9", land.LandID)
}
