package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/cache"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
)

const resourceTypesKey = "all"

type ResourceService struct {
	api               BuildingAPI
	settings          *cache.Settings
	buildingResources *cache.Map[*model.BuildingResources]
	resourceTypes     *cache.Map[[]model.ResourceType]
	subs              []*events.Subscription
	log               zerolog.Logger
}

func NewResourceService(api BuildingAPI, bus *events.Bus, settings *cache.Settings, log zerolog.Logger) *ResourceService {
	s := &ResourceService{
		api:               api,
		settings:          settings,
		buildingResources: cache.NewMap[*model.BuildingResources](settings),
		resourceTypes:     cache.NewMap[[]model.ResourceType](settings),
		log:               log.With().Str("service", "resources").Logger(),
	}
	s.subs = append(s.subs, bus.Subscribe(events.ContractUpdated, func(e events.Event) {
		if change, ok := e.Payload.(events.ContractChange); ok && change.BuildingID != "" {
			s.buildingResources.Delete(change.BuildingID)
			return
		}
		s.buildingResources.Clear()
	}))
	return s
}

func (s *ResourceService) GetBuildingResources(ctx context.Context, buildingID string) (*model.BuildingResources, error) {
	if cached, ok := s.buildingResources.Get(buildingID); ok {
		return cached, nil
	}
	gen := s.buildingResources.Generation()
	resources, err := s.api.GetBuildingResources(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	s.buildingResources.SetIfCurrent(buildingID, resources, gen)
	return resources, nil
}

func (s *ResourceService) GetResourceTypes(ctx context.Context) ([]model.ResourceType, error) {
	if cached, ok := s.resourceTypes.Get(resourceTypesKey); ok {
		return cached, nil
	}
	gen := s.resourceTypes.Generation()
	types, err := s.api.ListResourceTypes(ctx)
	if err != nil {
		return nil, err
	}
	s.resourceTypes.SetIfCurrent(resourceTypesKey, types, gen)
	return types, nil
}

// ImportPrice returns the reference import price of a resource type. ok is false when the
// catalog has no positive price for it.
func (s *ResourceService) ImportPrice(ctx context.Context, resourceType string) (float64, bool, error) {
	types, err := s.GetResourceTypes(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, rt := range types {
		if rt.ID == resourceType {
			return rt.ImportPrice, rt.ImportPrice > 0, nil
		}
	}
	return 0, false, nil
}

// Resource resolves one resource as seen at a building, with its import price filled from
// the catalog when the building view lacks it.
func (s *ResourceService) Resource(ctx context.Context, buildingID, resourceType string) (model.Resource, error) {
	resourceType = strings.TrimSpace(resourceType)
	if resourceType == "" {
		return model.Resource{}, apperror.NewValidationError("resourceType", "is required")
	}
	resources, err := s.GetBuildingResources(ctx, buildingID)
	if err != nil {
		return model.Resource{}, err
	}
	res, ok := resources.Find(resourceType)
	if !ok {
		res = model.Resource{ID: resourceType, Name: resourceType}
	}
	if res.ImportPrice == nil {
		price, found, err := s.ImportPrice(ctx, resourceType)
		if err != nil {
			return model.Resource{}, err
		}
		if found {
			res.ImportPrice = &price
		}
	}
	return res, nil
}

func (s *ResourceService) ConfigureCaching(opts cache.Options) cache.Config {
	return s.settings.Configure(opts)
}

func (s *ResourceService) ClearCache() {
	s.settings.Clear()
}

func (s *ResourceService) CacheSettings() *cache.Settings {
	return s.settings
}

func (s *ResourceService) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
}
