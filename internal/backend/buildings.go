package backend

import (
	"context"

	"github.com/serenissima/contracts-gateway/internal/model"
)

type buildingResponse struct {
	Building model.Building `json:"building"`
}

type resourceTypesResponse struct {
	ResourceTypes []model.ResourceType `json:"resourceTypes"`
}

type polygonResponse struct {
	Polygon model.Land `json:"polygon"`
}

func (c *Client) GetBuilding(ctx context.Context, id string) (*model.Building, error) {
	escaped, err := escape("buildingId", id)
	if err != nil {
		return nil, err
	}
	var resp buildingResponse
	if err := c.get(ctx, "/api/buildings/"+escaped, nil, c.schemas.building, &resp); err != nil {
		return nil, notFoundAs(err, "building", id)
	}
	return &resp.Building, nil
}

func (c *Client) GetBuildingResources(ctx context.Context, id string) (*model.BuildingResources, error) {
	escaped, err := escape("buildingId", id)
	if err != nil {
		return nil, err
	}
	var resp model.BuildingResources
	if err := c.get(ctx, "/api/building-resources/"+escaped, nil, c.schemas.buildingResources, &resp); err != nil {
		return nil, notFoundAs(err, "building", id)
	}
	return &resp, nil
}

func (c *Client) ListResourceTypes(ctx context.Context) ([]model.ResourceType, error) {
	var resp resourceTypesResponse
	if err := c.get(ctx, "/api/resource-types", nil, c.schemas.resourceTypes, &resp); err != nil {
		return nil, err
	}
	return resp.ResourceTypes, nil
}

func (c *Client) GetLand(ctx context.Context, landID string) (*model.Land, error) {
	escaped, err := escape("landId", landID)
	if err != nil {
		return nil, err
	}
	var resp polygonResponse
	if err := c.get(ctx, "/api/get-polygon/"+escaped, nil, c.schemas.polygon, &resp); err != nil {
		return nil, notFoundAs(err, "land", landID)
	}
	return &resp.Polygon, nil
}
