package backend

import (
	"context"
	"net/url"
	"strings"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/model"
)

type contractsResponse struct {
	Contracts []model.Contract `json:"contracts"`
}

type contractResponse struct {
	Contract model.Contract `json:"contract"`
}

func (c *Client) ListContracts(ctx context.Context, q model.ContractQuery) ([]model.Contract, error) {
	query := url.Values{}
	if q.SellerBuilding != "" {
		query.Set("sellerBuilding", q.SellerBuilding)
	}
	if q.Type != "" {
		query.Set("type", string(q.Type))
	}
	if q.ResourceType != "" {
		query.Set("resourceType", q.ResourceType)
	}
	if q.Asset != "" {
		query.Set("asset", q.Asset)
	}

	var resp contractsResponse
	if err := c.get(ctx, "/api/contracts", query, c.schemas.contracts, &resp); err != nil {
		return nil, err
	}
	if resp.Contracts == nil {
		return []model.Contract{}, nil
	}
	return resp.Contracts, nil
}

// UpsertContract creates or updates the contract identified by key. Only the fields set
// in patch are sent, so repeated calls with the same key converge on one row.
func (c *Client) UpsertContract(ctx context.Context, key string, patch model.ContractPatch) (*model.Contract, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperror.NewValidationError("ContractId", "is required")
	}

	body := map[string]any{"ContractId": key}
	if patch.Type != nil {
		body["Type"] = string(*patch.Type)
	}
	if patch.Seller != nil {
		body["Seller"] = *patch.Seller
	}
	if patch.SellerBuilding != nil {
		body["SellerBuilding"] = *patch.SellerBuilding
	}
	if patch.ResourceType != nil {
		body["ResourceType"] = *patch.ResourceType
	}
	if patch.PricePerResource != nil {
		body["PricePerResource"] = *patch.PricePerResource
	}
	if patch.TargetAmount != nil {
		body["TargetAmount"] = *patch.TargetAmount
	}
	if patch.Status != nil {
		body["Status"] = string(*patch.Status)
	}
	if patch.Title != nil {
		body["Title"] = *patch.Title
	}
	if patch.Description != nil {
		body["Description"] = *patch.Description
	}
	if patch.Notes != nil {
		body["Notes"] = *patch.Notes
	}

	var resp contractResponse
	if err := c.post(ctx, "/api/contracts", body, c.schemas.contract, &resp); err != nil {
		return nil, err
	}
	return &resp.Contract, nil
}
