package backend

import (
	"context"

	"github.com/serenissima/contracts-gateway/internal/model"
)

type citizenResponse struct {
	Citizen model.Citizen `json:"citizen"`
}

func (c *Client) GetCitizen(ctx context.Context, username string) (*model.Citizen, error) {
	escaped, err := escape("username", username)
	if err != nil {
		return nil, err
	}
	var resp citizenResponse
	if err := c.get(ctx, "/api/citizens/"+escaped, nil, c.schemas.citizen, &resp); err != nil {
		return nil, notFoundAs(err, "citizen", username)
	}
	return &resp.Citizen, nil
}

func (c *Client) GetCitizenByWallet(ctx context.Context, wallet string) (*model.Citizen, error) {
	escaped, err := escape("walletAddress", wallet)
	if err != nil {
		return nil, err
	}
	var resp citizenResponse
	if err := c.get(ctx, "/api/citizens/wallet/"+escaped, nil, c.schemas.citizen, &resp); err != nil {
		return nil, notFoundAs(err, "citizen", wallet)
	}
	return &resp.Citizen, nil
}
