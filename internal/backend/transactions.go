package backend

import (
	"context"
	"net/url"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/model"
)

type transactionsResponse struct {
	Transactions []model.Transaction `json:"transactions"`
}

type transactionResponse struct {
	Transaction model.Transaction `json:"transaction"`
}

type partyRequest struct {
	Citizen string `json:"citizen"`
}

// ListTransactionsByAsset returns an empty slice when the backend has nothing for the asset.
func (c *Client) ListTransactionsByAsset(ctx context.Context, assetID string) ([]model.Transaction, error) {
	var resp transactionsResponse
	err := c.get(ctx, "/api/transactions", url.Values{"assetId": {assetID}}, c.schemas.transactions, &resp)
	if err != nil {
		if apperror.IsNotFoundStatus(err) {
			return []model.Transaction{}, nil
		}
		return nil, err
	}
	if resp.Transactions == nil {
		return []model.Transaction{}, nil
	}
	return resp.Transactions, nil
}

func (c *Client) ListTransactionsBySeller(ctx context.Context, seller string) ([]model.Transaction, error) {
	var resp transactionsResponse
	err := c.get(ctx, "/api/transactions", url.Values{"seller": {seller}}, c.schemas.transactions, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Transactions == nil {
		return []model.Transaction{}, nil
	}
	return resp.Transactions, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req model.TransactionRequest) (*model.Transaction, error) {
	var resp transactionResponse
	if err := c.post(ctx, "/api/transaction", req, c.schemas.transaction, &resp); err != nil {
		return nil, err
	}
	return &resp.Transaction, nil
}

func (c *Client) ExecuteTransaction(ctx context.Context, id, buyer string) (*model.Transaction, error) {
	return c.transition(ctx, id, "execute", buyer, func() error { return apperror.NewListingNotFoundError(id) })
}

func (c *Client) CancelTransaction(ctx context.Context, id, seller string) (*model.Transaction, error) {
	return c.transition(ctx, id, "cancel", seller, func() error { return apperror.NewListingNotFoundError(id) })
}

func (c *Client) AcceptOffer(ctx context.Context, id, seller string) (*model.Transaction, error) {
	return c.transition(ctx, id, "accept", seller, func() error { return apperror.NewOfferNotFoundError(id) })
}

func (c *Client) transition(ctx context.Context, id, action, citizen string, notFound func() error) (*model.Transaction, error) {
	escaped, err := escape("transactionId", id)
	if err != nil {
		return nil, err
	}
	var resp transactionResponse
	err = c.post(ctx, "/api/transaction/"+escaped+"/"+action, partyRequest{Citizen: citizen}, c.schemas.transaction, &resp)
	if err != nil {
		if apperror.IsNotFoundStatus(err) {
			return nil, notFound()
		}
		return nil, err
	}
	return &resp.Transaction, nil
}
