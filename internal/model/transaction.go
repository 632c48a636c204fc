package model

import "time"

type TransactionType string

const (
	TransactionListing TransactionType = "listing"
	TransactionOffer   TransactionType = "offer"
)

type Transaction struct {
	ID         string          `json:"id"`
	Type       TransactionType `json:"type"`
	Asset      string          `json:"asset"`
	AssetType  string          `json:"assetType"`
	Seller     string          `json:"seller,omitempty"`
	Buyer      string          `json:"buyer,omitempty"`
	Price      float64         `json:"price"`
	Status     string          `json:"status,omitempty"`
	CreatedAt  *time.Time      `json:"createdAt,omitempty"`
	ExecutedAt *time.Time      `json:"executedAt,omitempty"`
}

type TransactionRequest struct {
	Type      TransactionType `json:"type"`
	Asset     string          `json:"asset"`
	AssetType string          `json:"assetType"`
	Seller    string          `json:"seller,omitempty"`
	Buyer     string          `json:"buyer,omitempty"`
	Price     float64         `json:"price"`
}
