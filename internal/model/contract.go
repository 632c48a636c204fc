package model

import (
	"fmt"
	"time"
)

type ContractType string

const (
	ContractTypePublicSell          ContractType = "public_sell"
	ContractTypePublicStorage       ContractType = "public_storage"
	ContractTypePublicConstruction  ContractType = "public_construction"
	ContractTypeBuildingBid         ContractType = "building_bid"
	ContractTypeConstructionProject ContractType = "construction_project"
)

type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusAccepted  ContractStatus = "accepted"
	ContractStatusRefused   ContractStatus = "refused"
	ContractStatusWithdrawn ContractStatus = "withdrawn"
	ContractStatusSold      ContractStatus = "sold"
	ContractStatusCancelled ContractStatus = "cancelled"
)

// Contract is a priced agreement over a resource or a service. PricePerResource is an
// absolute Ducat amount for sales and storage, and a cost multiplier for construction.
type Contract struct {
	ContractID       string         `json:"contractId"`
	Type             ContractType   `json:"type"`
	Seller           string         `json:"seller,omitempty"`
	Buyer            string         `json:"buyer,omitempty"`
	SellerBuilding   string         `json:"sellerBuilding,omitempty"`
	BuyerBuilding    string         `json:"buyerBuilding,omitempty"`
	ResourceType     string         `json:"resourceType,omitempty"`
	Asset            string         `json:"asset,omitempty"`
	AssetType        string         `json:"assetType,omitempty"`
	PricePerResource float64        `json:"pricePerResource"`
	TargetAmount     float64        `json:"targetAmount"`
	Status           ContractStatus `json:"status"`
	Title            string         `json:"title,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	Description      string         `json:"description,omitempty"`
	CreatedAt        *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time     `json:"updatedAt,omitempty"`
}

// ContractPatch carries the fields an upsert should write; nil fields are left untouched.
type ContractPatch struct {
	Type             *ContractType
	Seller           *string
	SellerBuilding   *string
	ResourceType     *string
	PricePerResource *float64
	TargetAmount     *float64
	Status           *ContractStatus
	Title            *string
	Description      *string
	Notes            *string
}

func PublicStorageContractID(buildingID, resourceType string) string {
	return fmt.Sprintf("public_storage_%s_%s", buildingID, resourceType)
}

func PublicConstructionContractID(buildingID string) string {
	return fmt.Sprintf("public_construction_%s", buildingID)
}

func PublicSellContractID(buildingID, resourceType string) string {
	return fmt.Sprintf("public_sell_%s_%s", buildingID, resourceType)
}

type ContractQuery struct {
	SellerBuilding string
	Type           ContractType
	ResourceType   string
	Asset          string
}
