package service

import (
	"context"

	"github.com/serenissima/contracts-gateway/internal/backend"
	"github.com/serenissima/contracts-gateway/internal/model"
)

type ContractAPI interface {
	ListContracts(ctx context.Context, q model.ContractQuery) ([]model.Contract, error)
	UpsertContract(ctx context.Context, key string, patch model.ContractPatch) (*model.Contract, error)
}

type BuildingAPI interface {
	GetBuilding(ctx context.Context, id string) (*model.Building, error)
	GetBuildingResources(ctx context.Context, id string) (*model.BuildingResources, error)
	ListResourceTypes(ctx context.Context) ([]model.ResourceType, error)
	GetLand(ctx context.Context, landID string) (*model.Land, error)
}

type ActivityAPI interface {
	TryCreateActivity(ctx context.Context, req model.ActivityRequest) (*model.ActivityResult, error)
}

type MessageAPI interface {
	ListMessages(ctx context.Context, current, other string) ([]model.Message, error)
	SendMessage(ctx context.Context, req backend.SendMessageRequest) (*model.Message, error)
}

type CitizenAPI interface {
	GetCitizen(ctx context.Context, username string) (*model.Citizen, error)
	GetCitizenByWallet(ctx context.Context, wallet string) (*model.Citizen, error)
}

type TransactionAPI interface {
	ListTransactionsByAsset(ctx context.Context, assetID string) ([]model.Transaction, error)
	ListTransactionsBySeller(ctx context.Context, seller string) ([]model.Transaction, error)
	CreateTransaction(ctx context.Context, req model.TransactionRequest) (*model.Transaction, error)
	ExecuteTransaction(ctx context.Context, id, buyer string) (*model.Transaction, error)
	CancelTransaction(ctx context.Context, id, seller string) (*model.Transaction, error)
	AcceptOffer(ctx context.Context, id, seller string) (*model.Transaction, error)
}

// ResponseStore persists offer answers. Save reports false when the offer already had one.
// A saved row without a response message is a claim that Delete releases.
type ResponseStore interface {
	Save(ctx context.Context, resp model.OfferResponse) (bool, error)
	Delete(ctx context.Context, messageID string) error
	AttachResponseMessage(ctx context.Context, messageID, responseMessageID string) error
	ListByMessageIDs(ctx context.Context, ids []string) (map[string]model.OfferResponse, error)
}

type LedgerStore interface {
	Record(ctx context.Context, entry model.LedgerEntry) error
	ListByBuilding(ctx context.Context, buildingID string) ([]model.LedgerEntry, error)
}
