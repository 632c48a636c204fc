package model

import (
	"time"

	"github.com/google/uuid"
)

type LedgerAction string

const (
	LedgerContractUpserted LedgerAction = "CONTRACT_UPSERTED"
	LedgerBidPlaced        LedgerAction = "BID_PLACED"
	LedgerBidResponded     LedgerAction = "BID_RESPONDED"
	LedgerBidWithdrawn     LedgerAction = "BID_WITHDRAWN"
	LedgerBidAdjusted      LedgerAction = "BID_ADJUSTED"
	LedgerOfferResponded   LedgerAction = "OFFER_RESPONDED"
)

// LedgerEntry records an action taken through the gateway on behalf of a citizen.
type LedgerEntry struct {
	ID           uuid.UUID
	BuildingID   string
	Action       LedgerAction
	ContractID   string
	ResourceType string
	Actor        string
	Amount       float64
	Details      string
	CreatedAt    time.Time
}

type LedgerFormat string

const (
	LedgerFormatXLSX LedgerFormat = "xlsx"
	LedgerFormatPDF  LedgerFormat = "pdf"
)

type LedgerReport struct {
	Building    Building
	GeneratedAt time.Time
	GeneratedBy string
	Contracts   []Contract
	Bids        []Bid
	Entries     []LedgerEntry
}
