package model

import "time"

type Bid struct {
	ID         string         `json:"id"`
	ContractID string         `json:"contractId"`
	Buyer      string         `json:"buyer"`
	Price      float64        `json:"price"`
	CreatedAt  *time.Time     `json:"createdAt,omitempty"`
	Status     ContractStatus `json:"status"`
	Notes      string         `json:"notes,omitempty"`
}

func BidFromContract(c Contract) Bid {
	return Bid{
		ID:         c.ContractID,
		ContractID: c.ContractID,
		Buyer:      c.Buyer,
		Price:      c.PricePerResource,
		CreatedAt:  c.CreatedAt,
		Status:     c.Status,
		Notes:      c.Notes,
	}
}

// BidControls are the actions a given viewer may take on one bid.
type BidControls struct {
	CanAccept   bool `json:"canAccept"`
	CanRefuse   bool `json:"canRefuse"`
	CanAdjust   bool `json:"canAdjust"`
	CanWithdraw bool `json:"canWithdraw"`
}

type BidView struct {
	Bid
	Controls BidControls `json:"controls"`
}

type BidList struct {
	BuildingID string    `json:"buildingId"`
	Active     []BidView `json:"active"`
	Historical []BidView `json:"historical"`
}
