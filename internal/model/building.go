package model

type Building struct {
	BuildingID                   string  `json:"buildingId"`
	Name                         string  `json:"name"`
	Type                         string  `json:"type"`
	Category                     string  `json:"category,omitempty"`
	SubCategory                  string  `json:"subCategory,omitempty"`
	LandID                       string  `json:"landId,omitempty"`
	Owner                        string  `json:"owner,omitempty"`
	RunBy                        string  `json:"runBy,omitempty"`
	Occupant                     string  `json:"occupant,omitempty"`
	BuiltBy                      string  `json:"builtBy,omitempty"`
	IsConstructed                bool    `json:"isConstructed"`
	ConstructionMinutesRemaining float64 `json:"constructionMinutesRemaining"`
}

// Operator is the citizen allowed to set public rates: the runner, or the owner when
// nobody runs the building.
func (b Building) Operator() string {
	if b.RunBy != "" {
		return b.RunBy
	}
	return b.Owner
}

func (b Building) IsOperatedBy(username string) bool {
	if username == "" {
		return false
	}
	return username == b.RunBy || username == b.Owner
}

type Land struct {
	LandID  string       `json:"landId"`
	Name    string       `json:"name,omitempty"`
	Owner   string       `json:"owner,omitempty"`
	Polygon [][2]float64 `json:"polygon"`
}

type ContentTab string

const (
	TabConstruction ContentTab = "construction"
	TabProduction   ContentTab = "production"
	TabMarket       ContentTab = "market"
	TabRealEstate   ContentTab = "real-estate"
	TabLedger       ContentTab = "ledger"
	TabPlay         ContentTab = "play"
)

func (t ContentTab) Valid() bool {
	switch t {
	case TabConstruction, TabProduction, TabMarket, TabRealEstate, TabLedger, TabPlay:
		return true
	}
	return false
}

type ChatPartnerTab string

const (
	ChatBuiltBy  ChatPartnerTab = "builtBy"
	ChatRunBy    ChatPartnerTab = "runBy"
	ChatOwner    ChatPartnerTab = "owner"
	ChatOccupant ChatPartnerTab = "occupant"
)

func (t ChatPartnerTab) Valid() bool {
	switch t {
	case ChatBuiltBy, ChatRunBy, ChatOwner, ChatOccupant:
		return true
	}
	return false
}
