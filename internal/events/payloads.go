package events

type ContractChange struct {
	BuildingID   string `json:"buildingId"`
	ContractID   string `json:"contractId"`
	ContractType string `json:"contractType"`
	ResourceType string `json:"resourceType,omitempty"`
}

type BidChange struct {
	BuildingID string `json:"buildingId"`
	ContractID string `json:"contractId,omitempty"`
	Action     string `json:"action"`
	Actor      string `json:"actor"`
}

type TransactionChange struct {
	TransactionID string `json:"transactionId"`
	Asset         string `json:"asset,omitempty"`
	Seller        string `json:"seller,omitempty"`
	Buyer         string `json:"buyer,omitempty"`
}

type CitizenRef struct {
	Username      string `json:"username,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

type CitizenPanel struct {
	Recipient string     `json:"recipient"`
	Citizen   CitizenRef `json:"citizen"`
}

type NegotiationUpdate struct {
	SessionID  string `json:"sessionId"`
	MessageID  string `json:"messageId"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	BuildingID string `json:"buildingId"`
	Resource   string `json:"resourceType"`
	Type       string `json:"messageType,omitempty"`
	Content    string `json:"content,omitempty"`
	Response   string `json:"response,omitempty"`
}

type Notification struct {
	Recipient string `json:"recipient,omitempty"`
	Level     string `json:"level"`
	Text      string `json:"text"`
}
