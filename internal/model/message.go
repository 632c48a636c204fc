package model

import "time"

type MessageType string

const (
	MessageTypeChat              MessageType = "message"
	MessageTypeNegotiationOffer  MessageType = "negotiation_offer"
	MessageTypeResourceBuyOffer  MessageType = "resource_buy_offer"
	MessageTypeResourceBuyAccept MessageType = "resource_buy_accept"
	MessageTypeResourceBuyRefuse MessageType = "resource_buy_refuse"
)

func (t MessageType) IsOffer() bool {
	return t == MessageTypeResourceBuyOffer || t == MessageTypeNegotiationOffer
}

func (t MessageType) IsResponse() bool {
	return t == MessageTypeResourceBuyAccept || t == MessageTypeResourceBuyRefuse
}

type MessageContext struct {
	BuildingID      string   `json:"buildingId,omitempty"`
	ResourceType    string   `json:"resourceType,omitempty"`
	NegotiatedPrice *float64 `json:"negotiatedPrice,omitempty"`
	OriginalOfferID string   `json:"originalOfferId,omitempty"`
}

type Message struct {
	ID        string          `json:"messageId"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Content   string          `json:"content"`
	Type      MessageType     `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
	Context   *MessageContext `json:"context,omitempty"`
}

type OfferResponseKind string

const (
	OfferAccepted OfferResponseKind = "accepted"
	OfferRefused  OfferResponseKind = "refused"
)

type OfferResponse struct {
	MessageID         string            `json:"messageId"`
	Response          OfferResponseKind `json:"response"`
	RespondedBy       string            `json:"respondedBy"`
	ResponseMessageID string            `json:"responseMessageId"`
	CreatedAt         time.Time         `json:"createdAt"`
}
