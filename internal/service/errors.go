package service

import "errors"

var (
	ErrOfferAlreadyAnswered = errors.New("offer already answered")
	ErrNotAnOffer           = errors.New("message is not an offer")
	ErrSessionNotActive     = errors.New("negotiation is not active")
	ErrBidNotActive         = errors.New("bid is no longer active")
)
