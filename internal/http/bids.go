package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/serenissima/contracts-gateway/internal/model"
	"github.com/serenissima/contracts-gateway/internal/service"
)

func (h *Handler) listBids(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	bids, err := h.svc.Bids.ListBids(c.Request.Context(), param(c, "id"), viewer)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bids)
}

type placeBidRequest struct {
	Amount         float64 `json:"amount" binding:"required"`
	FromBuildingID string  `json:"fromBuildingId"`
}

func (h *Handler) placeBid(c *gin.Context) {
	bidder, ok := principal(c)
	if !ok {
		return
	}
	var req placeBidRequest
	if !bind(c, &req) {
		return
	}
	placement, err := h.svc.Bids.PlaceBid(c.Request.Context(), service.PlaceBidInput{
		Principal:      bidder,
		BuildingID:     param(c, "id"),
		Amount:         req.Amount,
		FromBuildingID: req.FromBuildingID,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, placement)
}

func (h *Handler) writeBids(c *gin.Context, bids *model.BidList, err error) {
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bids)
}

func bidInput(c *gin.Context) (service.BidActionInput, bool) {
	actor, ok := principal(c)
	if !ok {
		return service.BidActionInput{}, false
	}
	return service.BidActionInput{
		Principal:  actor,
		BuildingID: param(c, "id"),
		ContractID: param(c, "contractId"),
	}, true
}

func (h *Handler) acceptBid(c *gin.Context) {
	if in, ok := bidInput(c); ok {
		bids, err := h.svc.Bids.AcceptBid(c.Request.Context(), in)
		h.writeBids(c, bids, err)
	}
}

func (h *Handler) refuseBid(c *gin.Context) {
	if in, ok := bidInput(c); ok {
		bids, err := h.svc.Bids.RefuseBid(c.Request.Context(), in)
		h.writeBids(c, bids, err)
	}
}

func (h *Handler) withdrawBid(c *gin.Context) {
	if in, ok := bidInput(c); ok {
		bids, err := h.svc.Bids.WithdrawBid(c.Request.Context(), in)
		h.writeBids(c, bids, err)
	}
}

type adjustBidRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

func (h *Handler) adjustBid(c *gin.Context) {
	in, ok := bidInput(c)
	if !ok {
		return
	}
	var req adjustBidRequest
	if !bind(c, &req) {
		return
	}
	in.NewAmount = req.Amount
	bids, err := h.svc.Bids.AdjustBid(c.Request.Context(), in)
	h.writeBids(c, bids, err)
}
