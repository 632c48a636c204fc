package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/serenissima/contracts-gateway/internal/negotiation"
	"github.com/serenissima/contracts-gateway/internal/service"
)

type openNegotiationRequest struct {
	Counterparty string `json:"counterparty" binding:"required"`
	BuildingID   string `json:"buildingId" binding:"required"`
	ResourceType string `json:"resourceType" binding:"required"`
}

func (h *Handler) openNegotiation(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	var req openNegotiationRequest
	if !bind(c, &req) {
		return
	}
	view, err := h.svc.Negotiations.Open(c.Request.Context(), service.OpenNegotiationInput{
		Principal:    viewer,
		Counterparty: req.Counterparty,
		BuildingID:   req.BuildingID,
		ResourceType: req.ResourceType,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) writeView(c *gin.Context, view negotiation.View, err error) {
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) getNegotiation(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	view, err := h.svc.Negotiations.View(param(c, "id"), viewer)
	h.writeView(c, view, err)
}

type negotiationPriceRequest struct {
	Price *float64 `json:"price" binding:"required"`
}

func (h *Handler) setNegotiationPrice(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	var req negotiationPriceRequest
	if !bind(c, &req) {
		return
	}
	view, err := h.svc.Negotiations.SetPrice(param(c, "id"), viewer, *req.Price)
	h.writeView(c, view, err)
}

type negotiationMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) sendNegotiationMessage(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	var req negotiationMessageRequest
	if !bind(c, &req) {
		return
	}
	view, err := h.svc.Negotiations.SendMessage(c.Request.Context(), param(c, "id"), viewer, req.Content)
	h.writeView(c, view, err)
}

func (h *Handler) sendNegotiationOffer(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	var req negotiationMessageRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	view, err := h.svc.Negotiations.SendOffer(c.Request.Context(), param(c, "id"), viewer, req.Content)
	h.writeView(c, view, err)
}

type respondRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

func (h *Handler) respondToOffer(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	var req respondRequest
	if !bind(c, &req) {
		return
	}
	view, err := h.svc.Negotiations.Respond(c.Request.Context(), param(c, "id"), viewer, param(c, "messageId"), *req.Accept)
	h.writeView(c, view, err)
}

func (h *Handler) closeNegotiation(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	if err := h.svc.Negotiations.CloseSession(param(c, "id"), viewer); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
