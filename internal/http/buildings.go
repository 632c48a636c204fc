package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/serenissima/contracts-gateway/internal/model"
	"github.com/serenissima/contracts-gateway/internal/service"
)

func (h *Handler) getBuilding(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	details, err := h.svc.Details.Load(c.Request.Context(), param(c, "id"), viewer)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) selectBuilding(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	panel, err := h.svc.Details.Select(c.Request.Context(), viewer, param(c, "id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, panel)
}

type setTabsRequest struct {
	ContentTab string `json:"contentTab"`
	ChatTab    string `json:"chatTab"`
}

func (h *Handler) setTabs(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	var req setTabsRequest
	if !bind(c, &req) {
		return
	}
	panel, err := h.svc.Details.SetTabs(service.SetTabsInput{
		Principal:  viewer,
		ContentTab: model.ContentTab(req.ContentTab),
		ChatTab:    model.ChatPartnerTab(req.ChatTab),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, panel)
}

func (h *Handler) getResources(c *gin.Context) {
	resources, err := h.svc.Resources.GetBuildingResources(c.Request.Context(), param(c, "id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}

func (h *Handler) getStorageFee(c *gin.Context) {
	fee, err := h.svc.Contracts.GetStorageFee(c.Request.Context(), param(c, "id"), param(c, "resourceType"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, fee)
}

type storageFeeRequest struct {
	Rate *float64 `json:"rate" binding:"required"`
}

func (h *Handler) saveStorageFee(c *gin.Context) {
	operator, ok := principal(c)
	if !ok {
		return
	}
	var req storageFeeRequest
	if !bind(c, &req) {
		return
	}
	fee, err := h.svc.Contracts.SaveStorageFee(c.Request.Context(), service.SaveStorageFeeInput{
		Principal:    operator,
		BuildingID:   param(c, "id"),
		ResourceType: param(c, "resourceType"),
		Rate:         *req.Rate,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, fee)
}

func (h *Handler) getConstructionRate(c *gin.Context) {
	rate, err := h.svc.Contracts.GetConstructionRate(c.Request.Context(), param(c, "id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rate)
}

type constructionRateRequest struct {
	Percent *float64 `json:"percent" binding:"required"`
}

func (h *Handler) saveConstructionRate(c *gin.Context) {
	operator, ok := principal(c)
	if !ok {
		return
	}
	var req constructionRateRequest
	if !bind(c, &req) {
		return
	}
	rate, err := h.svc.Contracts.SaveConstructionRate(c.Request.Context(), service.SaveConstructionRateInput{
		Principal:  operator,
		BuildingID: param(c, "id"),
		Percent:    *req.Percent,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rate)
}

func (h *Handler) getPublicSell(c *gin.Context) {
	contracts, err := h.svc.Contracts.GetPublicSellContracts(c.Request.Context(), param(c, "id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

type publicSellRequest struct {
	Price        *float64 `json:"price" binding:"required"`
	TargetAmount float64  `json:"targetAmount"`
}

func (h *Handler) savePublicSell(c *gin.Context) {
	operator, ok := principal(c)
	if !ok {
		return
	}
	var req publicSellRequest
	if !bind(c, &req) {
		return
	}
	contract, err := h.svc.Contracts.SavePublicSell(c.Request.Context(), service.SavePublicSellInput{
		Principal:    operator,
		BuildingID:   param(c, "id"),
		ResourceType: param(c, "resourceType"),
		Price:        *req.Price,
		TargetAmount: req.TargetAmount,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

type exportLedgerRequest struct {
	Format string `json:"format"`
}

func (h *Handler) exportLedger(c *gin.Context) {
	operator, ok := principal(c)
	if !ok {
		return
	}
	var req exportLedgerRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	file, err := h.svc.Ledger.Export(c.Request.Context(), service.ExportLedgerInput{
		Principal:  operator,
		BuildingID: param(c, "id"),
		Format:     model.LedgerFormat(req.Format),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+file.FileName+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
