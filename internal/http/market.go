package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/serenissima/contracts-gateway/internal/cache"
	"github.com/serenissima/contracts-gateway/internal/model"
	"github.com/serenissima/contracts-gateway/internal/service"
)

func (h *Handler) writeTransaction(c *gin.Context, status int, tx *model.Transaction, err error) {
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(status, tx)
}

func (h *Handler) assetTransactions(c *gin.Context) {
	txs, err := h.svc.Transactions.GetTransactionsByAsset(c.Request.Context(), param(c, "id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// listings defaults to the caller's own listings when no seller is given.
func (h *Handler) listings(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	seller := strings.TrimSpace(c.Query("seller"))
	if seller == "" {
		seller = viewer.Username
	}
	txs, err := h.svc.Transactions.GetListingsBySeller(c.Request.Context(), seller)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": txs})
}

type listingRequest struct {
	Asset     string  `json:"asset" binding:"required"`
	AssetType string  `json:"assetType" binding:"required"`
	Price     float64 `json:"price" binding:"required"`
}

func (h *Handler) createListing(c *gin.Context) {
	seller, ok := principal(c)
	if !ok {
		return
	}
	var req listingRequest
	if !bind(c, &req) {
		return
	}
	tx, err := h.svc.Transactions.CreateListing(c.Request.Context(), service.ListingInput{
		Principal: seller,
		Asset:     req.Asset,
		AssetType: req.AssetType,
		Price:     req.Price,
	})
	h.writeTransaction(c, http.StatusCreated, tx, err)
}

type offerRequest struct {
	listingRequest
	Seller string `json:"seller" binding:"required"`
}

func (h *Handler) makeOffer(c *gin.Context) {
	buyer, ok := principal(c)
	if !ok {
		return
	}
	var req offerRequest
	if !bind(c, &req) {
		return
	}
	tx, err := h.svc.Transactions.MakeOffer(c.Request.Context(), service.OfferInput{
		Principal: buyer,
		Asset:     req.Asset,
		AssetType: req.AssetType,
		Seller:    req.Seller,
		Price:     req.Price,
	})
	h.writeTransaction(c, http.StatusCreated, tx, err)
}

func (h *Handler) acceptOffer(c *gin.Context) {
	if actor, ok := principal(c); ok {
		tx, err := h.svc.Transactions.AcceptOffer(c.Request.Context(), actor, param(c, "id"))
		h.writeTransaction(c, http.StatusOK, tx, err)
	}
}

func (h *Handler) executeTransaction(c *gin.Context) {
	if actor, ok := principal(c); ok {
		tx, err := h.svc.Transactions.ExecuteTransaction(c.Request.Context(), actor, param(c, "id"))
		h.writeTransaction(c, http.StatusOK, tx, err)
	}
}

func (h *Handler) cancelListing(c *gin.Context) {
	if actor, ok := principal(c); ok {
		tx, err := h.svc.Transactions.CancelListing(c.Request.Context(), actor, param(c, "id"))
		h.writeTransaction(c, http.StatusOK, tx, err)
	}
}

func (h *Handler) getCitizen(c *gin.Context) {
	citizen, err := h.svc.Citizens.GetByUsername(c.Request.Context(), param(c, "username"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, citizen)
}

func (h *Handler) showCitizen(c *gin.Context) {
	viewer, ok := principal(c)
	if !ok {
		return
	}
	citizen, err := h.svc.Citizens.Show(c.Request.Context(), viewer, param(c, "username"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, citizen)
}

type cacheRequest struct {
	Enabled *bool   `json:"enabled"`
	TTL     *string `json:"ttl"`
}

// configureCache applies the same options to every service cache.
func (h *Handler) configureCache(c *gin.Context) {
	var req cacheRequest
	if !bind(c, &req) {
		return
	}
	opts := cache.Options{Enabled: req.Enabled}
	if req.TTL != nil {
		ttl, err := time.ParseDuration(strings.TrimSpace(*req.TTL))
		if err != nil || ttl <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl", "field": "ttl"})
			return
		}
		opts.TTL = &ttl
	}

	var cfg cache.Config
	for _, ctl := range h.caches {
		cfg = ctl.ConfigureCaching(opts)
	}
	c.JSON(http.StatusOK, gin.H{"enabled": cfg.Enabled, "ttl": cfg.TTL.String()})
}

func (h *Handler) clearCache(c *gin.Context) {
	for _, ctl := range h.caches {
		ctl.ClearCache()
	}
	c.Status(http.StatusNoContent)
}
