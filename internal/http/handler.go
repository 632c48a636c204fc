package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/cache"
	"github.com/serenissima/contracts-gateway/internal/http/middleware"
	"github.com/serenissima/contracts-gateway/internal/model"
	"github.com/serenissima/contracts-gateway/internal/notify"
	"github.com/serenissima/contracts-gateway/internal/service"
)

// CacheControl is implemented by every service that keeps a cache.
type CacheControl interface {
	ConfigureCaching(opts cache.Options) cache.Config
	ClearCache()
}

type Services struct {
	Details      *service.BuildingDetailsService
	Resources    *service.ResourceService
	Contracts    *service.PublicContractService
	Bids         *service.BidService
	Negotiations *service.NegotiationService
	Transactions *service.TransactionService
	Citizens     *service.CitizenService
	Ledger       *service.LedgerService
}

type Handler struct {
	svc    Services
	caches []CacheControl
	hub    *notify.Hub
	log    zerolog.Logger
}

func NewHandler(svc Services, hub *notify.Hub, log zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		caches: []CacheControl{svc.Resources, svc.Citizens, svc.Transactions},
		hub:    hub,
		log:    log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware, streamAuth gin.HandlerFunc) {
	router.GET("/healthz", h.health)
	router.GET("/events/ws", streamAuth, h.stream)

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/buildings/:id", h.getBuilding)
	protected.POST("/buildings/:id/select", h.selectBuilding)
	protected.PUT("/panel/tabs", h.setTabs)
	protected.GET("/buildings/:id/resources", h.getResources)

	protected.GET("/buildings/:id/storage-fees/:resourceType", h.getStorageFee)
	protected.PUT("/buildings/:id/storage-fees/:resourceType", h.saveStorageFee)
	protected.GET("/buildings/:id/construction-rate", h.getConstructionRate)
	protected.PUT("/buildings/:id/construction-rate", h.saveConstructionRate)
	protected.GET("/buildings/:id/public-sell", h.getPublicSell)
	protected.PUT("/buildings/:id/public-sell/:resourceType", h.savePublicSell)

	protected.GET("/buildings/:id/bids", h.listBids)
	protected.POST("/buildings/:id/bids", h.placeBid)
	protected.POST("/buildings/:id/bids/:contractId/accept", h.acceptBid)
	protected.POST("/buildings/:id/bids/:contractId/refuse", h.refuseBid)
	protected.POST("/buildings/:id/bids/:contractId/withdraw", h.withdrawBid)
	protected.POST("/buildings/:id/bids/:contractId/adjust", h.adjustBid)

	protected.POST("/buildings/:id/ledger/export", h.exportLedger)

	protected.POST("/negotiations", h.openNegotiation)
	protected.GET("/negotiations/:id", h.getNegotiation)
	protected.PUT("/negotiations/:id/price", h.setNegotiationPrice)
	protected.POST("/negotiations/:id/messages", h.sendNegotiationMessage)
	protected.POST("/negotiations/:id/offers", h.sendNegotiationOffer)
	protected.POST("/negotiations/:id/offers/:messageId/respond", h.respondToOffer)
	protected.DELETE("/negotiations/:id", h.closeNegotiation)

	protected.GET("/assets/:id/transactions", h.assetTransactions)
	protected.GET("/listings", h.listings)
	protected.POST("/listings", h.createListing)
	protected.POST("/offers", h.makeOffer)
	protected.POST("/offers/:id/accept", h.acceptOffer)
	protected.POST("/transactions/:id/execute", h.executeTransaction)
	protected.POST("/transactions/:id/cancel", h.cancelListing)

	protected.GET("/citizens/:username", h.getCitizen)
	protected.POST("/citizens/:username/show", h.showCitizen)

	protected.PUT("/cache", h.configureCache)
	protected.DELETE("/cache", h.clearCache)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// stream attaches the connection to the caller's username when a token was supplied;
// anonymous clients receive broadcast events only.
func (h *Handler) stream(c *gin.Context) {
	principal, _ := middleware.MustPrincipal(c)
	h.hub.ServeWS(c.Writer, c.Request, principal.Username)
}

// principal writes a 401 and reports false when the request has no authenticated user.
func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return p, ok
}

// bind decodes the JSON body and writes a 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var validation *apperror.ValidationError
	switch {
	case errors.Is(err, apperror.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		body := gin.H{"error": err.Error()}
		if validation.Field != "" {
			body["field"] = validation.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, apperror.ErrInvalidInput), errors.Is(err, service.ErrNotAnOffer):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperror.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperror.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOfferAlreadyAnswered),
		errors.Is(err, service.ErrBidNotActive),
		service.IsSessionInactive(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperror.ErrDataFormat), errors.Is(err, apperror.ErrUpstream):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("backend call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func param(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}
