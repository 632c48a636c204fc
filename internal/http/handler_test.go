package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/auth"
	"github.com/serenissima/contracts-gateway/internal/backend"
	"github.com/serenissima/contracts-gateway/internal/cache"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/excel"
	"github.com/serenissima/contracts-gateway/internal/http/middleware"
	"github.com/serenissima/contracts-gateway/internal/model"
	"github.com/serenissima/contracts-gateway/internal/negotiation"
	"github.com/serenissima/contracts-gateway/internal/notify"
	"github.com/serenissima/contracts-gateway/internal/pdf"
	"github.com/serenissima/contracts-gateway/internal/registry"
	"github.com/serenissima/contracts-gateway/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

// fakeGame answers the handful of backend endpoints the routes below reach.
func fakeGame(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/buildings/bld_1":
		_, _ = w.Write([]byte(`{"success":true,"building":{
			"buildingId":"bld_1","type":"small_warehouse","name":"Warehouse on the Riva",
			"owner":"marco","runBy":"marco","isConstructed":true}}`))
	case r.URL.Path == "/api/contracts":
		_, _ = w.Write([]byte(`{"success":true,"contracts":[]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"not found"}`))
	}
}

type testServer struct {
	router *gin.Engine
	parser *auth.Parser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	game := httptest.NewServer(http.HandlerFunc(fakeGame))
	t.Cleanup(game.Close)

	client, err := backend.NewClient(game.URL, 0, zerolog.Nop())
	require.NoError(t, err)
	catalog, err := registry.LoadCatalog("")
	require.NoError(t, err)

	log := zerolog.Nop()
	bus := events.NewBus(log)
	settings := func() *cache.Settings { return cache.NewSettings(cache.Config{Enabled: true}) }

	resources := service.NewResourceService(client, bus, settings(), log)
	citizens := service.NewCitizenService(client, bus, settings(), log)
	transactions := service.NewTransactionService(client, bus, settings(), log)
	contracts := service.NewPublicContractService(client, client, resources, nil, bus, log)
	bids := service.NewBidService(client, client, client, nil, bus, log)
	negotiations := service.NewNegotiationService(client, resources, nil, nil, negotiation.NewStore(), bus, log)
	details := service.NewBuildingDetailsService(client, client, resources, bids, contracts, citizens, registry.New(catalog), bus, log)
	ledger := service.NewLedgerService(client, client, nil, excel.NewGenerator(), pdf.NewGenerator(), log)
	t.Cleanup(func() {
		details.Close()
		negotiations.Close()
		transactions.Close()
		citizens.Close()
		resources.Close()
	})

	parser := auth.NewParser(testSecret)
	handler := NewHandler(Services{
		Details:      details,
		Resources:    resources,
		Contracts:    contracts,
		Bids:         bids,
		Negotiations: negotiations,
		Transactions: transactions,
		Citizens:     citizens,
		Ledger:       ledger,
	}, notify.NewHub(bus, []string{"*"}, log), log)

	router := NewRouter(handler, RouterConfig{
		Environment:    "test",
		AllowedOrigins: []string{"*"},
		Auth:           middleware.Auth(parser),
		StreamAuth:     middleware.OptionalAuth(parser),
	})
	return &testServer{router: router, parser: parser}
}

func (s *testServer) do(t *testing.T, method, path, username, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if username != "" {
		token, err := s.parser.Issue(model.Principal{Username: username}, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/buildings/bld_1/bids", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownBuildingIsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/buildings/bld_missing", "anna", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorageFeeRequiresOperator(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/buildings/bld_1/storage-fees/iron_ore", "anna", `{"rate":0.03}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/buildings/bld_1/storage-fees/iron_ore", "anna", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownNegotiationIsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/negotiations/nope", "anna", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigureCache(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/cache", "anna", `{"ttl":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/cache", "anna", `{"enabled":false,"ttl":"90s"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false,"ttl":"1m30s"}`, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/cache", "anna", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExportLedger(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/buildings/bld_1/ledger/export", "marco", `{"format":"pdf"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ledger_bld_1_")

	rec = s.do(t, http.MethodPost, "/buildings/bld_1/ledger/export", "marco", `{"format":"xlsx"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = book.Close() })
	assert.Subset(t, book.GetSheetList(), []string{"Summary", "Contracts", "Bids", "Ledger"})
	summary, err := book.GetRows("Summary")
	require.NoError(t, err)
	assert.NotEmpty(t, summary)

	rec = s.do(t, http.MethodPost, "/buildings/bld_1/ledger/export", "anna", `{"format":"xlsx"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/buildings/bld_1/ledger/export", "marco", `{"format":"csv"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleErrorStatusCodes(t *testing.T) {
	h := &Handler{log: zerolog.Nop()}
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"unauthenticated", apperror.NewAuthenticationError("expired"), http.StatusUnauthorized},
		{"validation", apperror.NewValidationError("rate", "out of range"), http.StatusBadRequest},
		{"not an offer", service.ErrNotAnOffer, http.StatusBadRequest},
		{"forbidden", apperror.NewUnauthorizedActionError("accept_bid", "not the owner"), http.StatusForbidden},
		{"not found", apperror.NewNotFoundError("building", "bld_9"), http.StatusNotFound},
		{"answered", service.ErrOfferAlreadyAnswered, http.StatusConflict},
		{"bid closed", service.ErrBidNotActive, http.StatusConflict},
		{"session closed", service.ErrSessionNotActive, http.StatusConflict},
		{"price on closed session", fmt.Errorf("set price: %w", negotiation.ErrNotActive), http.StatusConflict},
		{"upstream", apperror.NewAPIError(500, "/api/contracts", "boom"), http.StatusBadGateway},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			h.handleError(c, tc.err)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}
