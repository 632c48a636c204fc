package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/cache"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
)

type TransactionService struct {
	api      TransactionAPI
	bus      *events.Bus
	settings *cache.Settings
	byAsset  *cache.Map[[]model.Transaction]
	bySeller *cache.Map[[]model.Transaction]
	subs     []*events.Subscription
	log      zerolog.Logger
}

func NewTransactionService(api TransactionAPI, bus *events.Bus, settings *cache.Settings, log zerolog.Logger) *TransactionService {
	s := &TransactionService{
		api:      api,
		bus:      bus,
		settings: settings,
		byAsset:  cache.NewMap[[]model.Transaction](settings),
		bySeller: cache.NewMap[[]model.Transaction](settings),
		log:      log.With().Str("service", "transactions").Logger(),
	}
	for _, topic := range []string{
		events.TransactionCreated,
		events.TransactionExecuted,
		events.ListingCancelled,
		events.OfferAccepted,
	} {
		s.subs = append(s.subs, bus.Subscribe(topic, s.invalidate))
	}
	s.subs = append(s.subs, bus.Subscribe(events.LandOwnershipChanged, func(events.Event) {
		s.settings.Clear()
	}))
	return s
}

func (s *TransactionService) invalidate(e events.Event) {
	change, ok := e.Payload.(events.TransactionChange)
	if !ok || (change.Asset == "" && change.Seller == "") {
		s.settings.Clear()
		return
	}
	if change.Asset != "" {
		s.byAsset.Delete(change.Asset)
	}
	if change.Seller != "" {
		s.bySeller.Delete(strings.ToLower(change.Seller))
	}
}

// GetTransactionsByAsset lists transactions on an asset; an unknown asset yields an empty
// list rather than an error.
func (s *TransactionService) GetTransactionsByAsset(ctx context.Context, assetID string) ([]model.Transaction, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, apperror.NewValidationError("assetId", "is required")
	}
	if cached, ok := s.byAsset.Get(assetID); ok {
		return cached, nil
	}
	gen := s.byAsset.Generation()
	txs, err := s.api.ListTransactionsByAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	s.byAsset.SetIfCurrent(assetID, txs, gen)
	return txs, nil
}

func (s *TransactionService) GetListingsBySeller(ctx context.Context, seller string) ([]model.Transaction, error) {
	if strings.TrimSpace(seller) == "" {
		return nil, apperror.NewValidationError("seller", "is required")
	}
	key := strings.ToLower(seller)
	if cached, ok := s.bySeller.Get(key); ok {
		return cached, nil
	}
	gen := s.bySeller.Generation()
	txs, err := s.api.ListTransactionsBySeller(ctx, seller)
	if err != nil {
		return nil, err
	}
	s.bySeller.SetIfCurrent(key, txs, gen)
	return txs, nil
}

type ListingInput struct {
	Principal model.Principal
	Asset     string
	AssetType string
	Price     float64
}

func (s *TransactionService) CreateListing(ctx context.Context, in ListingInput) (*model.Transaction, error) {
	if err := validateTrade(in.Asset, in.AssetType, in.Price); err != nil {
		return nil, err
	}
	tx, err := s.api.CreateTransaction(ctx, model.TransactionRequest{
		Type:      model.TransactionListing,
		Asset:     in.Asset,
		AssetType: in.AssetType,
		Seller:    in.Principal.Username,
		Price:     in.Price,
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.TransactionCreated, events.TransactionChange{
		TransactionID: tx.ID,
		Asset:         in.Asset,
		Seller:        in.Principal.Username,
	})
	return tx, nil
}

type OfferInput struct {
	Principal model.Principal
	Asset     string
	AssetType string
	Seller    string
	Price     float64
}

func (s *TransactionService) MakeOffer(ctx context.Context, in OfferInput) (*model.Transaction, error) {
	if err := validateTrade(in.Asset, in.AssetType, in.Price); err != nil {
		return nil, err
	}
	if in.Principal.Is(in.Seller) {
		return nil, apperror.NewUnauthorizedActionError("make_offer", "cannot make an offer on your own asset")
	}
	tx, err := s.api.CreateTransaction(ctx, model.TransactionRequest{
		Type:      model.TransactionOffer,
		Asset:     in.Asset,
		AssetType: in.AssetType,
		Seller:    in.Seller,
		Buyer:     in.Principal.Username,
		Price:     in.Price,
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.TransactionCreated, events.TransactionChange{
		TransactionID: tx.ID,
		Asset:         in.Asset,
		Seller:        in.Seller,
		Buyer:         in.Principal.Username,
	})
	return tx, nil
}

func (s *TransactionService) ExecuteTransaction(ctx context.Context, principal model.Principal, id string) (*model.Transaction, error) {
	tx, err := s.api.ExecuteTransaction(ctx, id, principal.Username)
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.TransactionExecuted, changeOf(tx))
	if tx.AssetType == "land" {
		s.bus.Emit(events.LandOwnershipChanged, changeOf(tx))
	}
	return tx, nil
}

func (s *TransactionService) CancelListing(ctx context.Context, principal model.Principal, id string) (*model.Transaction, error) {
	tx, err := s.api.CancelTransaction(ctx, id, principal.Username)
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.ListingCancelled, changeOf(tx))
	return tx, nil
}

func (s *TransactionService) AcceptOffer(ctx context.Context, principal model.Principal, id string) (*model.Transaction, error) {
	tx, err := s.api.AcceptOffer(ctx, id, principal.Username)
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.OfferAccepted, changeOf(tx))
	return tx, nil
}

func (s *TransactionService) ConfigureCaching(opts cache.Options) cache.Config {
	return s.settings.Configure(opts)
}

func (s *TransactionService) ClearCache() {
	s.settings.Clear()
}

func (s *TransactionService) CacheSettings() *cache.Settings {
	return s.settings
}

func (s *TransactionService) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
}

func changeOf(tx *model.Transaction) events.TransactionChange {
	return events.TransactionChange{
		TransactionID: tx.ID,
		Asset:         tx.Asset,
		Seller:        tx.Seller,
		Buyer:         tx.Buyer,
	}
}

func validateTrade(asset, assetType string, price float64) error {
	if strings.TrimSpace(asset) == "" {
		return apperror.NewValidationError("asset", "is required")
	}
	if strings.TrimSpace(assetType) == "" {
		return apperror.NewValidationError("assetType", "is required")
	}
	if price <= 0 {
		return apperror.NewValidationError("price", "must be positive")
	}
	return nil
}
