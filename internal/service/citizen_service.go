package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/cache"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
)

type CitizenService struct {
	api        CitizenAPI
	settings   *cache.Settings
	byUsername *cache.Map[*model.Citizen]
	byWallet   *cache.Map[*model.Citizen]
	bus        *events.Bus
	subs       []*events.Subscription
	log        zerolog.Logger
}

func NewCitizenService(api CitizenAPI, bus *events.Bus, settings *cache.Settings, log zerolog.Logger) *CitizenService {
	s := &CitizenService{
		api:        api,
		settings:   settings,
		byUsername: cache.NewMap[*model.Citizen](settings),
		byWallet:   cache.NewMap[*model.Citizen](settings),
		bus:        bus,
		log:        log.With().Str("service", "citizens").Logger(),
	}
	s.subs = append(s.subs,
		bus.Subscribe(events.CitizenProfileUpdate, s.onProfileUpdated),
		bus.Subscribe(events.WalletChanged, func(events.Event) { s.settings.Clear() }),
	)
	return s
}

func (s *CitizenService) onProfileUpdated(e events.Event) {
	ref, ok := e.Payload.(events.CitizenRef)
	if !ok {
		s.settings.Clear()
		return
	}
	if ref.Username != "" {
		s.byUsername.Delete(ref.Username)
	}
	if ref.WalletAddress != "" {
		s.byWallet.Delete(strings.ToLower(ref.WalletAddress))
	}
}

func (s *CitizenService) GetByUsername(ctx context.Context, username string) (*model.Citizen, error) {
	if cached, ok := s.byUsername.Get(username); ok {
		return cached, nil
	}
	gen := s.generation()
	citizen, err := s.api.GetCitizen(ctx, username)
	if err != nil {
		return nil, err
	}
	s.store(citizen, gen)
	return citizen, nil
}

func (s *CitizenService) GetByWallet(ctx context.Context, wallet string) (*model.Citizen, error) {
	key := strings.ToLower(wallet)
	if cached, ok := s.byWallet.Get(key); ok {
		return cached, nil
	}
	gen := s.generation()
	citizen, err := s.api.GetCitizenByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	s.store(citizen, gen)
	return citizen, nil
}

// Show asks the viewer's client to open the citizen panel for username.
func (s *CitizenService) Show(ctx context.Context, viewer model.Principal, username string) (*model.Citizen, error) {
	citizen, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.ShowCitizenPanel, events.CitizenPanel{
		Recipient: viewer.Username,
		Citizen:   events.CitizenRef{Username: citizen.Username, WalletAddress: citizen.WalletAddress},
	})
	return citizen, nil
}

type citizenGeneration struct {
	byUsername, byWallet uint64
}

func (s *CitizenService) generation() citizenGeneration {
	return citizenGeneration{byUsername: s.byUsername.Generation(), byWallet: s.byWallet.Generation()}
}

// store caches a fetched citizen unless an invalidation arrived while it was in flight.
func (s *CitizenService) store(c *model.Citizen, gen citizenGeneration) {
	if c.Username != "" {
		s.byUsername.SetIfCurrent(c.Username, c, gen.byUsername)
	}
	if c.WalletAddress != "" {
		s.byWallet.SetIfCurrent(strings.ToLower(c.WalletAddress), c, gen.byWallet)
	}
}

func (s *CitizenService) ConfigureCaching(opts cache.Options) cache.Config {
	return s.settings.Configure(opts)
}

func (s *CitizenService) ClearCache() {
	s.settings.Clear()
}

func (s *CitizenService) CacheSettings() *cache.Settings {
	return s.settings
}

func (s *CitizenService) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
}
