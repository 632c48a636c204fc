package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
	"github.com/serenissima/contracts-gateway/internal/registry"
)

// Section keys used in BuildingDetails.Warnings.
const (
	SectionResources           = "resources"
	SectionBids                = "bids"
	SectionConstructionProject = "constructionProject"
	SectionConstructionRate    = "constructionRate"
	SectionLand                = "land"
	SectionBuilder             = "builder"
	SectionOwner               = "owner"
	SectionOccupant            = "occupant"
	SectionRunner              = "runner"
)

var sectionWarnings = map[string]string{
	SectionResources:           "Could not load building resources",
	SectionBids:                "Could not load bids",
	SectionConstructionProject: "Could not load construction project",
	SectionConstructionRate:    "Could not load construction service details",
	SectionLand:                "Could not load land details",
	SectionBuilder:             "Could not load builder profile",
	SectionOwner:               "Could not load owner profile",
	SectionOccupant:            "Could not load occupant profile",
	SectionRunner:              "Could not load runner profile",
}

type BuildingResourceSource interface {
	GetBuildingResources(ctx context.Context, buildingID string) (*model.BuildingResources, error)
}

type BidLister interface {
	ListBids(ctx context.Context, buildingID string, viewer model.Principal) (*model.BidList, error)
}

type ConstructionRateSource interface {
	GetConstructionRate(ctx context.Context, buildingID string) (*ConstructionRate, error)
}

type CitizenLookup interface {
	GetByUsername(ctx context.Context, username string) (*model.Citizen, error)
}

type BuildingDetails struct {
	Building            model.Building           `json:"building"`
	Resources           *model.BuildingResources `json:"resources,omitempty"`
	Bids                *model.BidList           `json:"bids,omitempty"`
	ConstructionProject *model.Contract          `json:"constructionProject,omitempty"`
	ConstructionRate    *ConstructionRate        `json:"constructionRate,omitempty"`
	Land                *model.Land              `json:"land,omitempty"`
	Builder             *model.Citizen           `json:"builder,omitempty"`
	Owner               *model.Citizen           `json:"owner,omitempty"`
	Occupant            *model.Citizen           `json:"occupant,omitempty"`
	Runner              *model.Citizen           `json:"runner,omitempty"`
	DefaultTab          model.ContentTab         `json:"defaultTab"`
	DefaultChatTab      model.ChatPartnerTab     `json:"defaultChatTab,omitempty"`
	Warnings            map[string]string        `json:"warnings,omitempty"`
}

type BuildingDetailsService struct {
	buildings    BuildingAPI
	contracts    ContractAPI
	resources    BuildingResourceSource
	bids         BidLister
	construction ConstructionRateSource
	citizens     CitizenLookup
	registry     *registry.Registry
	panels       *PanelStore
	subs         []*events.Subscription
	log          zerolog.Logger
}

func NewBuildingDetailsService(
	buildings BuildingAPI,
	contracts ContractAPI,
	resources BuildingResourceSource,
	bids BidLister,
	construction ConstructionRateSource,
	citizens CitizenLookup,
	reg *registry.Registry,
	bus *events.Bus,
	log zerolog.Logger,
) *BuildingDetailsService {
	s := &BuildingDetailsService{
		buildings:    buildings,
		contracts:    contracts,
		resources:    resources,
		bids:         bids,
		construction: construction,
		citizens:     citizens,
		registry:     reg,
		panels:       NewPanelStore(),
		log:          log.With().Str("service", "building_details").Logger(),
	}
	stale := func(e events.Event) {
		s.panels.MarkStale(buildingOf(e.Payload))
	}
	s.subs = append(s.subs,
		bus.Subscribe(events.ContractUpdated, stale),
		bus.Subscribe(events.BidsChanged, stale),
		bus.Subscribe(events.BuildingRefresh, stale),
		bus.Subscribe(events.NegotiationMessage, s.onNegotiationMessage),
	)
	return s
}

func (s *BuildingDetailsService) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
}

// DefaultTabs picks the content tab and chat partner a freshly selected building opens on.
func DefaultTabs(b model.Building) (model.ContentTab, model.ChatPartnerTab) {
	var content model.ContentTab
	switch {
	case b.Type == "theater":
		content = model.TabPlay
	case !b.IsConstructed:
		content = model.TabConstruction
	case b.SubCategory == "storage":
		content = model.TabProduction
	case b.Category == "business":
		content = model.TabMarket
	default:
		content = model.TabProduction
	}

	var chat model.ChatPartnerTab
	switch {
	case b.RunBy != "":
		chat = model.ChatRunBy
	case b.Owner != "":
		chat = model.ChatOwner
	case b.Occupant != "":
		chat = model.ChatOccupant
	case b.BuiltBy != "":
		chat = model.ChatBuiltBy
	}
	return content, chat
}

// Load gathers everything the building panel shows. Only the building itself is required;
// a failing section is reported in Warnings and left empty.
func (s *BuildingDetailsService) Load(ctx context.Context, buildingID string, viewer model.Principal) (*BuildingDetails, error) {
	buildingID = strings.TrimSpace(buildingID)
	if buildingID == "" {
		return nil, apperror.NewValidationError("buildingId", "is required")
	}

	details := &BuildingDetails{Warnings: map[string]string{}}
	var (
		mu          sync.Mutex
		building    *model.Building
		buildingErr error
	)
	warn := func(section string, err error) {
		mu.Lock()
		details.Warnings[section] = sectionWarnings[section]
		mu.Unlock()
		s.log.Warn().Err(err).Str("building_id", buildingID).Str("section", section).Msg("building details section failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		building, buildingErr = s.buildings.GetBuilding(gctx, buildingID)
		return nil
	})
	g.Go(func() error {
		res, err := s.resources.GetBuildingResources(gctx, buildingID)
		if err != nil {
			warn(SectionResources, err)
			return nil
		}
		details.Resources = res
		return nil
	})
	g.Go(func() error {
		bids, err := s.bids.ListBids(gctx, buildingID, viewer)
		if err != nil {
			warn(SectionBids, err)
			return nil
		}
		details.Bids = bids
		return nil
	})
	g.Go(func() error {
		project, err := s.constructionProject(gctx, buildingID)
		if err != nil {
			warn(SectionConstructionProject, err)
			return nil
		}
		details.ConstructionProject = project
		return nil
	})
	g.Go(func() error {
		rate, err := s.construction.GetConstructionRate(gctx, buildingID)
		if err != nil {
			warn(SectionConstructionRate, err)
			return nil
		}
		details.ConstructionRate = rate
		return nil
	})
	_ = g.Wait()

	if buildingErr != nil {
		if errors.Is(buildingErr, apperror.ErrNotFound) {
			return nil, apperror.NewNotFoundError("building", buildingID)
		}
		return nil, buildingErr
	}

	b := s.registry.Classify(*building)
	details.Building = b
	details.DefaultTab, details.DefaultChatTab = DefaultTabs(b)
	s.registry.SetRunBy(b.BuildingID, b.RunBy)

	builder := b.BuiltBy
	if details.ConstructionProject != nil && details.ConstructionProject.Seller != "" {
		builder = details.ConstructionProject.Seller
	}

	g, gctx = errgroup.WithContext(ctx)
	if b.LandID != "" {
		g.Go(func() error {
			land, err := s.buildings.GetLand(gctx, b.LandID)
			if err != nil {
				warn(SectionLand, err)
				return nil
			}
			details.Land = land
			s.registry.SetPolygon(b.BuildingID, *land)
			return nil
		})
	}
	profile := func(section, username string, dst **model.Citizen) {
		if username == "" {
			return
		}
		g.Go(func() error {
			c, err := s.citizens.GetByUsername(gctx, username)
			if err != nil {
				warn(section, err)
				return nil
			}
			*dst = c
			return nil
		})
	}
	profile(SectionBuilder, builder, &details.Builder)
	profile(SectionOwner, b.Owner, &details.Owner)
	profile(SectionOccupant, b.Occupant, &details.Occupant)
	profile(SectionRunner, b.RunBy, &details.Runner)
	_ = g.Wait()

	if len(details.Warnings) == 0 {
		details.Warnings = nil
	}
	return details, nil
}

func (s *BuildingDetailsService) constructionProject(ctx context.Context, buildingID string) (*model.Contract, error) {
	contracts, err := s.contracts.ListContracts(ctx, model.ContractQuery{
		Type:  model.ContractTypeConstructionProject,
		Asset: buildingID,
	})
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		if contracts[i].Status == model.ContractStatusActive || contracts[i].Status == "" {
			return &contracts[i], nil
		}
	}
	if len(contracts) > 0 {
		return &contracts[0], nil
	}
	return nil, nil
}

// Select points the viewer's panel at buildingID. Switching buildings resets the tabs to the
// building's defaults and clears the transcript; reselecting the same building keeps them.
func (s *BuildingDetailsService) Select(ctx context.Context, viewer model.Principal, buildingID string) (*Panel, error) {
	details, err := s.Load(ctx, buildingID, viewer)
	if err != nil {
		return nil, err
	}
	return s.panels.Update(viewer.Username, func(p *Panel) {
		if p.BuildingID != details.Building.BuildingID {
			p.BuildingID = details.Building.BuildingID
			p.ContentTab = details.DefaultTab
			p.ChatTab = details.DefaultChatTab
			p.Transcript = nil
		}
		p.Details = details
		p.Stale = false
	}), nil
}

// Panel returns the viewer's panel, reloading its details when they went stale.
func (s *BuildingDetailsService) Panel(ctx context.Context, viewer model.Principal) (*Panel, error) {
	current, ok := s.panels.Get(viewer.Username)
	if !ok || current.BuildingID == "" {
		return nil, apperror.NewNotFoundError("panel", viewer.Username)
	}
	if !current.Stale {
		return current, nil
	}
	return s.Select(ctx, viewer, current.BuildingID)
}

type SetTabsInput struct {
	Principal  model.Principal
	ContentTab model.ContentTab
	ChatTab    model.ChatPartnerTab
}

// SetTabs changes the selected tabs. Empty values leave a tab as it is.
func (s *BuildingDetailsService) SetTabs(in SetTabsInput) (*Panel, error) {
	if in.ContentTab != "" && !in.ContentTab.Valid() {
		return nil, apperror.NewValidationError("contentTab", "unknown tab "+string(in.ContentTab))
	}
	if in.ChatTab != "" && !in.ChatTab.Valid() {
		return nil, apperror.NewValidationError("chatTab", "unknown tab "+string(in.ChatTab))
	}
	current, ok := s.panels.Get(in.Principal.Username)
	if !ok || current.BuildingID == "" {
		return nil, apperror.NewValidationError("buildingId", "no building selected")
	}
	return s.panels.Update(in.Principal.Username, func(p *Panel) {
		if in.ContentTab != "" {
			p.ContentTab = in.ContentTab
		}
		if in.ChatTab != "" {
			p.ChatTab = in.ChatTab
		}
	}), nil
}

func (s *BuildingDetailsService) onNegotiationMessage(e events.Event) {
	update, ok := e.Payload.(events.NegotiationUpdate)
	if !ok || update.BuildingID == "" {
		return
	}
	line := TranscriptLine{
		MessageID: update.MessageID,
		Sender:    update.Sender,
		Type:      update.Type,
		Content:   update.Content,
	}
	s.panels.AppendTranscript(update.BuildingID, line, update.Sender, update.Receiver)
}

func buildingOf(payload any) string {
	switch p := payload.(type) {
	case events.ContractChange:
		return p.BuildingID
	case events.BidChange:
		return p.BuildingID
	case string:
		return p
	}
	return ""
}

type TranscriptLine struct {
	MessageID string `json:"messageId"`
	Sender    string `json:"sender"`
	Type      string `json:"type,omitempty"`
	Content   string `json:"content"`
}

// Panel is the building panel state of one viewer.
type Panel struct {
	Viewer     string               `json:"viewer"`
	BuildingID string               `json:"buildingId"`
	ContentTab model.ContentTab     `json:"contentTab"`
	ChatTab    model.ChatPartnerTab `json:"chatTab,omitempty"`
	Transcript []TranscriptLine     `json:"transcript"`
	Details    *BuildingDetails     `json:"details,omitempty"`
	Stale      bool                 `json:"stale"`
}

type PanelStore struct {
	mu     sync.Mutex
	panels map[string]*Panel
}

func NewPanelStore() *PanelStore {
	return &PanelStore{panels: make(map[string]*Panel)}
}

// Get returns a copy of the viewer's panel.
func (s *PanelStore) Get(viewer string) (*Panel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[viewer]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// Update applies fn to the viewer's panel under the store lock and returns a copy.
func (s *PanelStore) Update(viewer string, fn func(*Panel)) *Panel {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[viewer]
	if !ok {
		p = &Panel{Viewer: viewer}
		s.panels[viewer] = p
	}
	fn(p)
	return p.clone()
}

func (s *PanelStore) MarkStale(buildingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.panels {
		if buildingID == "" || p.BuildingID == buildingID {
			p.Stale = true
		}
	}
}

// AppendTranscript adds line to the panels of the given participants that show buildingID.
func (s *PanelStore) AppendTranscript(buildingID string, line TranscriptLine, participants ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, viewer := range participants {
		p, ok := s.panels[viewer]
		if !ok || p.BuildingID != buildingID {
			continue
		}
		p.Transcript = append(p.Transcript, line)
	}
}

func (p *Panel) clone() *Panel {
	c := *p
	c.Transcript = append([]TranscriptLine(nil), p.Transcript...)
	return &c
}
