package negotiation

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/serenissima/contracts-gateway/internal/model"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateActive  State = "active"
)

const TempIDPrefix = "temp-"

var (
	ErrNotIdle   = errors.New("negotiation is already open")
	ErrNotActive = errors.New("negotiation is not active")
)

type Params struct {
	ID           string
	Viewer       string
	Counterparty string
	BuildingID   string
	Resource     model.Resource
}

// Session is one open negotiation panel: the thread between two citizens about one
// resource at one building, the price slider and the local answer state of offers.
type Session struct {
	mu sync.Mutex

	id           string
	viewer       string
	counterparty string
	buildingID   string
	resource     model.Resource

	state     State
	messages  []model.Message
	responses map[string]model.OfferResponseKind
	price     float64
	minPrice  float64
	maxPrice  float64
	touchedAt time.Time
}

func NewSession(p Params, now time.Time) *Session {
	var publicPrice, importPrice float64
	if p.Resource.Price != nil {
		publicPrice = *p.Resource.Price
	}
	if p.Resource.ImportPrice != nil {
		importPrice = *p.Resource.ImportPrice
	}
	minPrice, maxPrice := PriceBounds(publicPrice, importPrice)
	start := publicPrice
	if start <= 0 {
		start = importPrice
	}

	return &Session{
		id:           p.ID,
		viewer:       p.Viewer,
		counterparty: p.Counterparty,
		buildingID:   p.BuildingID,
		resource:     p.Resource,
		state:        StateIdle,
		responses:    make(map[string]model.OfferResponseKind),
		price:        clamp(start, minPrice, maxPrice),
		minPrice:     minPrice,
		maxPrice:     maxPrice,
		touchedAt:    now,
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Viewer() string       { return s.viewer }
func (s *Session) Counterparty() string { return s.counterparty }
func (s *Session) BuildingID() string   { return s.buildingID }

func (s *Session) Resource() model.Resource {
	return s.resource
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) BeginLoad(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrNotIdle
	}
	s.state = StateLoading
	s.touchedAt = now
	return nil
}

// Activate installs the loaded thread. Messages about another building or resource are
// dropped; answers found in the thread and the persisted ones mark their offers answered.
func (s *Session) Activate(thread []model.Message, persisted map[string]model.OfferResponseKind, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = s.messages[:0]
	for _, msg := range thread {
		if s.relevant(msg) {
			s.messages = append(s.messages, msg)
		}
	}
	for _, msg := range s.messages {
		if !msg.Type.IsResponse() || msg.Context == nil || msg.Context.OriginalOfferID == "" {
			continue
		}
		s.responses[msg.Context.OriginalOfferID] = responseKind(msg.Type)
	}
	for id, kind := range persisted {
		s.responses[id] = kind
	}
	s.state = StateActive
	s.touchedAt = now
}

// Fail returns a loading session to idle.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading {
		s.state = StateIdle
	}
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.messages = nil
	s.responses = make(map[string]model.OfferResponseKind)
}

func (s *Session) relevant(msg model.Message) bool {
	if msg.Context == nil {
		return true
	}
	if msg.Context.BuildingID != "" && msg.Context.BuildingID != s.buildingID {
		return false
	}
	if msg.Context.ResourceType != "" && msg.Context.ResourceType != s.resource.ID {
		return false
	}
	return true
}

func responseKind(t model.MessageType) model.OfferResponseKind {
	if t == model.MessageTypeResourceBuyAccept {
		return model.OfferAccepted
	}
	return model.OfferRefused
}

// SetPrice moves the slider, clamped to the negotiable range, and returns the new value.
func (s *Session) SetPrice(price float64, now time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return 0, ErrNotActive
	}
	s.price = clamp(price, s.minPrice, s.maxPrice)
	s.touchedAt = now
	return s.price, nil
}

func (s *Session) Price() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price
}

func (s *Session) Bounds() (float64, float64) {
	return s.minPrice, s.maxPrice
}

func (s *Session) Insert(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Replace swaps the message with id for msg, keeping its position.
func (s *Session) Replace(id string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i] = msg
			return
		}
	}
	s.messages = append(s.messages, msg)
}

func (s *Session) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

func (s *Session) Message(id string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return model.Message{}, false
}

func (s *Session) Response(messageID string) (model.OfferResponseKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.responses[messageID]
	return kind, ok
}

// RecordResponse marks an offer answered. It returns false if it already was.
func (s *Session) RecordResponse(messageID string, kind model.OfferResponseKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.responses[messageID]; done {
		return false
	}
	s.responses[messageID] = kind
	return true
}

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.touchedAt = now
	s.mu.Unlock()
}

func (s *Session) TouchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

type MessageView struct {
	model.Message
	Pending    bool                    `json:"pending"`
	Response   model.OfferResponseKind `json:"response,omitempty"`
	Actionable bool                    `json:"actionable"`
}

type View struct {
	ID           string         `json:"id"`
	State        State          `json:"state"`
	Viewer       string         `json:"viewer"`
	Counterparty string         `json:"counterparty"`
	BuildingID   string         `json:"buildingId"`
	Resource     model.Resource `json:"resource"`
	Price        float64        `json:"price"`
	MinPrice     float64        `json:"minPrice"`
	MaxPrice     float64        `json:"maxPrice"`
	Messages     []MessageView  `json:"messages"`
}

// View renders the thread for the session's viewer. Accept and refuse are offered only
// to the receiver of an unanswered offer.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]MessageView, 0, len(s.messages))
	for _, msg := range s.messages {
		mv := MessageView{Message: msg, Pending: strings.HasPrefix(msg.ID, TempIDPrefix)}
		if kind, ok := s.responses[msg.ID]; ok {
			mv.Response = kind
		}
		mv.Actionable = msg.Type.IsOffer() &&
			!mv.Pending &&
			mv.Response == "" &&
			msg.Receiver == s.viewer
		messages = append(messages, mv)
	}

	return View{
		ID:           s.id,
		State:        s.state,
		Viewer:       s.viewer,
		Counterparty: s.counterparty,
		BuildingID:   s.buildingID,
		Resource:     s.resource,
		Price:        s.price,
		MinPrice:     s.minPrice,
		MaxPrice:     s.maxPrice,
		Messages:     messages,
	}
}
