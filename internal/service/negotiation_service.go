package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/backend"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
	"github.com/serenissima/contracts-gateway/internal/negotiation"
	"github.com/serenissima/contracts-gateway/internal/optimistic"
)

type ResourceLookup interface {
	Resource(ctx context.Context, buildingID, resourceType string) (model.Resource, error)
}

type NegotiationService struct {
	messages  MessageAPI
	resources ResourceLookup
	responses ResponseStore
	ledger    LedgerStore
	sessions  *negotiation.Store
	claimsMu  sync.Mutex
	claims    map[string]struct{}
	bus       *events.Bus
	sub       *events.Subscription
	log       zerolog.Logger
	now       func() time.Time
}

func NewNegotiationService(
	messages MessageAPI,
	resources ResourceLookup,
	responses ResponseStore,
	ledger LedgerStore,
	sessions *negotiation.Store,
	bus *events.Bus,
	log zerolog.Logger,
) *NegotiationService {
	s := &NegotiationService{
		messages:  messages,
		resources: resources,
		responses: responses,
		ledger:    ledger,
		sessions:  sessions,
		claims:    make(map[string]struct{}),
		bus:       bus,
		log:       log.With().Str("service", "negotiation").Logger(),
		now:       time.Now,
	}
	s.sub = bus.Subscribe(events.OfferResponded, s.onOfferResponded)
	return s
}

// onOfferResponded marks the offer answered in every other open session showing it.
func (s *NegotiationService) onOfferResponded(e events.Event) {
	update, ok := e.Payload.(events.NegotiationUpdate)
	if !ok || update.MessageID == "" {
		return
	}
	kind := model.OfferResponseKind(update.Response)
	s.sessions.Each(func(session *negotiation.Session) {
		if _, shown := session.Message(update.MessageID); shown {
			session.RecordResponse(update.MessageID, kind)
		}
	})
}

func (s *NegotiationService) Close() {
	s.sub.Unsubscribe()
}

type OpenNegotiationInput struct {
	Principal    model.Principal
	Counterparty string
	BuildingID   string
	ResourceType string
}

// Open creates a session and loads the thread. A failed load leaves no session behind.
func (s *NegotiationService) Open(ctx context.Context, in OpenNegotiationInput) (negotiation.View, error) {
	if strings.TrimSpace(in.Counterparty) == "" {
		return negotiation.View{}, apperror.NewValidationError("counterparty", "is required")
	}
	if in.Principal.Is(in.Counterparty) {
		return negotiation.View{}, apperror.NewValidationError("counterparty", "cannot negotiate with yourself")
	}
	if err := requireIDs(in.BuildingID, in.ResourceType); err != nil {
		return negotiation.View{}, err
	}

	resource, err := s.resources.Resource(ctx, in.BuildingID, in.ResourceType)
	if err != nil {
		return negotiation.View{}, err
	}

	session := negotiation.NewSession(negotiation.Params{
		ID:           uuid.NewString(),
		Viewer:       in.Principal.Username,
		Counterparty: in.Counterparty,
		BuildingID:   in.BuildingID,
		Resource:     resource,
	}, s.now())
	if err := session.BeginLoad(s.now()); err != nil {
		return negotiation.View{}, err
	}

	thread, err := s.messages.ListMessages(ctx, in.Principal.Username, in.Counterparty)
	if err != nil {
		session.Fail()
		return negotiation.View{}, err
	}
	persisted, err := s.persistedResponses(ctx, thread)
	if err != nil {
		session.Fail()
		return negotiation.View{}, err
	}
	session.Activate(thread, persisted, s.now())
	s.sessions.Put(session)
	return session.View(), nil
}

func (s *NegotiationService) persistedResponses(ctx context.Context, thread []model.Message) (map[string]model.OfferResponseKind, error) {
	if s.responses == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(thread))
	for _, msg := range thread {
		if msg.Type.IsOffer() {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.responses.ListByMessageIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.OfferResponseKind, len(rows))
	for id, row := range rows {
		out[id] = row.Response
	}
	return out, nil
}

func (s *NegotiationService) session(id string, principal model.Principal) (*negotiation.Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok || !principal.Is(session.Viewer()) {
		return nil, apperror.NewNotFoundError("negotiation", id)
	}
	if session.State() != negotiation.StateActive {
		return nil, ErrSessionNotActive
	}
	session.Touch(s.now())
	return session, nil
}

func (s *NegotiationService) View(id string, principal model.Principal) (negotiation.View, error) {
	session, err := s.session(id, principal)
	if err != nil {
		return negotiation.View{}, err
	}
	return session.View(), nil
}

func (s *NegotiationService) SetPrice(id string, principal model.Principal, price float64) (negotiation.View, error) {
	session, err := s.session(id, principal)
	if err != nil {
		return negotiation.View{}, err
	}
	if _, err := session.SetPrice(price, s.now()); err != nil {
		return negotiation.View{}, err
	}
	return session.View(), nil
}

// SendMessage appends a chat message at once and confirms or drops it depending on the
// backend answer.
func (s *NegotiationService) SendMessage(ctx context.Context, id string, principal model.Principal, content string) (negotiation.View, error) {
	session, err := s.session(id, principal)
	if err != nil {
		return negotiation.View{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return negotiation.View{}, apperror.NewValidationError("content", "is required")
	}
	_, err = s.send(ctx, session, backend.SendMessageRequest{
		Sender:   session.Viewer(),
		Receiver: session.Counterparty(),
		Content:  content,
		Type:     model.MessageTypeChat,
	})
	if err != nil {
		return negotiation.View{}, err
	}
	return session.View(), nil
}

// SendOffer proposes a daily purchase at the current slider price.
func (s *NegotiationService) SendOffer(ctx context.Context, id string, principal model.Principal, content string) (negotiation.View, error) {
	session, err := s.session(id, principal)
	if err != nil {
		return negotiation.View{}, err
	}
	price := session.Price()
	resource := session.Resource()
	if strings.TrimSpace(content) == "" {
		content = fmt.Sprintf("I propose to buy %s daily at %s Ducats per unit.", resourceLabel(resource), formatPrice(price))
	}
	_, err = s.send(ctx, session, backend.SendMessageRequest{
		Sender:   session.Viewer(),
		Receiver: session.Counterparty(),
		Content:  content,
		Type:     model.MessageTypeResourceBuyOffer,
		Context: &model.MessageContext{
			BuildingID:      session.BuildingID(),
			ResourceType:    resource.ID,
			NegotiatedPrice: &price,
		},
	})
	if err != nil {
		return negotiation.View{}, err
	}
	return session.View(), nil
}

// Respond accepts or refuses an offer. Only its receiver may answer, and only once. The
// answer is claimed before the response message is sent and released if the send fails.
func (s *NegotiationService) Respond(ctx context.Context, id string, principal model.Principal, messageID string, accept bool) (negotiation.View, error) {
	session, err := s.session(id, principal)
	if err != nil {
		return negotiation.View{}, err
	}
	offer, ok := session.Message(messageID)
	if !ok {
		return negotiation.View{}, apperror.NewOfferNotFoundError(messageID)
	}
	if !offer.Type.IsOffer() {
		return negotiation.View{}, ErrNotAnOffer
	}
	if !principal.Is(offer.Receiver) {
		return negotiation.View{}, apperror.NewUnauthorizedActionError("respond_to_offer", "only the receiver of an offer can answer it")
	}
	if !s.claim(messageID) {
		return negotiation.View{}, ErrOfferAlreadyAnswered
	}
	defer s.release(messageID)
	if _, answered := session.Response(messageID); answered {
		return negotiation.View{}, ErrOfferAlreadyAnswered
	}

	kind := model.OfferRefused
	msgType := model.MessageTypeResourceBuyRefuse
	if accept {
		kind = model.OfferAccepted
		msgType = model.MessageTypeResourceBuyAccept
	}
	resp := model.OfferResponse{
		MessageID:   messageID,
		Response:    kind,
		RespondedBy: principal.Username,
		CreatedAt:   s.now(),
	}
	if err := s.reserve(ctx, session, resp); err != nil {
		return negotiation.View{}, err
	}

	offerCtx := model.MessageContext{BuildingID: session.BuildingID(), ResourceType: session.Resource().ID}
	if offer.Context != nil {
		offerCtx = *offer.Context
	}
	offerCtx.OriginalOfferID = messageID

	confirmed, err := s.send(ctx, session, backend.SendMessageRequest{
		Sender:   session.Viewer(),
		Receiver: offer.Sender,
		Content:  responseText(accept, offerCtx.NegotiatedPrice, session.Resource()),
		Type:     msgType,
		Context:  &offerCtx,
	})
	if err != nil {
		s.unreserve(ctx, messageID)
		return negotiation.View{}, err
	}

	if !session.RecordResponse(messageID, kind) {
		s.log.Warn().Str("message_id", messageID).Msg("offer answered twice in session")
	}
	resp.ResponseMessageID = confirmed.ID
	s.persistResponse(ctx, session, resp, offerCtx.NegotiatedPrice)

	s.bus.Emit(events.OfferResponded, events.NegotiationUpdate{
		SessionID:  session.ID(),
		MessageID:  messageID,
		Sender:     principal.Username,
		Receiver:   offer.Sender,
		BuildingID: session.BuildingID(),
		Resource:   session.Resource().ID,
		Response:   string(kind),
	})
	return session.View(), nil
}

// claim reports false while another Respond call holds messageID.
func (s *NegotiationService) claim(messageID string) bool {
	s.claimsMu.Lock()
	defer s.claimsMu.Unlock()
	if _, held := s.claims[messageID]; held {
		return false
	}
	s.claims[messageID] = struct{}{}
	return true
}

func (s *NegotiationService) release(messageID string) {
	s.claimsMu.Lock()
	delete(s.claims, messageID)
	s.claimsMu.Unlock()
}

// reserve stores the answer ahead of the send so other gateway instances see the offer
// as taken. A lost race records the stored answer in the session.
func (s *NegotiationService) reserve(ctx context.Context, session *negotiation.Session, resp model.OfferResponse) error {
	if s.responses == nil {
		return nil
	}
	inserted, err := s.responses.Save(ctx, resp)
	if err != nil {
		return err
	}
	if inserted {
		return nil
	}
	rows, err := s.responses.ListByMessageIDs(ctx, []string{resp.MessageID})
	if err != nil {
		s.log.Warn().Err(err).Str("message_id", resp.MessageID).Msg("load stored offer response failed")
	} else if row, ok := rows[resp.MessageID]; ok {
		session.RecordResponse(resp.MessageID, row.Response)
	}
	return ErrOfferAlreadyAnswered
}

func (s *NegotiationService) unreserve(ctx context.Context, messageID string) {
	if s.responses == nil {
		return
	}
	if err := s.responses.Delete(context.WithoutCancel(ctx), messageID); err != nil {
		s.log.Warn().Err(err).Str("message_id", messageID).Msg("release offer response failed")
	}
}

func (s *NegotiationService) persistResponse(ctx context.Context, session *negotiation.Session, resp model.OfferResponse, price *float64) {
	if s.responses != nil {
		if err := s.responses.AttachResponseMessage(ctx, resp.MessageID, resp.ResponseMessageID); err != nil {
			s.log.Warn().Err(err).Str("message_id", resp.MessageID).Msg("persist offer response failed")
		}
	}
	if s.ledger == nil {
		return
	}
	amount := 0.0
	if price != nil {
		amount = *price
	}
	err := s.ledger.Record(ctx, model.LedgerEntry{
		ID:           uuid.New(),
		BuildingID:   session.BuildingID(),
		Action:       model.LedgerOfferResponded,
		ResourceType: session.Resource().ID,
		Actor:        resp.RespondedBy,
		Amount:       amount,
		Details:      string(resp.Response),
		CreatedAt:    resp.CreatedAt,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("message_id", resp.MessageID).Msg("ledger record failed")
	}
}

func (s *NegotiationService) send(ctx context.Context, session *negotiation.Session, req backend.SendMessageRequest) (model.Message, error) {
	pending := model.Message{
		ID:        negotiation.TempIDPrefix + uuid.NewString(),
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Content:   req.Content,
		Type:      req.Type,
		CreatedAt: s.now(),
		Context:   req.Context,
	}
	confirmed, err := optimistic.Apply(ctx, optimistic.Mutation[model.Message]{
		Pending: pending,
		Insert:  session.Insert,
		Commit: func(ctx context.Context) (model.Message, error) {
			msg, err := s.messages.SendMessage(ctx, req)
			if err != nil {
				return model.Message{}, err
			}
			return *msg, nil
		},
		Reconcile: func(p, c model.Message) { session.Replace(p.ID, c) },
		Rollback:  func(p model.Message) { session.Remove(p.ID) },
	})
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID()).Str("type", string(req.Type)).Msg("message send failed, rolled back")
		return model.Message{}, err
	}
	s.bus.Emit(events.NegotiationMessage, events.NegotiationUpdate{
		SessionID:  session.ID(),
		MessageID:  confirmed.ID,
		Sender:     confirmed.Sender,
		Receiver:   confirmed.Receiver,
		BuildingID: session.BuildingID(),
		Resource:   session.Resource().ID,
		Type:       string(confirmed.Type),
		Content:    confirmed.Content,
	})
	return confirmed, nil
}

func (s *NegotiationService) CloseSession(id string, principal model.Principal) error {
	session, ok := s.sessions.Get(id)
	if !ok || !principal.Is(session.Viewer()) {
		return apperror.NewNotFoundError("negotiation", id)
	}
	session.Close()
	s.sessions.Delete(id)
	return nil
}

// EvictIdle closes sessions nobody has touched for maxIdle.
func (s *NegotiationService) EvictIdle(maxIdle time.Duration) int {
	return s.sessions.EvictIdle(s.now().Add(-maxIdle))
}

func IsSessionInactive(err error) bool {
	return errors.Is(err, ErrSessionNotActive) || errors.Is(err, negotiation.ErrNotActive)
}

func responseText(accept bool, price *float64, resource model.Resource) string {
	priceText := ""
	if price != nil {
		priceText = fmt.Sprintf(" of %s Ducats per unit", formatPrice(*price))
	}
	if accept {
		return fmt.Sprintf("I accept your offer%s for %s.", priceText, resourceLabel(resource))
	}
	return fmt.Sprintf("I must refuse your offer%s for %s.", priceText, resourceLabel(resource))
}

func resourceLabel(r model.Resource) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

func formatPrice(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
