package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Domain topics drive cache invalidation.
const (
	TransactionCreated   = "TRANSACTION_CREATED"
	TransactionExecuted  = "TRANSACTION_EXECUTED"
	ListingCancelled     = "LISTING_CANCELLED"
	OfferAccepted        = "OFFER_ACCEPTED"
	LandOwnershipChanged = "LAND_OWNERSHIP_CHANGED"
	CitizenProfileUpdate = "CITIZEN_PROFILE_UPDATED"
	WalletChanged        = "WALLET_CHANGED"
)

// UI topics are forwarded to browsers.
const (
	ContractUpdated    = "CONTRACT_UPDATED"
	BidsChanged        = "BIDS_CHANGED"
	NegotiationMessage = "NEGOTIATION_MESSAGE"
	OfferResponded     = "OFFER_RESPONDED"
	ShowNotification   = "SHOW_NOTIFICATION"
	BuildingRefresh    = "BUILDING_REFRESH"
	ShowCitizenPanel   = "SHOW_CITIZEN_PANEL"
)

const allTopics = "*"

type Event struct {
	Topic   string `json:"type"`
	Payload any    `json:"payload"`
}

type Handler func(Event)

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus is an in-process publish/subscribe channel. Delivery is synchronous and follows
// registration order; a panicking handler is logged and does not stop delivery to the
// handlers registered after it.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscriber
	nextID uint64
	log    zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[string][]subscriber),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

type Subscription struct {
	bus   *Bus
	topic string
	id    uint64
	once  sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.topic, s.id)
	})
}

func (b *Bus) Subscribe(topic string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, handler: handler})
	return &Subscription{bus: b, topic: topic, id: id}
}

// SubscribeAll registers handler for every topic. Wildcard handlers run after the
// topic-specific ones.
func (b *Bus) SubscribeAll(handler Handler) *Subscription {
	return b.Subscribe(allTopics, handler)
}

func (b *Bus) Emit(topic string, payload any) {
	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.subs[topic])+len(b.subs[allTopics]))
	targets = append(targets, b.subs[topic]...)
	if topic != allTopics {
		targets = append(targets, b.subs[allTopics]...)
	}
	b.mu.RUnlock()

	event := Event{Topic: topic, Payload: payload}
	for _, sub := range targets {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("topic", event.Topic).
				Uint64("subscriber", sub.id).
				Str("panic", fmt.Sprint(r)).
				Msg("event handler panicked")
		}
	}()
	sub.handler(event)
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.subs[topic]
	for i, sub := range current {
		if sub.id == id {
			next := make([]subscriber, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			b.subs[topic] = next
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
