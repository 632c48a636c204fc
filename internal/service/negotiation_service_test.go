package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/backend"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
	"github.com/serenissima/contracts-gateway/internal/negotiation"
)

type negotiationFixture struct {
	backend   *fakeBackend
	responses *fakeResponses
	ledger    *fakeLedger
	events    *recorder
	svc       *NegotiationService
}

func newNegotiationFixture(t *testing.T) *negotiationFixture {
	t.Helper()
	be := newFakeBackend()
	be.buildings["bld_1"] = &model.Building{BuildingID: "bld_1", Name: "Forge", Owner: "marco"}
	be.resources["bld_1"] = &model.BuildingResources{
		BuildingID: "bld_1",
		PublicSell: []model.Resource{{
			ID:          "iron_ore",
			Name:        "Iron Ore",
			Amount:      40,
			Price:       ptr(10.0),
			ImportPrice: ptr(12.0),
		}},
	}

	bus := newTestBus()
	rec := record(bus)
	resources := NewResourceService(be, bus, newTestSettings(), zerolog.Nop())
	responses := newFakeResponses()
	ledger := &fakeLedger{}
	svc := NewNegotiationService(be, resources, responses, ledger, negotiation.NewStore(), bus, zerolog.Nop())
	svc.now = fixedClock
	t.Cleanup(func() {
		svc.Close()
		resources.Close()
	})
	return &negotiationFixture{backend: be, responses: responses, ledger: ledger, events: rec, svc: svc}
}

func (f *negotiationFixture) open(t *testing.T, viewer, counterparty string) negotiation.View {
	t.Helper()
	view, err := f.svc.Open(context.Background(), OpenNegotiationInput{
		Principal:    model.Principal{Username: viewer},
		Counterparty: counterparty,
		BuildingID:   "bld_1",
		ResourceType: "iron_ore",
	})
	require.NoError(t, err)
	return view
}

func findMessage(view negotiation.View, id string) (negotiation.MessageView, bool) {
	for _, m := range view.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return negotiation.MessageView{}, false
}

func TestNegotiationOfferAndAccept(t *testing.T) {
	f := newNegotiationFixture(t)
	ctx := context.Background()
	giulia := model.Principal{Username: "giulia"}
	marco := model.Principal{Username: "marco"}

	buyer := f.open(t, "giulia", "marco")
	assert.Equal(t, negotiation.StateActive, buyer.State)
	assert.Equal(t, 0.0, buyer.MinPrice)
	assert.Equal(t, 15.0, buyer.MaxPrice)
	assert.Equal(t, 10.0, buyer.Price)

	buyer, err := f.svc.SetPrice(buyer.ID, giulia, 14)
	require.NoError(t, err)
	assert.Equal(t, 14.0, buyer.Price)

	buyer, err = f.svc.SendOffer(ctx, buyer.ID, giulia, "")
	require.NoError(t, err)
	require.Len(t, buyer.Messages, 1)
	offer := buyer.Messages[0]
	assert.False(t, offer.Pending)
	assert.False(t, offer.Actionable, "the sender cannot answer their own offer")
	assert.Equal(t, model.MessageTypeResourceBuyOffer, offer.Type)
	require.NotNil(t, offer.Context)
	require.NotNil(t, offer.Context.NegotiatedPrice)
	assert.Equal(t, 14.0, *offer.Context.NegotiatedPrice)
	assert.Contains(t, offer.Content, "Iron Ore")

	seller := f.open(t, "marco", "giulia")
	sellerOffer, ok := findMessage(seller, offer.ID)
	require.True(t, ok)
	assert.True(t, sellerOffer.Actionable)

	seller, err = f.svc.Respond(ctx, seller.ID, marco, offer.ID, true)
	require.NoError(t, err)
	sellerOffer, _ = findMessage(seller, offer.ID)
	assert.Equal(t, model.OfferAccepted, sellerOffer.Response)
	assert.False(t, sellerOffer.Actionable)

	var reply model.Message
	for _, m := range f.backend.messages {
		if m.Type == model.MessageTypeResourceBuyAccept {
			reply = m
		}
	}
	require.NotNil(t, reply.Context)
	assert.Equal(t, offer.ID, reply.Context.OriginalOfferID)
	assert.Equal(t, "giulia", reply.Receiver)

	buyer, err = f.svc.View(buyer.ID, giulia)
	require.NoError(t, err)
	buyerOffer, _ := findMessage(buyer, offer.ID)
	assert.Equal(t, model.OfferAccepted, buyerOffer.Response)
	assert.False(t, buyerOffer.Actionable)

	_, err = f.svc.Respond(ctx, seller.ID, marco, offer.ID, false)
	assert.ErrorIs(t, err, ErrOfferAlreadyAnswered)

	assert.Equal(t, model.OfferAccepted, f.responses.rows[offer.ID].Response)
	assert.Equal(t, []model.LedgerAction{model.LedgerOfferResponded}, f.ledger.actions())
	assert.Contains(t, f.events.topics(), events.OfferResponded)
}

func TestNegotiationReopenRestoresAnswers(t *testing.T) {
	f := newNegotiationFixture(t)
	ctx := context.Background()

	buyer := f.open(t, "giulia", "marco")
	buyer, err := f.svc.SendOffer(ctx, buyer.ID, model.Principal{Username: "giulia"}, "")
	require.NoError(t, err)
	offerID := buyer.Messages[0].ID

	seller := f.open(t, "marco", "giulia")
	_, err = f.svc.Respond(ctx, seller.ID, model.Principal{Username: "marco"}, offerID, false)
	require.NoError(t, err)
	require.NoError(t, f.svc.CloseSession(seller.ID, model.Principal{Username: "marco"}))

	reopened := f.open(t, "marco", "giulia")
	m, ok := findMessage(reopened, offerID)
	require.True(t, ok)
	assert.Equal(t, model.OfferRefused, m.Response)
	assert.False(t, m.Actionable)
}

func (f *negotiationFixture) offerFromGiulia(t *testing.T) (negotiation.View, string) {
	t.Helper()
	buyer := f.open(t, "giulia", "marco")
	buyer, err := f.svc.SendOffer(context.Background(), buyer.ID, model.Principal{Username: "giulia"}, "")
	require.NoError(t, err)
	seller := f.open(t, "marco", "giulia")
	return seller, buyer.Messages[0].ID
}

func (f *negotiationFixture) repliesTo(offerID string) int {
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	n := 0
	for _, m := range f.backend.messages {
		if m.Context != nil && m.Context.OriginalOfferID == offerID {
			n++
		}
	}
	return n
}

func TestRespondAnswersOnceWhenConcurrent(t *testing.T) {
	f := newNegotiationFixture(t)
	seller, offerID := f.offerFromGiulia(t)
	marco := model.Principal{Username: "marco"}

	entered := make(chan struct{}, 2)
	gate := make(chan struct{})
	f.backend.beforeSend = func(req backend.SendMessageRequest) {
		if req.Context != nil && req.Context.OriginalOfferID == offerID {
			entered <- struct{}{}
			<-gate
		}
	}

	results := make(chan error, 2)
	for _, accept := range []bool{true, false} {
		accept := accept
		go func() {
			_, err := f.svc.Respond(context.Background(), seller.ID, marco, offerID, accept)
			results <- err
		}()
	}

	// The call that holds the offer is parked in the send; the other one must give up.
	assert.ErrorIs(t, <-results, ErrOfferAlreadyAnswered)
	<-entered
	close(gate)
	assert.NoError(t, <-results)

	assert.Empty(t, entered)
	assert.Equal(t, 1, f.repliesTo(offerID))
	assert.Equal(t, []model.LedgerAction{model.LedgerOfferResponded}, f.ledger.actions())
	row, ok := f.responses.row(offerID)
	require.True(t, ok)
	assert.NotEmpty(t, row.ResponseMessageID)

	view, err := f.svc.View(seller.ID, marco)
	require.NoError(t, err)
	m, _ := findMessage(view, offerID)
	assert.Equal(t, row.Response, m.Response)
}

func TestRespondSeesAnswerStoredElsewhere(t *testing.T) {
	f := newNegotiationFixture(t)
	seller, offerID := f.offerFromGiulia(t)
	marco := model.Principal{Username: "marco"}

	inserted, err := f.responses.Save(context.Background(), model.OfferResponse{
		MessageID:   offerID,
		Response:    model.OfferRefused,
		RespondedBy: "marco",
	})
	require.NoError(t, err)
	require.True(t, inserted)

	_, err = f.svc.Respond(context.Background(), seller.ID, marco, offerID, true)
	assert.ErrorIs(t, err, ErrOfferAlreadyAnswered)
	assert.Zero(t, f.repliesTo(offerID))

	view, err := f.svc.View(seller.ID, marco)
	require.NoError(t, err)
	m, _ := findMessage(view, offerID)
	assert.Equal(t, model.OfferRefused, m.Response)
	assert.False(t, m.Actionable)
}

func TestRespondReleasesClaimWhenSendFails(t *testing.T) {
	f := newNegotiationFixture(t)
	seller, offerID := f.offerFromGiulia(t)
	marco := model.Principal{Username: "marco"}

	f.backend.fail["SendMessage"] = errors.New("backend down")
	_, err := f.svc.Respond(context.Background(), seller.ID, marco, offerID, true)
	require.Error(t, err)
	_, stored := f.responses.row(offerID)
	assert.False(t, stored)
	assert.Empty(t, f.ledger.actions())

	delete(f.backend.fail, "SendMessage")
	view, err := f.svc.Respond(context.Background(), seller.ID, marco, offerID, true)
	require.NoError(t, err)
	m, _ := findMessage(view, offerID)
	assert.Equal(t, model.OfferAccepted, m.Response)
	assert.Equal(t, 1, f.repliesTo(offerID))
}

func TestRespondChecks(t *testing.T) {
	f := newNegotiationFixture(t)
	ctx := context.Background()
	giulia := model.Principal{Username: "giulia"}

	buyer := f.open(t, "giulia", "marco")
	buyer, err := f.svc.SendMessage(ctx, buyer.ID, giulia, "Good morning")
	require.NoError(t, err)
	chatID := buyer.Messages[0].ID
	buyer, err = f.svc.SendOffer(ctx, buyer.ID, giulia, "")
	require.NoError(t, err)
	offerID := buyer.Messages[1].ID

	_, err = f.svc.Respond(ctx, buyer.ID, giulia, "msg-missing", true)
	var onf *apperror.OfferNotFoundError
	assert.ErrorAs(t, err, &onf)

	_, err = f.svc.Respond(ctx, buyer.ID, giulia, chatID, true)
	assert.ErrorIs(t, err, ErrNotAnOffer)

	_, err = f.svc.Respond(ctx, buyer.ID, giulia, offerID, true)
	assert.ErrorIs(t, err, apperror.ErrPermissionDenied)

	_, err = f.svc.View(buyer.ID, model.Principal{Username: "marco"})
	assert.ErrorIs(t, err, apperror.ErrNotFound, "sessions belong to their viewer")
}

func TestSendRollsBackOnFailure(t *testing.T) {
	f := newNegotiationFixture(t)
	giulia := model.Principal{Username: "giulia"}
	buyer := f.open(t, "giulia", "marco")

	f.backend.fail["SendMessage"] = errors.New("backend down")
	_, err := f.svc.SendMessage(context.Background(), buyer.ID, giulia, "hello")
	require.Error(t, err)

	view, err := f.svc.View(buyer.ID, giulia)
	require.NoError(t, err)
	for _, m := range view.Messages {
		assert.False(t, strings.HasPrefix(m.ID, negotiation.TempIDPrefix))
	}
	assert.Empty(t, view.Messages)
	assert.NotContains(t, f.events.topics(), events.NegotiationMessage)
}

func TestOpenValidation(t *testing.T) {
	f := newNegotiationFixture(t)
	_, err := f.svc.Open(context.Background(), OpenNegotiationInput{
		Principal:    model.Principal{Username: "giulia"},
		Counterparty: "giulia",
		BuildingID:   "bld_1",
		ResourceType: "iron_ore",
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	f.backend.fail["ListMessages"] = errors.New("backend down")
	_, err = f.svc.Open(context.Background(), OpenNegotiationInput{
		Principal:    model.Principal{Username: "giulia"},
		Counterparty: "marco",
		BuildingID:   "bld_1",
		ResourceType: "iron_ore",
	})
	require.Error(t, err)
	assert.Zero(t, f.svc.sessions.Len())
}

func TestEvictIdleSessions(t *testing.T) {
	f := newNegotiationFixture(t)
	f.open(t, "giulia", "marco")
	require.Equal(t, 1, f.svc.sessions.Len())

	assert.Zero(t, f.svc.EvictIdle(time.Minute))
	f.svc.now = func() time.Time { return testNow.Add(31 * time.Minute) }
	assert.Equal(t, 1, f.svc.EvictIdle(30*time.Minute))
	assert.Zero(t, f.svc.sessions.Len())
}
