package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/backend"
	"github.com/serenissima/contracts-gateway/internal/cache"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
)

var testNow = time.Date(1525, time.March, 3, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestBus() *events.Bus {
	return events.NewBus(zerolog.Nop())
}

func newTestSettings() *cache.Settings {
	return cache.NewSettings(cache.Config{Enabled: true, TTL: cache.DefaultTTL}, cache.WithClock(fixedClock))
}

func ptr[T any](v T) *T { return &v }

// fakeBackend stands in for the game backend. Every call is counted by name.
type fakeBackend struct {
	mu sync.Mutex

	buildings     map[string]*model.Building
	resources     map[string]*model.BuildingResources
	resourceTypes []model.ResourceType
	lands         map[string]*model.Land
	citizens      map[string]*model.Citizen
	contracts     []model.Contract
	messages      []model.Message
	activities    []model.ActivityRequest
	transactions  map[string]*model.Transaction

	fail  map[string]error
	calls map[string]int
	seq   int

	// beforeSend runs outside the lock so tests can hold a send in flight.
	beforeSend func(req backend.SendMessageRequest)
	// onHit runs while a call is in flight, before its result is returned.
	onHit func(name string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		buildings:    map[string]*model.Building{},
		resources:    map[string]*model.BuildingResources{},
		lands:        map[string]*model.Land{},
		citizens:     map[string]*model.Citizen{},
		transactions: map[string]*model.Transaction{},
		fail:         map[string]error{},
		calls:        map[string]int{},
	}
}

func (f *fakeBackend) hit(name string) error {
	f.calls[name]++
	if f.onHit != nil {
		f.onHit(name)
	}
	return f.fail[name]
}

func (f *fakeBackend) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) ListContracts(_ context.Context, q model.ContractQuery) ([]model.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ListContracts:" + string(q.Type)); err != nil {
		return nil, err
	}
	out := []model.Contract{}
	for _, c := range f.contracts {
		if q.Type != "" && c.Type != q.Type {
			continue
		}
		if q.SellerBuilding != "" && c.SellerBuilding != q.SellerBuilding {
			continue
		}
		if q.ResourceType != "" && c.ResourceType != q.ResourceType {
			continue
		}
		if q.Asset != "" && c.Asset != q.Asset {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeBackend) UpsertContract(_ context.Context, key string, patch model.ContractPatch) (*model.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("UpsertContract"); err != nil {
		return nil, err
	}
	idx := -1
	for i := range f.contracts {
		if f.contracts[i].ContractID == key {
			idx = i
		}
	}
	if idx < 0 {
		f.contracts = append(f.contracts, model.Contract{ContractID: key})
		idx = len(f.contracts) - 1
	}
	c := &f.contracts[idx]
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.Seller != nil {
		c.Seller = *patch.Seller
	}
	if patch.SellerBuilding != nil {
		c.SellerBuilding = *patch.SellerBuilding
	}
	if patch.ResourceType != nil {
		c.ResourceType = *patch.ResourceType
	}
	if patch.PricePerResource != nil {
		c.PricePerResource = *patch.PricePerResource
	}
	if patch.TargetAmount != nil {
		c.TargetAmount = *patch.TargetAmount
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	out := *c
	return &out, nil
}

func (f *fakeBackend) GetBuilding(_ context.Context, id string) (*model.Building, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetBuilding"); err != nil {
		return nil, err
	}
	b, ok := f.buildings[id]
	if !ok {
		return nil, apperror.NewNotFoundError("building", id)
	}
	out := *b
	return &out, nil
}

func (f *fakeBackend) GetBuildingResources(_ context.Context, id string) (*model.BuildingResources, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetBuildingResources"); err != nil {
		return nil, err
	}
	r, ok := f.resources[id]
	if !ok {
		return &model.BuildingResources{BuildingID: id}, nil
	}
	return r, nil
}

func (f *fakeBackend) ListResourceTypes(context.Context) ([]model.ResourceType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ListResourceTypes"); err != nil {
		return nil, err
	}
	return f.resourceTypes, nil
}

func (f *fakeBackend) GetLand(_ context.Context, landID string) (*model.Land, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetLand"); err != nil {
		return nil, err
	}
	land, ok := f.lands[landID]
	if !ok {
		return nil, apperror.NewNotFoundError("land", landID)
	}
	return land, nil
}

func (f *fakeBackend) TryCreateActivity(_ context.Context, req model.ActivityRequest) (*model.ActivityResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("TryCreateActivity"); err != nil {
		return nil, err
	}
	f.activities = append(f.activities, req)
	f.seq++
	return &model.ActivityResult{Success: true, ActivityID: fmt.Sprintf("act-%d", f.seq)}, nil
}

func (f *fakeBackend) lastActivity() model.ActivityRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.activities) == 0 {
		return model.ActivityRequest{}
	}
	return f.activities[len(f.activities)-1]
}

func (f *fakeBackend) ListMessages(_ context.Context, current, other string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ListMessages"); err != nil {
		return nil, err
	}
	out := []model.Message{}
	for _, m := range f.messages {
		if (m.Sender == current && m.Receiver == other) || (m.Sender == other && m.Receiver == current) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) SendMessage(_ context.Context, req backend.SendMessageRequest) (*model.Message, error) {
	if f.beforeSend != nil {
		f.beforeSend(req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("SendMessage"); err != nil {
		return nil, err
	}
	f.seq++
	msg := model.Message{
		ID:        fmt.Sprintf("msg-%d", f.seq),
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Content:   req.Content,
		Type:      req.Type,
		CreatedAt: testNow,
		Context:   req.Context,
	}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeBackend) GetCitizen(_ context.Context, username string) (*model.Citizen, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetCitizen:" + username); err != nil {
		return nil, err
	}
	f.calls["GetCitizen"]++
	c, ok := f.citizens[username]
	if !ok {
		return nil, apperror.NewNotFoundError("citizen", username)
	}
	return c, nil
}

func (f *fakeBackend) GetCitizenByWallet(_ context.Context, wallet string) (*model.Citizen, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetCitizenByWallet"); err != nil {
		return nil, err
	}
	for _, c := range f.citizens {
		if c.WalletAddress == wallet {
			return c, nil
		}
	}
	return nil, apperror.NewNotFoundError("citizen", wallet)
}

func (f *fakeBackend) ListTransactionsByAsset(_ context.Context, assetID string) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ListTransactionsByAsset"); err != nil {
		return nil, err
	}
	out := []model.Transaction{}
	for _, tx := range f.transactions {
		if tx.Asset == assetID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListTransactionsBySeller(_ context.Context, seller string) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ListTransactionsBySeller"); err != nil {
		return nil, err
	}
	out := []model.Transaction{}
	for _, tx := range f.transactions {
		if tx.Seller == seller {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateTransaction(_ context.Context, req model.TransactionRequest) (*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("CreateTransaction"); err != nil {
		return nil, err
	}
	f.seq++
	tx := &model.Transaction{
		ID:        fmt.Sprintf("tx-%d", f.seq),
		Type:      req.Type,
		Asset:     req.Asset,
		AssetType: req.AssetType,
		Seller:    req.Seller,
		Buyer:     req.Buyer,
		Price:     req.Price,
	}
	f.transactions[tx.ID] = tx
	return tx, nil
}

func (f *fakeBackend) transition(name, id string) (*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(name); err != nil {
		return nil, err
	}
	tx, ok := f.transactions[id]
	if !ok {
		if name == "AcceptOffer" {
			return nil, apperror.NewOfferNotFoundError(id)
		}
		return nil, apperror.NewListingNotFoundError(id)
	}
	out := *tx
	return &out, nil
}

func (f *fakeBackend) ExecuteTransaction(_ context.Context, id, _ string) (*model.Transaction, error) {
	return f.transition("ExecuteTransaction", id)
}

func (f *fakeBackend) CancelTransaction(_ context.Context, id, _ string) (*model.Transaction, error) {
	return f.transition("CancelTransaction", id)
}

func (f *fakeBackend) AcceptOffer(_ context.Context, id, _ string) (*model.Transaction, error) {
	return f.transition("AcceptOffer", id)
}

type fakeResponses struct {
	mu   sync.Mutex
	rows map[string]model.OfferResponse
}

func newFakeResponses() *fakeResponses {
	return &fakeResponses{rows: map[string]model.OfferResponse{}}
}

func (f *fakeResponses) Save(_ context.Context, resp model.OfferResponse) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[resp.MessageID]; ok {
		return false, nil
	}
	f.rows[resp.MessageID] = resp
	return true, nil
}

func (f *fakeResponses) Delete(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, messageID)
	return nil
}

func (f *fakeResponses) AttachResponseMessage(_ context.Context, messageID, responseMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[messageID]; ok {
		row.ResponseMessageID = responseMessageID
		f.rows[messageID] = row
	}
	return nil
}

func (f *fakeResponses) row(messageID string) (model.OfferResponse, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[messageID]
	return row, ok
}

func (f *fakeResponses) ListByMessageIDs(_ context.Context, ids []string) (map[string]model.OfferResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]model.OfferResponse{}
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []model.LedgerEntry
}

func (f *fakeLedger) Record(_ context.Context, entry model.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLedger) ListByBuilding(_ context.Context, buildingID string) ([]model.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.LedgerEntry{}
	for _, e := range f.entries {
		if e.BuildingID == buildingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) actions() []model.LedgerAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.LedgerAction, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// recorder collects every event emitted on a bus.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(bus *events.Bus) *recorder {
	r := &recorder{}
	bus.SubscribeAll(func(e events.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}
