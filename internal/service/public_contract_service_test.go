package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
)

type publicContractFixture struct {
	backend *fakeBackend
	ledger  *fakeLedger
	events  *recorder
	svc     *PublicContractService
}

func newPublicContractFixture(t *testing.T) *publicContractFixture {
	t.Helper()
	be := newFakeBackend()
	be.buildings["bld_1"] = &model.Building{
		BuildingID:    "bld_1",
		Name:          "Masons' Lodge",
		Type:          "masons_lodge",
		Owner:         "marco",
		IsConstructed: true,
	}
	be.resourceTypes = []model.ResourceType{
		{ID: "iron_ore", Name: "Iron Ore", ImportPrice: 50},
		{ID: "salt", Name: "Salt"},
	}

	bus := newTestBus()
	resources := NewResourceService(be, bus, newTestSettings(), zerolog.Nop())
	t.Cleanup(resources.Close)
	ledger := &fakeLedger{}
	svc := NewPublicContractService(be, be, resources, ledger, bus, zerolog.Nop())
	svc.now = fixedClock
	return &publicContractFixture{backend: be, ledger: ledger, events: record(bus), svc: svc}
}

func TestStorageFeeSliderConversion(t *testing.T) {
	assert.Equal(t, 325, SliderFromRate(0.0325))
	assert.Equal(t, 1000, SliderFromRate(MaxStorageFeeRate))
	assert.InDelta(t, 0.0325, RateFromSlider(325), 1e-12)
	assert.Equal(t, 0.0, RateFromSlider(0))
}

func TestStorageFeeRoundTrip(t *testing.T) {
	f := newPublicContractFixture(t)
	ctx := context.Background()
	marco := model.Principal{Username: "marco"}

	saved, err := f.svc.SaveStorageFee(ctx, SaveStorageFeeInput{
		Principal:    marco,
		BuildingID:   "bld_1",
		ResourceType: "iron_ore",
		Rate:         0.03,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, saved.Fee, 1e-9)
	assert.Equal(t, "public_storage_bld_1_iron_ore", saved.ContractID)

	stored := f.backend.contracts[0]
	assert.InDelta(t, 1.5, stored.PricePerResource, 1e-9)
	assert.Equal(t, model.ContractTypePublicStorage, stored.Type)
	assert.Equal(t, "bld_1", stored.SellerBuilding)
	assert.Equal(t, "marco", stored.Seller)

	view, err := f.svc.GetStorageFee(ctx, "bld_1", "iron_ore")
	require.NoError(t, err)
	assert.True(t, view.Persisted)
	assert.False(t, view.LegacyUnit)
	assert.InDelta(t, 0.03, view.Rate, 1e-12)
	assert.Equal(t, 300, view.Slider)

	assert.Equal(t, []model.LedgerAction{model.LedgerContractUpserted}, f.ledger.actions())
	assert.Equal(t, []string{events.ContractUpdated, events.ShowNotification}, f.events.topics())
}

func TestSaveStorageFeeRejectsOutOfRangeRate(t *testing.T) {
	f := newPublicContractFixture(t)
	_, err := f.svc.SaveStorageFee(context.Background(), SaveStorageFeeInput{
		Principal:    model.Principal{Username: "marco"},
		BuildingID:   "bld_1",
		ResourceType: "iron_ore",
		Rate:         0.11,
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	assert.Zero(t, f.backend.Calls("UpsertContract"))
}

func TestSaveStorageFeeWithoutImportPrice(t *testing.T) {
	f := newPublicContractFixture(t)
	_, err := f.svc.SaveStorageFee(context.Background(), SaveStorageFeeInput{
		Principal:    model.Principal{Username: "marco"},
		BuildingID:   "bld_1",
		ResourceType: "salt",
		Rate:         0.02,
	})
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "resourceType", verr.Field)
	assert.Zero(t, f.backend.Calls("UpsertContract"))
}

func TestSaveStorageFeeRequiresOperator(t *testing.T) {
	f := newPublicContractFixture(t)
	_, err := f.svc.SaveStorageFee(context.Background(), SaveStorageFeeInput{
		Principal:    model.Principal{Username: "giulia"},
		BuildingID:   "bld_1",
		ResourceType: "iron_ore",
		Rate:         0.01,
	})
	assert.ErrorIs(t, err, apperror.ErrPermissionDenied)
	assert.Empty(t, f.events.topics())
}

func TestLegacyStorageRateIsReadAsRate(t *testing.T) {
	f := newPublicContractFixture(t)
	f.backend.contracts = append(f.backend.contracts, model.Contract{
		ContractID:       "public_storage_bld_1_salt",
		Type:             model.ContractTypePublicStorage,
		SellerBuilding:   "bld_1",
		ResourceType:     "salt",
		PricePerResource: 0.05,
		Status:           model.ContractStatusActive,
	})

	view, err := f.svc.GetStorageFee(context.Background(), "bld_1", "salt")
	require.NoError(t, err)
	assert.True(t, view.LegacyUnit)
	assert.InDelta(t, 0.05, view.Rate, 1e-12)
	assert.Equal(t, 500, view.Slider)
}

func TestConstructionRatePlaceholderThenSave(t *testing.T) {
	f := newPublicContractFixture(t)
	ctx := context.Background()

	current, err := f.svc.GetConstructionRate(ctx, "bld_1")
	require.NoError(t, err)
	assert.True(t, current.Placeholder)
	assert.Equal(t, 1.0, current.Rate)
	assert.Equal(t, 100.0, current.Percent)
	assert.Equal(t, "Construction Services by Masons' Lodge", current.Contract.Title)
	assert.NotEmpty(t, current.Contract.Description)
	assert.True(t, CanSave(current, 100), "a placeholder can be saved unchanged")
	assert.Zero(t, f.backend.Calls("UpsertContract"))

	saved, err := f.svc.SaveConstructionRate(ctx, SaveConstructionRateInput{
		Principal:  model.Principal{Username: "marco"},
		BuildingID: "bld_1",
		Percent:    150,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.5, saved.Rate)

	current, err = f.svc.GetConstructionRate(ctx, "bld_1")
	require.NoError(t, err)
	assert.False(t, current.Placeholder)
	assert.Equal(t, "public_construction_bld_1", current.Contract.ContractID)
	assert.Equal(t, 150.0, current.Percent)
	assert.False(t, CanSave(current, 150))
	assert.True(t, CanSave(current, 120))
}

func TestSaveConstructionRateBounds(t *testing.T) {
	f := newPublicContractFixture(t)
	for _, percent := range []float64{-1, 201} {
		_, err := f.svc.SaveConstructionRate(context.Background(), SaveConstructionRateInput{
			Principal:  model.Principal{Username: "marco"},
			BuildingID: "bld_1",
			Percent:    percent,
		})
		assert.ErrorIs(t, err, apperror.ErrInvalidInput, "percent %v", percent)
	}
}

func TestPublicSellOnlyListsActive(t *testing.T) {
	f := newPublicContractFixture(t)
	ctx := context.Background()

	_, err := f.svc.SavePublicSell(ctx, SavePublicSellInput{
		Principal:    model.Principal{Username: "marco"},
		BuildingID:   "bld_1",
		ResourceType: "iron_ore",
		Price:        12,
		TargetAmount: 40,
	})
	require.NoError(t, err)
	f.backend.contracts = append(f.backend.contracts, model.Contract{
		ContractID:     "public_sell_bld_1_salt",
		Type:           model.ContractTypePublicSell,
		SellerBuilding: "bld_1",
		ResourceType:   "salt",
		Status:         model.ContractStatusCancelled,
	})

	contracts, err := f.svc.GetPublicSellContracts(ctx, "bld_1")
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "public_sell_bld_1_iron_ore", contracts[0].ContractID)
	assert.Equal(t, 12.0, contracts[0].PricePerResource)
}
