package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/model"
)

const (
	MaxStorageFeeRate     = 0.10
	StorageFeeSliderScale = 10000

	MaxConstructionPercent     = 200
	DefaultConstructionRate    = 1.0
	constructionPercentPerRate = 100
)

// SliderFromRate maps a daily storage rate onto the integer slider (two-decimal percent).
func SliderFromRate(rate float64) int {
	return int(math.Round(rate * StorageFeeSliderScale))
}

func RateFromSlider(value int) float64 {
	return float64(value) / StorageFeeSliderScale
}

func roundRate(rate float64) float64 {
	return math.Round(rate*StorageFeeSliderScale) / StorageFeeSliderScale
}

type ImportPricer interface {
	ImportPrice(ctx context.Context, resourceType string) (float64, bool, error)
}

type PublicContractService struct {
	contracts ContractAPI
	buildings BuildingAPI
	prices    ImportPricer
	ledger    LedgerStore
	bus       *events.Bus
	log       zerolog.Logger
	now       func() time.Time
}

func NewPublicContractService(
	contracts ContractAPI,
	buildings BuildingAPI,
	prices ImportPricer,
	ledger LedgerStore,
	bus *events.Bus,
	log zerolog.Logger,
) *PublicContractService {
	return &PublicContractService{
		contracts: contracts,
		buildings: buildings,
		prices:    prices,
		ledger:    ledger,
		bus:       bus,
		log:       log.With().Str("service", "public_contracts").Logger(),
		now:       time.Now,
	}
}

type StorageFee struct {
	ContractID   string          `json:"contractId"`
	BuildingID   string          `json:"buildingId"`
	ResourceType string          `json:"resourceType"`
	Rate         float64         `json:"rate"`
	Slider       int             `json:"slider"`
	Fee          float64         `json:"fee"`
	ImportPrice  float64         `json:"importPrice,omitempty"`
	Persisted    bool            `json:"persisted"`
	LegacyUnit   bool            `json:"legacyUnit,omitempty"`
	Contract     *model.Contract `json:"contract,omitempty"`
}

// GetStorageFee reads the public storage rate a building offers for one resource. The
// stored value is an absolute fee per unit and is turned back into a rate with the same
// import price used when saving.
func (s *PublicContractService) GetStorageFee(ctx context.Context, buildingID, resourceType string) (*StorageFee, error) {
	if err := requireIDs(buildingID, resourceType); err != nil {
		return nil, err
	}
	contractID := model.PublicStorageContractID(buildingID, resourceType)
	view := &StorageFee{ContractID: contractID, BuildingID: buildingID, ResourceType: resourceType}

	importPrice, hasImport, err := s.prices.ImportPrice(ctx, resourceType)
	if err != nil {
		return nil, err
	}
	if hasImport {
		view.ImportPrice = importPrice
	}

	contract, err := s.findContract(ctx, model.ContractQuery{
		SellerBuilding: buildingID,
		Type:           model.ContractTypePublicStorage,
		ResourceType:   resourceType,
	}, contractID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return view, nil
	}

	view.Persisted = true
	view.Contract = contract
	view.Fee = contract.PricePerResource
	if hasImport {
		view.Rate = roundRate(contract.PricePerResource / importPrice)
	} else {
		// Rows written before fees were always absolute hold a bare rate.
		view.Rate = roundRate(contract.PricePerResource)
		view.LegacyUnit = true
		s.log.Warn().
			Str("contract_id", contractID).
			Msg("no import price for storage contract, reading stored value as a rate")
	}
	view.Slider = SliderFromRate(view.Rate)
	return view, nil
}

type SaveStorageFeeInput struct {
	Principal    model.Principal
	BuildingID   string
	ResourceType string
	Rate         float64
}

func (s *PublicContractService) SaveStorageFee(ctx context.Context, in SaveStorageFeeInput) (*StorageFee, error) {
	if err := requireIDs(in.BuildingID, in.ResourceType); err != nil {
		return nil, err
	}
	if math.IsNaN(in.Rate) || in.Rate < 0 || in.Rate > MaxStorageFeeRate {
		return nil, apperror.NewValidationError("rate", fmt.Sprintf("must be between 0 and %.2f", MaxStorageFeeRate))
	}
	building, err := s.requireOperator(ctx, in.Principal, in.BuildingID, "set_storage_fee")
	if err != nil {
		return nil, err
	}

	importPrice, ok, err := s.prices.ImportPrice(ctx, in.ResourceType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NewValidationError("resourceType", "no import price to convert the storage rate into a fee")
	}

	rate := roundRate(in.Rate)
	fee := rate * importPrice
	contractID := model.PublicStorageContractID(in.BuildingID, in.ResourceType)
	ctype := model.ContractTypePublicStorage
	status := model.ContractStatusActive
	seller := building.Operator()
	title := fmt.Sprintf("Public storage for %s", in.ResourceType)
	description := fmt.Sprintf("Storage at %s for %.2f%% of the import price per day", buildingLabel(building), rate*100)
	target := 0.0

	contract, err := s.contracts.UpsertContract(ctx, contractID, model.ContractPatch{
		Type:             &ctype,
		Seller:           &seller,
		SellerBuilding:   &in.BuildingID,
		ResourceType:     &in.ResourceType,
		PricePerResource: &fee,
		TargetAmount:     &target,
		Status:           &status,
		Title:            &title,
		Description:      &description,
	})
	if err != nil {
		return nil, err
	}

	s.afterSave(ctx, in.Principal, building, contract, in.ResourceType, fee)
	return &StorageFee{
		ContractID:   contractID,
		BuildingID:   in.BuildingID,
		ResourceType: in.ResourceType,
		Rate:         rate,
		Slider:       SliderFromRate(rate),
		Fee:          fee,
		ImportPrice:  importPrice,
		Persisted:    true,
		Contract:     contract,
	}, nil
}

type ConstructionRate struct {
	BuildingID  string         `json:"buildingId"`
	Contract    model.Contract `json:"contract"`
	Rate        float64        `json:"rate"`
	Percent     float64        `json:"percent"`
	Placeholder bool           `json:"placeholder"`
}

// GetConstructionRate returns the building's public construction contract, or an unsaved
// placeholder at the standard 1.0x rate when none exists yet.
func (s *PublicContractService) GetConstructionRate(ctx context.Context, buildingID string) (*ConstructionRate, error) {
	if strings.TrimSpace(buildingID) == "" {
		return nil, apperror.NewValidationError("buildingId", "is required")
	}
	contractID := model.PublicConstructionContractID(buildingID)
	contract, err := s.findContract(ctx, model.ContractQuery{
		SellerBuilding: buildingID,
		Type:           model.ContractTypePublicConstruction,
	}, contractID)
	if err != nil {
		return nil, err
	}
	if contract != nil {
		return &ConstructionRate{
			BuildingID: buildingID,
			Contract:   *contract,
			Rate:       contract.PricePerResource,
			Percent:    math.Round(contract.PricePerResource * constructionPercentPerRate),
		}, nil
	}

	building, err := s.buildings.GetBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	title, description := constructionTexts(*building)
	return &ConstructionRate{
		BuildingID: buildingID,
		Contract: model.Contract{
			ContractID:       contractID,
			Type:             model.ContractTypePublicConstruction,
			Seller:           building.Operator(),
			SellerBuilding:   buildingID,
			PricePerResource: DefaultConstructionRate,
			Status:           model.ContractStatusActive,
			Title:            title,
			Description:      description,
		},
		Rate:        DefaultConstructionRate,
		Percent:     DefaultConstructionRate * constructionPercentPerRate,
		Placeholder: true,
	}, nil
}

// CanSave reports whether saving pendingPercent would change anything. A placeholder can
// always be saved.
func CanSave(current *ConstructionRate, pendingPercent float64) bool {
	if current == nil || current.Placeholder {
		return true
	}
	return math.Round(pendingPercent) != math.Round(current.Percent)
}

type SaveConstructionRateInput struct {
	Principal  model.Principal
	BuildingID string
	Percent    float64
}

func (s *PublicContractService) SaveConstructionRate(ctx context.Context, in SaveConstructionRateInput) (*ConstructionRate, error) {
	if strings.TrimSpace(in.BuildingID) == "" {
		return nil, apperror.NewValidationError("buildingId", "is required")
	}
	if math.IsNaN(in.Percent) || in.Percent < 0 || in.Percent > MaxConstructionPercent {
		return nil, apperror.NewValidationError("percent", fmt.Sprintf("must be between 0 and %d", MaxConstructionPercent))
	}
	building, err := s.requireOperator(ctx, in.Principal, in.BuildingID, "set_construction_rate")
	if err != nil {
		return nil, err
	}

	percent := math.Round(in.Percent)
	rate := percent / constructionPercentPerRate
	contractID := model.PublicConstructionContractID(in.BuildingID)
	ctype := model.ContractTypePublicConstruction
	status := model.ContractStatusActive
	seller := building.Operator()
	title, description := constructionTexts(*building)

	contract, err := s.contracts.UpsertContract(ctx, contractID, model.ContractPatch{
		Type:             &ctype,
		Seller:           &seller,
		SellerBuilding:   &in.BuildingID,
		PricePerResource: &rate,
		Status:           &status,
		Title:            &title,
		Description:      &description,
	})
	if err != nil {
		return nil, err
	}

	s.afterSave(ctx, in.Principal, building, contract, "", rate)
	return &ConstructionRate{
		BuildingID: in.BuildingID,
		Contract:   *contract,
		Rate:       rate,
		Percent:    percent,
	}, nil
}

func (s *PublicContractService) GetPublicSellContracts(ctx context.Context, buildingID string) ([]model.Contract, error) {
	if strings.TrimSpace(buildingID) == "" {
		return nil, apperror.NewValidationError("buildingId", "is required")
	}
	contracts, err := s.contracts.ListContracts(ctx, model.ContractQuery{
		SellerBuilding: buildingID,
		Type:           model.ContractTypePublicSell,
	})
	if err != nil {
		return nil, err
	}
	active := make([]model.Contract, 0, len(contracts))
	for _, c := range contracts {
		if c.Status == "" || c.Status == model.ContractStatusActive {
			active = append(active, c)
		}
	}
	return active, nil
}

type SavePublicSellInput struct {
	Principal    model.Principal
	BuildingID   string
	ResourceType string
	Price        float64
	TargetAmount float64
}

func (s *PublicContractService) SavePublicSell(ctx context.Context, in SavePublicSellInput) (*model.Contract, error) {
	if err := requireIDs(in.BuildingID, in.ResourceType); err != nil {
		return nil, err
	}
	if math.IsNaN(in.Price) || in.Price <= 0 {
		return nil, apperror.NewValidationError("price", "must be positive")
	}
	if math.IsNaN(in.TargetAmount) || in.TargetAmount < 0 {
		return nil, apperror.NewValidationError("targetAmount", "must not be negative")
	}
	building, err := s.requireOperator(ctx, in.Principal, in.BuildingID, "set_public_sell")
	if err != nil {
		return nil, err
	}

	contractID := model.PublicSellContractID(in.BuildingID, in.ResourceType)
	ctype := model.ContractTypePublicSell
	status := model.ContractStatusActive
	seller := building.Operator()
	title := fmt.Sprintf("Public sale of %s", in.ResourceType)

	contract, err := s.contracts.UpsertContract(ctx, contractID, model.ContractPatch{
		Type:             &ctype,
		Seller:           &seller,
		SellerBuilding:   &in.BuildingID,
		ResourceType:     &in.ResourceType,
		PricePerResource: &in.Price,
		TargetAmount:     &in.TargetAmount,
		Status:           &status,
		Title:            &title,
	})
	if err != nil {
		return nil, err
	}
	s.afterSave(ctx, in.Principal, building, contract, in.ResourceType, in.Price)
	return contract, nil
}

func (s *PublicContractService) findContract(ctx context.Context, q model.ContractQuery, contractID string) (*model.Contract, error) {
	contracts, err := s.contracts.ListContracts(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		if contracts[i].ContractID == contractID {
			return &contracts[i], nil
		}
	}
	return nil, nil
}

func (s *PublicContractService) requireOperator(ctx context.Context, principal model.Principal, buildingID, action string) (*model.Building, error) {
	building, err := s.buildings.GetBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if !building.IsOperatedBy(principal.Username) {
		return nil, apperror.NewUnauthorizedActionError(action, "only the operator of the building can change its public contracts")
	}
	return building, nil
}

func (s *PublicContractService) afterSave(
	ctx context.Context,
	principal model.Principal,
	building *model.Building,
	contract *model.Contract,
	resourceType string,
	amount float64,
) {
	s.bus.Emit(events.ContractUpdated, events.ContractChange{
		BuildingID:   building.BuildingID,
		ContractID:   contract.ContractID,
		ContractType: string(contract.Type),
		ResourceType: resourceType,
	})
	s.bus.Emit(events.ShowNotification, events.Notification{
		Recipient: principal.Username,
		Level:     "success",
		Text:      fmt.Sprintf("%s saved", contract.ContractID),
	})

	if s.ledger == nil {
		return
	}
	err := s.ledger.Record(ctx, model.LedgerEntry{
		ID:           uuid.New(),
		BuildingID:   building.BuildingID,
		Action:       model.LedgerContractUpserted,
		ContractID:   contract.ContractID,
		ResourceType: resourceType,
		Actor:        principal.Username,
		Amount:       amount,
		Details:      string(contract.Type),
		CreatedAt:    s.now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("contract_id", contract.ContractID).Msg("ledger record failed")
	}
}

func constructionTexts(b model.Building) (string, string) {
	name := buildingLabel(&b)
	return fmt.Sprintf("Construction Services by %s", name),
		fmt.Sprintf("%s offers construction services to the public at a rate relative to standard material and labor costs.", name)
}

func buildingLabel(b *model.Building) string {
	if strings.TrimSpace(b.Name) != "" {
		return b.Name
	}
	return b.BuildingID
}

func requireIDs(buildingID, resourceType string) error {
	if strings.TrimSpace(buildingID) == "" {
		return apperror.NewValidationError("buildingId", "is required")
	}
	if strings.TrimSpace(resourceType) == "" {
		return apperror.NewValidationError("resourceType", "is required")
	}
	return nil
}
