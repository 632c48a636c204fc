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

const BidStatusInitiated = "initiated"

type BidService struct {
	activities ActivityAPI
	contracts  ContractAPI
	buildings  BuildingAPI
	ledger     LedgerStore
	bus        *events.Bus
	log        zerolog.Logger
	now        func() time.Time
}

func NewBidService(
	activities ActivityAPI,
	contracts ContractAPI,
	buildings BuildingAPI,
	ledger LedgerStore,
	bus *events.Bus,
	log zerolog.Logger,
) *BidService {
	return &BidService{
		activities: activities,
		contracts:  contracts,
		buildings:  buildings,
		ledger:     ledger,
		bus:        bus,
		log:        log.With().Str("service", "bids").Logger(),
		now:        time.Now,
	}
}

// BidPlacement acknowledges that the bid activity was queued. The bid shows up in later
// listings only once the simulation has processed it.
type BidPlacement struct {
	Status     string  `json:"status"`
	BuildingID string  `json:"buildingId"`
	Amount     float64 `json:"amount"`
	ActivityID string  `json:"activityId,omitempty"`
	Message    string  `json:"message,omitempty"`
}

type PlaceBidInput struct {
	Principal      model.Principal
	BuildingID     string
	Amount         float64
	FromBuildingID string
}

func (s *BidService) PlaceBid(ctx context.Context, in PlaceBidInput) (*BidPlacement, error) {
	if strings.TrimSpace(in.BuildingID) == "" {
		return nil, apperror.NewValidationError("buildingId", "is required")
	}
	if math.IsNaN(in.Amount) || in.Amount <= 0 {
		return nil, apperror.NewValidationError("amount", "must be positive")
	}
	building, err := s.buildings.GetBuilding(ctx, in.BuildingID)
	if err != nil {
		return nil, err
	}
	if in.Principal.Is(building.Owner) {
		return nil, apperror.NewUnauthorizedActionError(model.ActivityBidOnBuilding, "owners cannot bid on their own building")
	}

	params := map[string]any{
		"buildingIdToBidOn": in.BuildingID,
		"bidAmount":         in.Amount,
	}
	if in.FromBuildingID != "" {
		params["fromBuildingId"] = in.FromBuildingID
	}
	result, err := s.activities.TryCreateActivity(ctx, model.ActivityRequest{
		CitizenUsername:    in.Principal.Username,
		ActivityType:       model.ActivityBidOnBuilding,
		ActivityParameters: params,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, in.BuildingID, model.LedgerBidPlaced, "", in.Principal.Username, in.Amount, result.ActivityID)
	s.bus.Emit(events.BidsChanged, events.BidChange{
		BuildingID: in.BuildingID,
		Action:     model.ActivityBidOnBuilding,
		Actor:      in.Principal.Username,
	})
	return &BidPlacement{
		Status:     BidStatusInitiated,
		BuildingID: in.BuildingID,
		Amount:     in.Amount,
		ActivityID: result.ActivityID,
		Message:    result.Message,
	}, nil
}

// ListBids returns the building's bids split into active and historical, each decorated
// with what viewer may do with it.
func (s *BidService) ListBids(ctx context.Context, buildingID string, viewer model.Principal) (*model.BidList, error) {
	if strings.TrimSpace(buildingID) == "" {
		return nil, apperror.NewValidationError("buildingId", "is required")
	}
	building, err := s.buildings.GetBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	bids, err := s.fetchBids(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	return buildBidList(buildingID, building.Owner, viewer, bids), nil
}

func (s *BidService) fetchBids(ctx context.Context, buildingID string) ([]model.Bid, error) {
	contracts, err := s.contracts.ListContracts(ctx, model.ContractQuery{
		Type:  model.ContractTypeBuildingBid,
		Asset: buildingID,
	})
	if err != nil {
		return nil, err
	}
	bids := make([]model.Bid, 0, len(contracts))
	for _, c := range contracts {
		bids = append(bids, model.BidFromContract(c))
	}
	return bids, nil
}

func buildBidList(buildingID, owner string, viewer model.Principal, bids []model.Bid) *model.BidList {
	active, historical := PartitionBids(bids)
	list := &model.BidList{
		BuildingID: buildingID,
		Active:     make([]model.BidView, 0, len(active)),
		Historical: make([]model.BidView, 0, len(historical)),
	}
	for _, b := range active {
		list.Active = append(list.Active, model.BidView{Bid: b, Controls: BidControlsFor(b, owner, viewer)})
	}
	for _, b := range historical {
		list.Historical = append(list.Historical, model.BidView{Bid: b, Controls: BidControlsFor(b, owner, viewer)})
	}
	return list
}

// PartitionBids splits bids into active ones and everything else, keeping relative order.
func PartitionBids(bids []model.Bid) (active, historical []model.Bid) {
	active = make([]model.Bid, 0, len(bids))
	historical = make([]model.Bid, 0, len(bids))
	for _, b := range bids {
		if b.Status == model.ContractStatusActive {
			active = append(active, b)
			continue
		}
		historical = append(historical, b)
	}
	return active, historical
}

// BidControlsFor gives the owner accept/refuse and the bidder adjust/withdraw, on active
// bids only. A viewer who is both gets the bidder controls.
func BidControlsFor(bid model.Bid, owner string, viewer model.Principal) model.BidControls {
	if bid.Status != model.ContractStatusActive {
		return model.BidControls{}
	}
	if viewer.Is(bid.Buyer) {
		return model.BidControls{CanAdjust: true, CanWithdraw: true}
	}
	if viewer.Is(owner) {
		return model.BidControls{CanAccept: true, CanRefuse: true}
	}
	return model.BidControls{}
}

type BidActionInput struct {
	Principal  model.Principal
	BuildingID string
	ContractID string
	NewAmount  float64
}

func (s *BidService) AcceptBid(ctx context.Context, in BidActionInput) (*model.BidList, error) {
	return s.respond(ctx, in, model.ContractStatusAccepted)
}

func (s *BidService) RefuseBid(ctx context.Context, in BidActionInput) (*model.BidList, error) {
	return s.respond(ctx, in, model.ContractStatusRefused)
}

func (s *BidService) respond(ctx context.Context, in BidActionInput, response model.ContractStatus) (*model.BidList, error) {
	building, bid, err := s.loadBid(ctx, in)
	if err != nil {
		return nil, err
	}
	controls := BidControlsFor(*bid, building.Owner, in.Principal)
	if !controls.CanAccept {
		return nil, apperror.NewUnauthorizedActionError(model.ActivityRespondToBuildingBid, "only the building owner can answer a bid")
	}
	err = s.submit(ctx, in.Principal, model.ActivityRespondToBuildingBid, map[string]any{
		"buildingBidContractId": bid.ContractID,
		"response":              string(response),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.BuildingID, model.LedgerBidResponded, bid.ContractID, in.Principal.Username, bid.Price, string(response))
	if response == model.ContractStatusAccepted {
		s.bus.Emit(events.BuildingRefresh, in.BuildingID)
	}
	return s.refresh(ctx, building, in, string(response))
}

func (s *BidService) WithdrawBid(ctx context.Context, in BidActionInput) (*model.BidList, error) {
	building, bid, err := s.loadBid(ctx, in)
	if err != nil {
		return nil, err
	}
	if !BidControlsFor(*bid, building.Owner, in.Principal).CanWithdraw {
		return nil, apperror.NewUnauthorizedActionError(model.ActivityWithdrawBuildingBid, "only the bidder can withdraw a bid")
	}
	err = s.submit(ctx, in.Principal, model.ActivityWithdrawBuildingBid, map[string]any{
		"buildingBidContractId": bid.ContractID,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.BuildingID, model.LedgerBidWithdrawn, bid.ContractID, in.Principal.Username, bid.Price, "")
	return s.refresh(ctx, building, in, "withdrawn")
}

func (s *BidService) AdjustBid(ctx context.Context, in BidActionInput) (*model.BidList, error) {
	if math.IsNaN(in.NewAmount) || in.NewAmount <= 0 {
		return nil, apperror.NewValidationError("newAmount", "must be positive")
	}
	building, bid, err := s.loadBid(ctx, in)
	if err != nil {
		return nil, err
	}
	if !BidControlsFor(*bid, building.Owner, in.Principal).CanAdjust {
		return nil, apperror.NewUnauthorizedActionError(model.ActivityAdjustBuildingBid, "only the bidder can adjust a bid")
	}
	err = s.submit(ctx, in.Principal, model.ActivityAdjustBuildingBid, map[string]any{
		"buildingBidContractId": bid.ContractID,
		"newBidAmount":          in.NewAmount,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.BuildingID, model.LedgerBidAdjusted, bid.ContractID, in.Principal.Username, in.NewAmount,
		fmt.Sprintf("from %.2f", bid.Price))
	return s.refresh(ctx, building, in, "adjusted")
}

func (s *BidService) loadBid(ctx context.Context, in BidActionInput) (*model.Building, *model.Bid, error) {
	if strings.TrimSpace(in.BuildingID) == "" {
		return nil, nil, apperror.NewValidationError("buildingId", "is required")
	}
	if strings.TrimSpace(in.ContractID) == "" {
		return nil, nil, apperror.NewValidationError("contractId", "is required")
	}
	building, err := s.buildings.GetBuilding(ctx, in.BuildingID)
	if err != nil {
		return nil, nil, err
	}
	bids, err := s.fetchBids(ctx, in.BuildingID)
	if err != nil {
		return nil, nil, err
	}
	for i := range bids {
		if bids[i].ContractID != in.ContractID {
			continue
		}
		if bids[i].Status != model.ContractStatusActive {
			return nil, nil, fmt.Errorf("%w: %s is %s", ErrBidNotActive, in.ContractID, bids[i].Status)
		}
		return building, &bids[i], nil
	}
	return nil, nil, apperror.NewNotFoundError("bid", in.ContractID)
}

func (s *BidService) submit(ctx context.Context, principal model.Principal, activityType string, params map[string]any) error {
	_, err := s.activities.TryCreateActivity(ctx, model.ActivityRequest{
		CitizenUsername:    principal.Username,
		ActivityType:       activityType,
		ActivityParameters: params,
	})
	return err
}

// refresh re-reads the whole bid list after an action instead of patching it locally.
func (s *BidService) refresh(ctx context.Context, building *model.Building, in BidActionInput, action string) (*model.BidList, error) {
	s.bus.Emit(events.BidsChanged, events.BidChange{
		BuildingID: in.BuildingID,
		ContractID: in.ContractID,
		Action:     action,
		Actor:      in.Principal.Username,
	})
	bids, err := s.fetchBids(ctx, in.BuildingID)
	if err != nil {
		return nil, err
	}
	return buildBidList(in.BuildingID, building.Owner, in.Principal, bids), nil
}

func (s *BidService) record(ctx context.Context, buildingID string, action model.LedgerAction, contractID, actor string, amount float64, details string) {
	if s.ledger == nil {
		return
	}
	err := s.ledger.Record(ctx, model.LedgerEntry{
		ID:         uuid.New(),
		BuildingID: buildingID,
		Action:     action,
		ContractID: contractID,
		Actor:      actor,
		Amount:     amount,
		Details:    details,
		CreatedAt:  s.now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("building_id", buildingID).Msg("ledger record failed")
	}
}
