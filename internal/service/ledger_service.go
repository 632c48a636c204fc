package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/model"
)

type ExcelGenerator interface {
	Generate(report model.LedgerReport) ([]byte, error)
}

type PDFGenerator interface {
	Generate(report model.LedgerReport) ([]byte, error)
}

type LedgerService struct {
	buildings BuildingAPI
	contracts ContractAPI
	ledger    LedgerStore
	excel     ExcelGenerator
	pdf       PDFGenerator
	log       zerolog.Logger
	now       func() time.Time
}

func NewLedgerService(
	buildings BuildingAPI,
	contracts ContractAPI,
	ledger LedgerStore,
	excel ExcelGenerator,
	pdf PDFGenerator,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		buildings: buildings,
		contracts: contracts,
		ledger:    ledger,
		excel:     excel,
		pdf:       pdf,
		log:       log.With().Str("service", "ledger").Logger(),
		now:       time.Now,
	}
}

type ExportLedgerInput struct {
	Principal  model.Principal
	BuildingID string
	Format     model.LedgerFormat
}

type LedgerFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Export renders the building's contracts, bids and gateway history. Only the operator of
// the building may export it.
func (s *LedgerService) Export(ctx context.Context, in ExportLedgerInput) (*LedgerFile, error) {
	if strings.TrimSpace(in.BuildingID) == "" {
		return nil, apperror.NewValidationError("buildingId", "is required")
	}
	format := model.LedgerFormat(strings.ToLower(string(in.Format)))
	if format == "" {
		format = model.LedgerFormatXLSX
	}
	if format != model.LedgerFormatXLSX && format != model.LedgerFormatPDF {
		return nil, apperror.NewValidationError("format", "must be xlsx or pdf")
	}

	building, err := s.buildings.GetBuilding(ctx, in.BuildingID)
	if err != nil {
		return nil, err
	}
	if !building.IsOperatedBy(in.Principal.Username) {
		return nil, apperror.NewUnauthorizedActionError("export_ledger", "only the operator of the building can export its ledger")
	}

	report, err := s.collect(ctx, *building, in.Principal)
	if err != nil {
		return nil, err
	}

	var (
		content     []byte
		contentType string
	)
	switch format {
	case model.LedgerFormatPDF:
		content, err = s.pdf.Generate(report)
		contentType = "application/pdf"
	default:
		content, err = s.excel.Generate(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		return nil, fmt.Errorf("render %s ledger: %w", format, err)
	}

	s.log.Info().
		Str("building_id", building.BuildingID).
		Str("format", string(format)).
		Int("contracts", len(report.Contracts)).
		Int("entries", len(report.Entries)).
		Msg("ledger exported")

	return &LedgerFile{
		FileName:    fmt.Sprintf("ledger_%s_%s.%s", building.BuildingID, report.GeneratedAt.Format("20060102"), format),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func (s *LedgerService) collect(ctx context.Context, building model.Building, principal model.Principal) (model.LedgerReport, error) {
	report := model.LedgerReport{
		Building:    building,
		GeneratedAt: s.now().UTC(),
		GeneratedBy: principal.Username,
	}

	contracts, err := s.contracts.ListContracts(ctx, model.ContractQuery{SellerBuilding: building.BuildingID})
	if err != nil {
		return report, err
	}
	report.Contracts = contracts

	bids, err := s.contracts.ListContracts(ctx, model.ContractQuery{
		Type:  model.ContractTypeBuildingBid,
		Asset: building.BuildingID,
	})
	if err != nil {
		return report, err
	}
	for _, c := range bids {
		report.Bids = append(report.Bids, model.BidFromContract(c))
	}

	if s.ledger != nil {
		entries, err := s.ledger.ListByBuilding(ctx, building.BuildingID)
		if err != nil {
			return report, err
		}
		report.Entries = entries
	}
	return report, nil
}
