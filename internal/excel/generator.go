package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/serenissima/contracts-gateway/internal/model"
)

const (
	summarySheet   = "Summary"
	contractsSheet = "Contracts"
	bidsSheet      = "Bids"
	ledgerSheet    = "Ledger"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.LedgerReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, report)

	for _, sheet := range []string{contractsSheet, bidsSheet, ledgerSheet} {
		if _, err := file.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	g.writeContracts(file, report.Contracts)
	g.writeBids(file, report.Bids)
	g.writeLedger(file, report.Entries)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.LedgerReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	b := report.Building
	set("A1", "Building")
	set("B1", buildingName(b))
	set("A2", "Building ID")
	set("B2", b.BuildingID)
	set("A3", "Type")
	set("B3", b.Type)
	set("A4", "Owner")
	set("B4", b.Owner)
	set("A5", "Run by")
	set("B5", b.RunBy)
	set("A6", "Generated at")
	set("B6", formatDateTime(report.GeneratedAt))
	set("A7", "Generated by")
	set("B7", report.GeneratedBy)

	tableRow := 9
	set(fmt.Sprintf("A%d", tableRow), "Section")
	set(fmt.Sprintf("B%d", tableRow), "Rows")
	set(fmt.Sprintf("A%d", tableRow+1), contractsSheet)
	set(fmt.Sprintf("B%d", tableRow+1), len(report.Contracts))
	set(fmt.Sprintf("A%d", tableRow+2), bidsSheet)
	set(fmt.Sprintf("B%d", tableRow+2), len(report.Bids))
	set(fmt.Sprintf("A%d", tableRow+3), ledgerSheet)
	set(fmt.Sprintf("B%d", tableRow+3), len(report.Entries))

	_ = file.SetColWidth(summarySheet, "A", "A", 20)
	_ = file.SetColWidth(summarySheet, "B", "B", 40)
}

func (g *Generator) writeContracts(file *excelize.File, contracts []model.Contract) {
	writeHeader(file, contractsSheet, []string{
		"Contract ID", "Type", "Resource", "Price per resource", "Target amount", "Status", "Title", "Updated",
	})
	for i, c := range contracts {
		row := i + 2
		setRow(file, contractsSheet, row, []interface{}{
			c.ContractID,
			string(c.Type),
			c.ResourceType,
			formatAmount(c.PricePerResource),
			formatAmount(c.TargetAmount),
			string(c.Status),
			c.Title,
			formatTimePtr(c.UpdatedAt),
		})
	}
	_ = file.SetColWidth(contractsSheet, "A", "A", 44)
	_ = file.SetColWidth(contractsSheet, "B", "F", 18)
	_ = file.SetColWidth(contractsSheet, "G", "G", 40)
	_ = file.SetColWidth(contractsSheet, "H", "H", 20)
}

func (g *Generator) writeBids(file *excelize.File, bids []model.Bid) {
	writeHeader(file, bidsSheet, []string{"Contract ID", "Bidder", "Amount", "Status", "Placed"})
	for i, b := range bids {
		setRow(file, bidsSheet, i+2, []interface{}{
			b.ContractID,
			b.Buyer,
			formatAmount(b.Price),
			string(b.Status),
			formatTimePtr(b.CreatedAt),
		})
	}
	_ = file.SetColWidth(bidsSheet, "A", "A", 44)
	_ = file.SetColWidth(bidsSheet, "B", "E", 18)
}

func (g *Generator) writeLedger(file *excelize.File, entries []model.LedgerEntry) {
	writeHeader(file, ledgerSheet, []string{"Time", "Action", "Actor", "Contract ID", "Resource", "Amount", "Details"})
	for i, e := range entries {
		setRow(file, ledgerSheet, i+2, []interface{}{
			formatDateTime(e.CreatedAt),
			string(e.Action),
			e.Actor,
			e.ContractID,
			e.ResourceType,
			formatAmount(e.Amount),
			e.Details,
		})
	}
	_ = file.SetColWidth(ledgerSheet, "A", "A", 20)
	_ = file.SetColWidth(ledgerSheet, "B", "C", 20)
	_ = file.SetColWidth(ledgerSheet, "D", "D", 44)
	_ = file.SetColWidth(ledgerSheet, "E", "F", 16)
	_ = file.SetColWidth(ledgerSheet, "G", "G", 32)
}

func writeHeader(file *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, header)
	}
}

func setRow(file *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = file.SetCellValue(sheet, cell, v)
	}
}

func buildingName(b model.Building) string {
	if b.Name != "" {
		return b.Name
	}
	return b.BuildingID
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDateTime(*t)
}

func formatAmount(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
