package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/serenissima/contracts-gateway/internal/model"
)

// Generator draws with the core Helvetica font, which covers Latin-1 only, so every string
// goes through the cp1252 translator.
type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(report model.LedgerReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	b := report.Building
	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Ledger of %s", buildingName(b))), "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 10)
	lines := []string{
		fmt.Sprintf("Building ID: %s", b.BuildingID),
		fmt.Sprintf("Type: %s", safeValue(b.Type)),
		fmt.Sprintf("Owner: %s    Run by: %s", safeValue(b.Owner), safeValue(b.RunBy)),
		fmt.Sprintf("Generated %s by %s", formatDateTime(report.GeneratedAt), safeValue(report.GeneratedBy)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
	pdf.Ln(4)

	g.section(pdf, tr, "Contracts",
		[]string{"Contract", "Type", "Resource", "Price", "Target", "Status"},
		[]float64{85, 40, 40, 30, 30, 40},
		contractRows(report.Contracts))

	g.section(pdf, tr, "Bids",
		[]string{"Contract", "Bidder", "Amount", "Status", "Placed"},
		[]float64{85, 50, 35, 35, 45},
		bidRows(report.Bids))

	g.section(pdf, tr, "Gateway ledger",
		[]string{"Time", "Action", "Actor", "Resource", "Amount", "Details"},
		[]float64{40, 45, 40, 40, 30, 70},
		entryRows(report.Entries))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) section(pdf *gofpdf.Fpdf, tr func(string) string, title string, headers []string, widths []float64, rows [][]string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
	drawTableRow(pdf, g.fontName, tr, headers, widths, true)
	if len(rows) == 0 {
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 6, "No records", "", 1, "L", false, 0, "")
	}
	for _, row := range rows {
		drawTableRow(pdf, g.fontName, tr, row, widths, false)
	}
	pdf.Ln(4)
}

func contractRows(contracts []model.Contract) [][]string {
	rows := make([][]string, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, []string{
			c.ContractID,
			string(c.Type),
			safeValue(c.ResourceType),
			formatAmount(c.PricePerResource, 2),
			formatAmount(c.TargetAmount, 0),
			string(c.Status),
		})
	}
	return rows
}

func bidRows(bids []model.Bid) [][]string {
	rows := make([][]string, 0, len(bids))
	for _, b := range bids {
		placed := ""
		if b.CreatedAt != nil {
			placed = formatDateTime(*b.CreatedAt)
		}
		rows = append(rows, []string{b.ContractID, b.Buyer, formatAmount(b.Price, 2), string(b.Status), placed})
	}
	return rows
}

func entryRows(entries []model.LedgerEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			formatDateTime(e.CreatedAt),
			string(e.Action),
			e.Actor,
			safeValue(e.ResourceType),
			formatAmount(e.Amount, 2),
			e.Details,
		})
	}
	return rows
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	for i, col := range cols {
		align := "L"
		if !header && isNumeric(col) {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func isNumeric(s string) bool {
	if s == "" || s == "-" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			return false
		}
	}
	return true
}

func buildingName(b model.Building) string {
	if b.Name != "" {
		return b.Name
	}
	return b.BuildingID
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func formatAmount(value float64, precision int) string {
	format := fmt.Sprintf("%%.%df", precision)
	return fmt.Sprintf(format, value)
}
