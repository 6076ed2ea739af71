// Package pdf renders quotes as printable PDF documents.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/hylla/cotiza/internal/domain"
)

const dateLayout = "2006-01-02"

// ClientData is the addressee block.
type ClientData struct {
	Name    string
	Company string
	Email   string
}

// Item is one rendered quote line.
type Item struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// QuoteDocument holds everything printed on a quote.
type QuoteDocument struct {
	Issuer    string
	Number    string
	Status    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Client    ClientData
	Items     []Item
	TaxRate   decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	Notes     string
}

// FromQuote maps a stored quote and its parties to a document.
func FromQuote(q domain.Quote, tenant domain.Tenant, client domain.Client) QuoteDocument {
	doc := QuoteDocument{
		Issuer:    tenant.Name,
		Number:    q.Number,
		Status:    q.Status.BoardStatus().Label(),
		IssuedAt:  q.CreatedAt,
		ExpiresAt: q.ExpiresAt,
		Client: ClientData{
			Name:    client.Name,
			Company: client.Company,
			Email:   client.Email,
		},
		TaxRate:  q.TaxRate,
		Subtotal: q.Subtotal,
		Tax:      q.Tax,
		Total:    q.Total,
		Notes:    q.Notes,
	}
	for _, item := range q.Items {
		doc.Items = append(doc.Items, Item{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount(),
		})
	}
	return doc
}

// RenderQuote writes doc as a single A4 page.
func RenderQuote(w io.Writer, doc QuoteDocument) error {
	if doc.Number == "" {
		return errors.New("quote number is required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Quote "+doc.Number, true)
	pdf.SetCreator("cotiza", true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(110, 10, tr(doc.Issuer), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(70, 10, tr("Quote "+doc.Number), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 6, "Issued: "+formatDate(doc.IssuedAt), "", 1, "R", false, 0, "")
	pdf.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 6, "Valid until: "+formatDate(doc.ExpiresAt), "", 1, "R", false, 0, "")
	pdf.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 6, tr("Status: "+doc.Status), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, "Prepared for")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{doc.Client.Name, doc.Client.Company, doc.Client.Email} {
		if line == "" {
			continue
		}
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(6)

	widths := []float64{90, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, head := range []string{"Description", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, head, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range doc.Items {
		pdf.CellFormat(widths[0], 7, tr(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, strconv.Itoa(item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, money(item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(item.Amount), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	label := 145.0
	totals := []struct {
		name  string
		value decimal.Decimal
		bold  bool
	}{
		{name: "Subtotal", value: doc.Subtotal},
		{name: fmt.Sprintf("Tax (%s%%)", doc.TaxRate.Mul(decimal.NewFromInt(100)).String()), value: doc.Tax},
		{name: "Total", value: doc.Total, bold: true},
	}
	for _, row := range totals {
		style := ""
		if row.bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(label, 7, row.name, "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, money(row.value), "", 1, "R", false, 0, "")
	}

	if doc.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr(doc.Notes), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render quote pdf: %w", err)
	}
	return pdf.Output(w)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}
