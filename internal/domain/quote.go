package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// moneyPlaces is the rounding precision for computed amounts.
const moneyPlaces = 2

// LineItem is one priced product line on a quote.
type LineItem struct {
	ProductID   string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Amount returns quantity times unit price.
func (l LineItem) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Quote is a numbered price quotation for one client.
type Quote struct {
	ID        string
	TenantID  string
	Number    string
	Status    QuoteStatus
	ClientID  string
	Items     []LineItem
	TaxRate   decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// QuoteInput holds constructor values for a quote.
type QuoteInput struct {
	ID        string
	TenantID  string
	Number    string
	ClientID  string
	Items     []LineItem
	TaxRate   decimal.Decimal
	Notes     string
	ExpiresAt time.Time
}

// NewQuote constructs a draft quote and computes its totals.
func NewQuote(in QuoteInput, now time.Time) (Quote, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.Number = strings.TrimSpace(in.Number)
	if in.ID == "" || in.TenantID == "" || in.ClientID == "" {
		return Quote{}, ErrInvalidID
	}
	if in.Number == "" {
		return Quote{}, ErrInvalidNumber
	}
	if in.TaxRate.IsNegative() {
		return Quote{}, ErrInvalidTaxRate
	}
	items, err := normalizeItems(in.Items)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		ID:        in.ID,
		TenantID:  in.TenantID,
		Number:    in.Number,
		Status:    StatusDraft,
		ClientID:  in.ClientID,
		Items:     items,
		TaxRate:   in.TaxRate,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
		ExpiresAt: in.ExpiresAt.UTC(),
	}
	q.Recalculate()
	return q, nil
}

// Recalculate recomputes subtotal, tax and total from the line items.
func (q *Quote) Recalculate() {
	subtotal := decimal.Zero
	for _, item := range q.Items {
		subtotal = subtotal.Add(item.Amount())
	}
	q.Subtotal = subtotal.Round(moneyPlaces)
	q.Tax = subtotal.Mul(q.TaxRate).Round(moneyPlaces)
	q.Total = q.Subtotal.Add(q.Tax)
}

// SetStatus moves the quote to status. Any status may follow any other.
func (q *Quote) SetStatus(status QuoteStatus, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	q.Status = status
	q.UpdatedAt = now.UTC()
	return nil
}

// Expired reports whether the quote validity has lapsed at now.
func (q Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}

func normalizeItems(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyQuote
	}
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Description = strings.TrimSpace(item.Description)
		if item.ProductID == "" {
			return nil, ErrInvalidID
		}
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if item.UnitPrice.IsNegative() {
			return nil, ErrInvalidPrice
		}
		out = append(out, item)
	}
	return out, nil
}
