package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNumberFormat(t *testing.T) {
	f := DefaultNumberFormat()
	cases := map[int64]string{
		1:      "COT-0001",
		9:      "COT-0009",
		42:     "COT-0042",
		9999:   "COT-9999",
		12345:  "COT-12345",
		100000: "COT-100000",
	}
	for n, want := range cases {
		if got := f.Format(n); got != want {
			t.Fatalf("Format(%d) = %q, want %q", n, got, want)
		}
	}
	if got := (NumberFormat{Prefix: "Q", Width: -3}).Format(7); got != "Q7" {
		t.Fatalf("negative width: got %q", got)
	}
}

func TestCounterAdvance(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c, err := NewCounter(" t1 ", now)
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}
	if c.TenantID != "t1" || c.CurrentNumber != 0 {
		t.Fatalf("unexpected counter %#v", c)
	}
	next, err := c.Advance(now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if next != 1 || c.CurrentNumber != 1 {
		t.Fatalf("expected 1, got next=%d current=%d", next, c.CurrentNumber)
	}

	c.CurrentNumber = math.MaxInt64
	if _, err := c.Advance(now); !errors.Is(err, ErrCounterOverflow) {
		t.Fatalf("expected ErrCounterOverflow, got %v", err)
	}
	if _, err := NewCounter("  ", now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestQuoteStatusParseAndBoardStatus(t *testing.T) {
	for _, raw := range []string{"draft", "Sent", " NEGOTIATING ", "approved", "rejected", "expired"} {
		if _, err := ParseQuoteStatus(raw); err != nil {
			t.Fatalf("ParseQuoteStatus(%q) error = %v", raw, err)
		}
	}
	if _, err := ParseQuoteStatus("Unknown"); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if got := QuoteStatus("Unknown").BoardStatus(); got != StatusDraft {
		t.Fatalf("unknown status shown as %q, want draft", got)
	}
	if got := StatusApproved.BoardStatus(); got != StatusApproved {
		t.Fatalf("approved shown as %q", got)
	}
	statuses := QuoteStatuses()
	if len(statuses) != 6 || statuses[0] != StatusDraft || statuses[5] != StatusExpired {
		t.Fatalf("unexpected status order %#v", statuses)
	}
	statuses[0] = "mutated"
	if QuoteStatuses()[0] != StatusDraft {
		t.Fatal("QuoteStatuses() must return a copy")
	}
}

func TestNewQuoteTotals(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q, err := NewQuote(QuoteInput{
		ID:       "q1",
		TenantID: "t1",
		Number:   "COT-0001",
		ClientID: "c1",
		TaxRate:  decimal.RequireFromString("0.16"),
		Items: []LineItem{
			{ProductID: "p1", Description: "Widget", Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")},
			{ProductID: "p2", Description: "Setup", Quantity: 1, UnitPrice: decimal.RequireFromString("100")},
		},
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}, now)
	if err != nil {
		t.Fatalf("NewQuote() error = %v", err)
	}
	if q.Status != StatusDraft {
		t.Fatalf("expected draft, got %q", q.Status)
	}
	if q.Subtotal.String() != "159.97" {
		t.Fatalf("subtotal = %s", q.Subtotal)
	}
	if q.Tax.String() != "25.6" {
		t.Fatalf("tax = %s", q.Tax)
	}
	if q.Total.String() != "185.57" {
		t.Fatalf("total = %s", q.Total)
	}
	if q.Expired(now) || !q.Expired(now.Add(31*24*time.Hour)) {
		t.Fatal("unexpected expiry evaluation")
	}
}

func TestNewQuoteValidation(t *testing.T) {
	now := time.Now()
	base := QuoteInput{
		ID:       "q1",
		TenantID: "t1",
		Number:   "COT-0001",
		ClientID: "c1",
		Items:    []LineItem{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
	}

	in := base
	in.Number = " "
	if _, err := NewQuote(in, now); err != ErrInvalidNumber {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	in = base
	in.Items = nil
	if _, err := NewQuote(in, now); err != ErrEmptyQuote {
		t.Fatalf("expected ErrEmptyQuote, got %v", err)
	}
	in = base
	in.Items = []LineItem{{ProductID: "p1", Quantity: 0, UnitPrice: decimal.NewFromInt(5)}}
	if _, err := NewQuote(in, now); err != ErrInvalidQuantity {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	in = base
	in.TaxRate = decimal.NewFromInt(-1)
	if _, err := NewQuote(in, now); err != ErrInvalidTaxRate {
		t.Fatalf("expected ErrInvalidTaxRate, got %v", err)
	}
}

func TestQuoteSetStatusIsPermissive(t *testing.T) {
	now := time.Now()
	q := Quote{Status: StatusApproved}
	if err := q.SetStatus(StatusDraft, now); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if q.Status != StatusDraft {
		t.Fatalf("expected draft, got %q", q.Status)
	}
	if err := q.SetStatus("archived", now); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestNewProductAndClient(t *testing.T) {
	now := time.Now()
	p, err := NewProduct(ProductInput{ID: "p1", TenantID: "t1", SKU: " ab-1 ", Name: "Widget", UnitPrice: decimal.NewFromInt(10)}, now)
	if err != nil {
		t.Fatalf("NewProduct() error = %v", err)
	}
	if p.SKU != "AB-1" {
		t.Fatalf("unexpected sku %q", p.SKU)
	}
	if _, err := NewProduct(ProductInput{ID: "p1", TenantID: "t1", Name: "x", UnitPrice: decimal.NewFromInt(-1)}, now); err != ErrInvalidPrice {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	c, err := NewClient(ClientInput{ID: "c1", TenantID: "t1", Name: " Acme ", Email: " Ops@Acme.COM "}, now)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.Name != "Acme" || c.Email != "ops@acme.com" {
		t.Fatalf("unexpected client %#v", c)
	}
	if _, err := NewTenant("t1", " ", now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}
