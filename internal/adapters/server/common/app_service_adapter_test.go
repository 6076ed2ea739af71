package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylla/cotiza/internal/adapters/storage/sqlite"
	"github.com/hylla/cotiza/internal/app"
)

// newTestAdapter wires the adapter over an in-memory sqlite service with one tenant.
func newTestAdapter(t *testing.T) (*AppServiceAdapter, *app.Service) {
	t.Helper()
	repo, err := sqlite.OpenInMemory(sqlite.Options{})
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	next := 0
	ids := func() string {
		next++
		return fmt.Sprintf("id-%d", next)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := app.NewService(repo, ids, clock, app.ServiceConfig{TaxRate: decimal.RequireFromString("0.16")})
	if _, err := svc.CreateTenant(context.Background(), "t1", "Acme"); err != nil {
		t.Fatalf("CreateTenant() error = %v", err)
	}
	cache := app.NewInsightCache(svc, nil, clock, app.InsightCacheConfig{})
	return NewAppServiceAdapter(svc, cache), svc
}

func TestAppServiceAdapterQuoteFlow(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(t)

	client, err := adapter.CreateClient(ctx, CreateClientRequest{TenantID: "t1", Name: "Globex"})
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	product, err := adapter.CreateProduct(ctx, CreateProductRequest{TenantID: "t1", Name: "Widget", UnitPrice: "19.99"})
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	quote, err := adapter.CreateQuote(ctx, CreateQuoteRequest{
		TenantID: "t1",
		ClientID: client.ID,
		Items:    []QuoteItemRequest{{ProductID: product.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("CreateQuote() error = %v", err)
	}
	if quote.Number != "COT-0001" || quote.Status != "draft" || quote.Total != "69.57" {
		t.Fatalf("unexpected quote %#v", quote)
	}

	byNumber, err := adapter.GetQuote(ctx, "t1", "cot-0001")
	if err != nil {
		t.Fatalf("GetQuote() by number error = %v", err)
	}
	if byNumber.ID != quote.ID {
		t.Fatalf("expected %q, got %q", quote.ID, byNumber.ID)
	}

	updated, err := adapter.SetQuoteStatus(ctx, SetQuoteStatusRequest{TenantID: "t1", QuoteID: quote.ID, Status: "Approved"})
	if err != nil {
		t.Fatalf("SetQuoteStatus() error = %v", err)
	}
	if updated.Status != "approved" {
		t.Fatalf("unexpected status %q", updated.Status)
	}

	board, err := adapter.Board(ctx, "t1")
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	for _, column := range board {
		want := 0
		if column.Status == "approved" {
			want = 1
		}
		if len(column.Quotes) != want {
			t.Fatalf("column %s has %d quotes, want %d", column.Status, len(column.Quotes), want)
		}
	}

	number, doc, err := adapter.RenderQuotePDF(ctx, "t1", quote.ID)
	if err != nil {
		t.Fatalf("RenderQuotePDF() error = %v", err)
	}
	if number != "COT-0001" || !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Fatalf("unexpected pdf output for %q", number)
	}

	insight, err := adapter.Insights(ctx, "t1")
	if err != nil {
		t.Fatalf("Insights() error = %v", err)
	}
	if insight.QuoteCount != 1 || insight.StatusCounts["approved"] != 1 {
		t.Fatalf("unexpected insight %#v", insight)
	}

	if err := adapter.DeleteQuote(ctx, "t1", "COT-0001"); err != nil {
		t.Fatalf("DeleteQuote() error = %v", err)
	}
	if _, err := adapter.GetQuote(ctx, "t1", quote.ID); ErrorCode(err) != CodeNotFound {
		t.Fatalf("expected not_found after delete, got %v", err)
	}
}

func TestAppServiceAdapterErrorCodes(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(t)

	_, err := adapter.CreateProduct(ctx, CreateProductRequest{TenantID: "t1", Name: "Widget", UnitPrice: "cheap"})
	if ErrorCode(err) != CodeInvalidRequest {
		t.Fatalf("expected invalid_request for bad price, got %v", err)
	}
	_, err = adapter.CreateQuote(ctx, CreateQuoteRequest{TenantID: "t1", ClientID: "missing"})
	if code := ErrorCode(err); code != CodeInvalidRequest && code != CodeNotFound {
		t.Fatalf("expected a client error, got %v", err)
	}
	_, err = adapter.ListQuotes(ctx, "nope")
	if ErrorCode(err) != CodeNotFound {
		t.Fatalf("expected not_found for unknown tenant, got %v", err)
	}
	_, err = adapter.SetQuoteStatus(ctx, SetQuoteStatusRequest{TenantID: "t1", QuoteID: " "})
	if ErrorCode(err) != CodeInvalidRequest {
		t.Fatalf("expected invalid_request for empty quote id, got %v", err)
	}
}

func TestMapAppErrorAllocation(t *testing.T) {
	err := mapAppError("create quote", &app.AllocationError{TenantID: "t1", Err: app.ErrNotFound})
	if ErrorCode(err) != CodeAllocationFailed {
		t.Fatalf("expected allocation_failed, got %v", err)
	}
	if !errors.Is(err, app.ErrAllocation) {
		t.Fatalf("expected wrapped allocation error, got %v", err)
	}
	if ErrorCode(errors.New("boom")) != CodeInternal {
		t.Fatal("expected internal_error for unknown errors")
	}
}
