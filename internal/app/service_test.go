package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylla/cotiza/internal/domain"
)

type fakeRepo struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	tenants  map[string]domain.Tenant
	counters map[string]domain.Counter
	clients  map[string]domain.Client
	products map[string]domain.Product
	quotes   map[string]domain.Quote

	txErr     error
	updateErr error
	statusErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tenants:  map[string]domain.Tenant{},
		counters: map[string]domain.Counter{},
		clients:  map[string]domain.Client{},
		products: map[string]domain.Product{},
		quotes:   map[string]domain.Quote{},
	}
}

type fakeCounterTx struct {
	repo   *fakeRepo
	staged map[string]domain.Counter
}

func (tx *fakeCounterTx) GetCounter(_ context.Context, tenantID string) (domain.Counter, error) {
	if c, ok := tx.staged[tenantID]; ok {
		return c, nil
	}
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	c, ok := tx.repo.counters[tenantID]
	if !ok {
		return domain.Counter{}, ErrNotFound
	}
	return c, nil
}

func (tx *fakeCounterTx) UpdateCounter(_ context.Context, c domain.Counter) error {
	if tx.repo.updateErr != nil {
		return tx.repo.updateErr
	}
	tx.staged[c.TenantID] = c
	return nil
}

// WithinCounterTx serializes callbacks and applies staged writes only on success.
func (f *fakeRepo) WithinCounterTx(_ context.Context, fn func(CounterTx) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	if f.txErr != nil {
		return f.txErr
	}
	tx := &fakeCounterTx{repo: f, staged: map[string]domain.Counter{}}
	if err := fn(tx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range tx.staged {
		f.counters[id] = c
	}
	return nil
}

func (f *fakeRepo) counter(tenantID string) domain.Counter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[tenantID]
}

func (f *fakeRepo) CreateTenant(_ context.Context, t domain.Tenant, c domain.Counter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[t.ID] = t
	f.counters[c.TenantID] = c
	return nil
}

func (f *fakeRepo) GetTenant(_ context.Context, id string) (domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return domain.Tenant{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListTenants(_ context.Context) ([]domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Tenant, 0, len(f.tenants))
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRepo) CreateClient(_ context.Context, c domain.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[c.ID] = c
	return nil
}

func (f *fakeRepo) GetClient(_ context.Context, id string) (domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return domain.Client{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) ListClients(_ context.Context, tenantID string) ([]domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Client{}
	for _, c := range f.clients {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteClient(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[id]; !ok {
		return ErrNotFound
	}
	delete(f.clients, id)
	return nil
}

func (f *fakeRepo) CreateProduct(_ context.Context, p domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
	return nil
}

func (f *fakeRepo) GetProduct(_ context.Context, id string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListProducts(_ context.Context, tenantID string) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Product{}
	for _, p := range f.products {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	return nil
}

func (f *fakeRepo) CreateQuote(_ context.Context, q domain.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.quotes {
		if existing.TenantID == q.TenantID && existing.Number == q.Number {
			return fmt.Errorf("duplicate quote number %s", q.Number)
		}
	}
	f.quotes[q.ID] = q
	return nil
}

func (f *fakeRepo) GetQuote(_ context.Context, id string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return domain.Quote{}, ErrNotFound
	}
	return q, nil
}

func (f *fakeRepo) GetQuoteByNumber(_ context.Context, tenantID, number string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.quotes {
		if q.TenantID == tenantID && q.Number == number {
			return q, nil
		}
	}
	return domain.Quote{}, ErrNotFound
}

func (f *fakeRepo) ListQuotes(_ context.Context, tenantID string) ([]domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Quote{}
	for _, q := range f.quotes {
		if q.TenantID == tenantID {
			out = append(out, q)
		}
	}
	slices.SortFunc(out, func(a, b domain.Quote) int { return strings.Compare(a.Number, b.Number) })
	return out, nil
}

func (f *fakeRepo) UpdateQuoteStatus(_ context.Context, tenantID, quoteID string, status domain.QuoteStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	q, ok := f.quotes[quoteID]
	if !ok || q.TenantID != tenantID {
		return ErrNotFound
	}
	q.Status = status
	f.quotes[quoteID] = q
	return nil
}

func (f *fakeRepo) DeleteQuote(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.quotes[id]; !ok {
		return ErrNotFound
	}
	delete(f.quotes, id)
	return nil
}

func sequentialIDs(prefix string) IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock(now time.Time) Clock {
	return func() time.Time { return now }
}

func newTestService(t *testing.T, repo *fakeRepo, now time.Time) (*Service, domain.Client, domain.Product) {
	t.Helper()
	svc := NewService(repo, sequentialIDs("id"), fixedClock(now), ServiceConfig{
		TaxRate: decimal.RequireFromString("0.16"),
	})
	ctx := context.Background()
	if _, err := svc.CreateTenant(ctx, "t1", "Acme Sales"); err != nil {
		t.Fatalf("CreateTenant() error = %v", err)
	}
	client, err := svc.CreateClient(ctx, CreateClientInput{TenantID: "t1", Name: "Globex", Email: "buyer@globex.test"})
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	product, err := svc.CreateProduct(ctx, CreateProductInput{TenantID: "t1", SKU: "wid-1", Name: "Widget", UnitPrice: decimal.RequireFromString("19.99")})
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	return svc, client, product
}

func TestCreateTenantProvisionsCounter(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, sequentialIDs("t"), fixedClock(time.Now()), ServiceConfig{})
	tenant, err := svc.CreateTenant(context.Background(), "", "Acme")
	if err != nil {
		t.Fatalf("CreateTenant() error = %v", err)
	}
	if tenant.ID != "t-1" {
		t.Fatalf("expected generated id, got %q", tenant.ID)
	}
	c, ok := repo.counters[tenant.ID]
	if !ok || c.CurrentNumber != 0 {
		t.Fatalf("expected zeroed counter, got %#v ok=%t", c, ok)
	}

	again, err := svc.EnsureTenant(context.Background(), tenant.ID, "ignored")
	if err != nil {
		t.Fatalf("EnsureTenant() error = %v", err)
	}
	if again.Name != "Acme" || len(repo.tenants) != 1 {
		t.Fatalf("EnsureTenant() should return the existing tenant, got %#v", again)
	}
}

func TestCreateQuoteSnapshotsCatalogAndTotals(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	svc, client, product := newTestService(t, repo, now)

	override := decimal.RequireFromString("100")
	quote, err := svc.CreateQuote(context.Background(), CreateQuoteInput{
		TenantID: "t1",
		ClientID: client.ID,
		Items: []QuoteItemInput{
			{ProductID: product.ID, Quantity: 3},
			{ProductID: product.ID, Quantity: 1, Description: "Setup", UnitPrice: &override},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuote() error = %v", err)
	}
	if quote.Number != "COT-0001" || quote.Status != domain.StatusDraft {
		t.Fatalf("unexpected quote header %q %q", quote.Number, quote.Status)
	}
	if quote.Items[0].Description != "Widget" || quote.Items[0].UnitPrice.String() != "19.99" {
		t.Fatalf("expected catalog snapshot, got %#v", quote.Items[0])
	}
	if quote.Total.String() != "185.57" {
		t.Fatalf("total = %s", quote.Total)
	}
	if !quote.ExpiresAt.Equal(now.AddDate(0, 0, DefaultValidityDays)) {
		t.Fatalf("unexpected expiry %s", quote.ExpiresAt)
	}
	if repo.counter("t1").CurrentNumber != 1 {
		t.Fatalf("expected counter 1, got %d", repo.counter("t1").CurrentNumber)
	}
	byNumber, err := svc.GetQuoteByNumber(context.Background(), "t1", "cot-0001")
	if err != nil || byNumber.ID != quote.ID {
		t.Fatalf("GetQuoteByNumber() = %#v, %v", byNumber, err)
	}
}

func TestCreateQuoteAllocationFailureCreatesNothing(t *testing.T) {
	repo := newFakeRepo()
	svc, client, product := newTestService(t, repo, time.Now())
	repo.txErr = errors.New("database is locked")

	_, err := svc.CreateQuote(context.Background(), CreateQuoteInput{
		TenantID: "t1",
		ClientID: client.ID,
		Items:    []QuoteItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrAllocation) {
		t.Fatalf("expected ErrAllocation, got %v", err)
	}
	var allocErr *AllocationError
	if !errors.As(err, &allocErr) || allocErr.TenantID != "t1" {
		t.Fatalf("expected *AllocationError for t1, got %#v", err)
	}
	if len(repo.quotes) != 0 {
		t.Fatalf("expected no quote to be stored, got %d", len(repo.quotes))
	}
	if repo.counter("t1").CurrentNumber != 0 {
		t.Fatalf("counter must not move on failure, got %d", repo.counter("t1").CurrentNumber)
	}
}

func TestCreateQuoteValidatesBeforeAllocating(t *testing.T) {
	repo := newFakeRepo()
	svc, client, product := newTestService(t, repo, time.Now())
	ctx := context.Background()

	if _, err := svc.CreateQuote(ctx, CreateQuoteInput{TenantID: "t1", ClientID: client.ID}); err != domain.ErrEmptyQuote {
		t.Fatalf("expected ErrEmptyQuote, got %v", err)
	}
	if _, err := svc.CreateQuote(ctx, CreateQuoteInput{
		TenantID: "t1",
		ClientID: client.ID,
		Items:    []QuoteItemInput{{ProductID: product.ID, Quantity: 0}},
	}); err != domain.ErrInvalidQuantity {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.CreateQuote(ctx, CreateQuoteInput{
		TenantID: "t1",
		ClientID: client.ID,
		Items:    []QuoteItemInput{{ProductID: "missing", Quantity: 1}},
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := svc.CreateTenant(ctx, "t2", "Other"); err != nil {
		t.Fatalf("CreateTenant() error = %v", err)
	}
	if _, err := svc.CreateQuote(ctx, CreateQuoteInput{
		TenantID: "t2",
		ClientID: client.ID,
		Items:    []QuoteItemInput{{ProductID: product.ID, Quantity: 1}},
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-tenant client to be not found, got %v", err)
	}
	if repo.counter("t1").CurrentNumber != 0 || repo.counter("t2").CurrentNumber != 0 {
		t.Fatal("rejected requests must not consume numbers")
	}
}

func TestUpdateQuoteStatusIsPermissive(t *testing.T) {
	repo := newFakeRepo()
	svc, client, product := newTestService(t, repo, time.Now())
	ctx := context.Background()
	quote, err := svc.CreateQuote(ctx, CreateQuoteInput{
		TenantID: "t1",
		ClientID: client.ID,
		Items:    []QuoteItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateQuote() error = %v", err)
	}
	for _, raw := range []string{"approved", "Draft", "expired", "sent"} {
		updated, err := svc.UpdateQuoteStatus(ctx, "t1", quote.ID, raw)
		if err != nil {
			t.Fatalf("UpdateQuoteStatus(%q) error = %v", raw, err)
		}
		if string(updated.Status) != strings.ToLower(raw) {
			t.Fatalf("expected %q, got %q", raw, updated.Status)
		}
	}
	if _, err := svc.UpdateQuoteStatus(ctx, "t1", quote.ID, "archived"); err != domain.ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateQuoteStatus(ctx, "t2", quote.ID, "sent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other tenant, got %v", err)
	}
}

func TestExpireDueQuotes(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	svc, client, product := newTestService(t, repo, now)
	ctx := context.Background()

	create := func(expires time.Time) domain.Quote {
		t.Helper()
		q, err := svc.CreateQuote(ctx, CreateQuoteInput{
			TenantID:  "t1",
			ClientID:  client.ID,
			Items:     []QuoteItemInput{{ProductID: product.ID, Quantity: 1}},
			ExpiresAt: expires,
		})
		if err != nil {
			t.Fatalf("CreateQuote() error = %v", err)
		}
		return q
	}
	due := create(now.Add(-time.Hour))
	approved := create(now.Add(-time.Hour))
	open := create(now.Add(time.Hour))
	if _, err := svc.UpdateQuoteStatus(ctx, "t1", approved.ID, "approved"); err != nil {
		t.Fatalf("UpdateQuoteStatus() error = %v", err)
	}

	n, err := svc.ExpireDueQuotes(ctx, "t1")
	if err != nil {
		t.Fatalf("ExpireDueQuotes() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired quote, got %d", n)
	}
	if repo.quotes[due.ID].Status != domain.StatusExpired {
		t.Fatalf("expected due quote expired, got %q", repo.quotes[due.ID].Status)
	}
	if repo.quotes[approved.ID].Status != domain.StatusApproved || repo.quotes[open.ID].Status != domain.StatusDraft {
		t.Fatal("terminal and open quotes must keep their status")
	}
}

func TestDeleteQuoteDoesNotReissueNumber(t *testing.T) {
	repo := newFakeRepo()
	svc, client, product := newTestService(t, repo, time.Now())
	ctx := context.Background()
	in := CreateQuoteInput{TenantID: "t1", ClientID: client.ID, Items: []QuoteItemInput{{ProductID: product.ID, Quantity: 1}}}

	first, err := svc.CreateQuote(ctx, in)
	if err != nil {
		t.Fatalf("CreateQuote() error = %v", err)
	}
	if err := svc.DeleteQuote(ctx, "t1", first.ID); err != nil {
		t.Fatalf("DeleteQuote() error = %v", err)
	}
	second, err := svc.CreateQuote(ctx, in)
	if err != nil {
		t.Fatalf("CreateQuote() error = %v", err)
	}
	if second.Number != "COT-0002" {
		t.Fatalf("expected COT-0002, got %q", second.Number)
	}
	if err := svc.DeleteQuote(ctx, "t1", first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceBoardCoercesUnknownStatus(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(t, repo, time.Now())
	repo.quotes["q1"] = domain.Quote{ID: "q1", TenantID: "t1", Number: "COT-0001", Status: "Unknown"}

	columns, err := svc.Board(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if columns[0].Status != domain.StatusDraft || len(columns[0].Quotes) != 1 {
		t.Fatalf("expected quote under Draft, got %#v", columns[0])
	}
	if repo.quotes["q1"].Status != "Unknown" {
		t.Fatal("board grouping must not mutate the record")
	}
}
