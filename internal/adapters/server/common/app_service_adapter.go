package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hylla/cotiza/internal/adapters/render/pdf"
	"github.com/hylla/cotiza/internal/app"
	"github.com/hylla/cotiza/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service  *app.Service
	insights *app.InsightCache
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
// A nil insights cache disables Insights.
func NewAppServiceAdapter(service *app.Service, insights *app.InsightCache) *AppServiceAdapter {
	return &AppServiceAdapter{service: service, insights: insights}
}

// CreateTenant creates one tenant with a zeroed quote counter.
func (a *AppServiceAdapter) CreateTenant(ctx context.Context, in CreateTenantRequest) (Tenant, error) {
	tenant, err := a.service.CreateTenant(ctx, in.ID, in.Name)
	if err != nil {
		return Tenant{}, mapAppError("create tenant", err)
	}
	return mapTenant(tenant), nil
}

// ListTenants lists all tenants.
func (a *AppServiceAdapter) ListTenants(ctx context.Context) ([]Tenant, error) {
	tenants, err := a.service.ListTenants(ctx)
	if err != nil {
		return nil, mapAppError("list tenants", err)
	}
	out := make([]Tenant, 0, len(tenants))
	for _, tenant := range tenants {
		out = append(out, mapTenant(tenant))
	}
	return out, nil
}

// CreateClient creates one client.
func (a *AppServiceAdapter) CreateClient(ctx context.Context, in CreateClientRequest) (Client, error) {
	client, err := a.service.CreateClient(ctx, app.CreateClientInput{
		TenantID: in.TenantID,
		Name:     in.Name,
		Email:    in.Email,
		Company:  in.Company,
	})
	if err != nil {
		return Client{}, mapAppError("create client", err)
	}
	return mapClient(client), nil
}

// ListClients lists clients for one tenant.
func (a *AppServiceAdapter) ListClients(ctx context.Context, tenantID string) ([]Client, error) {
	if err := a.requireTenant(ctx, "list clients", tenantID); err != nil {
		return nil, err
	}
	clients, err := a.service.ListClients(ctx, tenantID)
	if err != nil {
		return nil, mapAppError("list clients", err)
	}
	out := make([]Client, 0, len(clients))
	for _, client := range clients {
		out = append(out, mapClient(client))
	}
	return out, nil
}

// CreateProduct creates one catalog product.
func (a *AppServiceAdapter) CreateProduct(ctx context.Context, in CreateProductRequest) (Product, error) {
	price, err := parseDecimal("unit_price", in.UnitPrice)
	if err != nil {
		return Product{}, err
	}
	product, err := a.service.CreateProduct(ctx, app.CreateProductInput{
		TenantID:  in.TenantID,
		SKU:       in.SKU,
		Name:      in.Name,
		UnitPrice: price,
	})
	if err != nil {
		return Product{}, mapAppError("create product", err)
	}
	return mapProduct(product), nil
}

// ListProducts lists catalog products for one tenant.
func (a *AppServiceAdapter) ListProducts(ctx context.Context, tenantID string) ([]Product, error) {
	if err := a.requireTenant(ctx, "list products", tenantID); err != nil {
		return nil, err
	}
	products, err := a.service.ListProducts(ctx, tenantID)
	if err != nil {
		return nil, mapAppError("list products", err)
	}
	out := make([]Product, 0, len(products))
	for _, product := range products {
		out = append(out, mapProduct(product))
	}
	return out, nil
}

// CreateQuote allocates a number and stores one draft quote.
func (a *AppServiceAdapter) CreateQuote(ctx context.Context, in CreateQuoteRequest) (Quote, error) {
	input := app.CreateQuoteInput{
		TenantID: in.TenantID,
		ClientID: in.ClientID,
		Notes:    in.Notes,
	}
	if in.ExpiresAt != nil {
		input.ExpiresAt = *in.ExpiresAt
	}
	if strings.TrimSpace(in.TaxRate) != "" {
		rate, err := parseDecimal("tax_rate", in.TaxRate)
		if err != nil {
			return Quote{}, err
		}
		input.TaxRate = &rate
	}
	for i, item := range in.Items {
		line := app.QuoteItemInput{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			Description: item.Description,
		}
		if strings.TrimSpace(item.UnitPrice) != "" {
			price, err := parseDecimal(fmt.Sprintf("items[%d].unit_price", i), item.UnitPrice)
			if err != nil {
				return Quote{}, err
			}
			line.UnitPrice = &price
		}
		input.Items = append(input.Items, line)
	}

	quote, err := a.service.CreateQuote(ctx, input)
	if err != nil {
		return Quote{}, mapAppError("create quote", err)
	}
	a.invalidate(quote.TenantID)
	return MapQuote(quote), nil
}

// GetQuote resolves one quote by id or by number.
func (a *AppServiceAdapter) GetQuote(ctx context.Context, tenantID, ref string) (Quote, error) {
	quote, err := a.lookupQuote(ctx, tenantID, ref)
	if err != nil {
		return Quote{}, err
	}
	return MapQuote(quote), nil
}

// ListQuotes lists quotes for one tenant.
func (a *AppServiceAdapter) ListQuotes(ctx context.Context, tenantID string) ([]Quote, error) {
	if err := a.requireTenant(ctx, "list quotes", tenantID); err != nil {
		return nil, err
	}
	quotes, err := a.service.ListQuotes(ctx, tenantID)
	if err != nil {
		return nil, mapAppError("list quotes", err)
	}
	return mapQuotes(quotes), nil
}

// DeleteQuote deletes one quote. Its number is never reissued.
func (a *AppServiceAdapter) DeleteQuote(ctx context.Context, tenantID, ref string) error {
	quote, err := a.lookupQuote(ctx, tenantID, ref)
	if err != nil {
		return err
	}
	if err := a.service.DeleteQuote(ctx, tenantID, quote.ID); err != nil {
		return mapAppError("delete quote", err)
	}
	a.invalidate(quote.TenantID)
	return nil
}

// SetQuoteStatus applies one direct status change.
func (a *AppServiceAdapter) SetQuoteStatus(ctx context.Context, in SetQuoteStatusRequest) (Quote, error) {
	quote, err := a.lookupQuote(ctx, in.TenantID, in.QuoteID)
	if err != nil {
		return Quote{}, err
	}
	updated, err := a.service.UpdateQuoteStatus(ctx, in.TenantID, quote.ID, in.Status)
	if err != nil {
		return Quote{}, mapAppError("set quote status", err)
	}
	a.invalidate(updated.TenantID)
	return MapQuote(updated), nil
}

// Board returns the tenant quotes grouped by status column.
func (a *AppServiceAdapter) Board(ctx context.Context, tenantID string) ([]BoardColumn, error) {
	if err := a.requireTenant(ctx, "board", tenantID); err != nil {
		return nil, err
	}
	columns, err := a.service.Board(ctx, tenantID)
	if err != nil {
		return nil, mapAppError("board", err)
	}
	out := make([]BoardColumn, 0, len(columns))
	for _, column := range columns {
		out = append(out, BoardColumn{
			Status: string(column.Status),
			Label:  column.Label,
			Quotes: mapQuotes(column.Quotes),
		})
	}
	return out, nil
}

// RenderQuotePDF renders one quote as a PDF document.
func (a *AppServiceAdapter) RenderQuotePDF(ctx context.Context, tenantID, ref string) (string, []byte, error) {
	quote, err := a.lookupQuote(ctx, tenantID, ref)
	if err != nil {
		return "", nil, err
	}
	tenant, err := a.service.GetTenant(ctx, quote.TenantID)
	if err != nil {
		return "", nil, mapAppError("render quote", err)
	}
	client, err := a.service.GetClient(ctx, quote.TenantID, quote.ClientID)
	if err != nil && !errors.Is(err, app.ErrNotFound) {
		return "", nil, mapAppError("render quote", err)
	}
	var buf bytes.Buffer
	if err := pdf.RenderQuote(&buf, pdf.FromQuote(quote, tenant, client)); err != nil {
		return "", nil, fmt.Errorf("render quote: %w", err)
	}
	return quote.Number, buf.Bytes(), nil
}

// Insights returns the cached business summary for one tenant.
func (a *AppServiceAdapter) Insights(ctx context.Context, tenantID string) (Insight, error) {
	if a.insights == nil {
		return Insight{}, fmt.Errorf("insights are not configured: %w", ErrNotFound)
	}
	if err := a.requireTenant(ctx, "insights", tenantID); err != nil {
		return Insight{}, err
	}
	insight, err := a.insights.Get(ctx, strings.TrimSpace(tenantID))
	if err != nil {
		return Insight{}, mapAppError("insights", err)
	}
	return MapInsight(insight), nil
}

// lookupQuote resolves ref as a quote id first and a quote number second.
func (a *AppServiceAdapter) lookupQuote(ctx context.Context, tenantID, ref string) (domain.Quote, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Quote{}, fmt.Errorf("quote id is required: %w", ErrInvalidRequest)
	}
	quote, err := a.service.GetQuote(ctx, tenantID, ref)
	if errors.Is(err, app.ErrNotFound) {
		quote, err = a.service.GetQuoteByNumber(ctx, tenantID, ref)
	}
	if err != nil {
		return domain.Quote{}, mapAppError("get quote", err)
	}
	return quote, nil
}

// requireTenant rejects reads scoped to an unknown tenant.
func (a *AppServiceAdapter) requireTenant(ctx context.Context, operation, tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%s: tenant_id is required: %w", operation, ErrInvalidRequest)
	}
	if _, err := a.service.GetTenant(ctx, tenantID); err != nil {
		return mapAppError(operation, err)
	}
	return nil
}

func (a *AppServiceAdapter) invalidate(tenantID string) {
	if a.insights != nil {
		a.insights.Invalidate(tenantID)
	}
}

// MapQuote converts one domain quote into its wire form.
func MapQuote(q domain.Quote) Quote {
	out := Quote{
		ID:          q.ID,
		TenantID:    q.TenantID,
		Number:      q.Number,
		Status:      string(q.Status),
		BoardStatus: string(q.Status.BoardStatus()),
		ClientID:    q.ClientID,
		Items:       make([]LineItem, 0, len(q.Items)),
		TaxRate:     q.TaxRate.String(),
		Subtotal:    money(q.Subtotal),
		Tax:         money(q.Tax),
		Total:       money(q.Total),
		Notes:       q.Notes,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
	if !q.ExpiresAt.IsZero() {
		expires := q.ExpiresAt
		out.ExpiresAt = &expires
	}
	for _, item := range q.Items {
		out.Items = append(out.Items, LineItem{
			ProductID:   item.ProductID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   money(item.UnitPrice),
			Amount:      money(item.Amount()),
		})
	}
	return out
}

// MapInsight converts one app insight into its wire form.
func MapInsight(in app.Insight) Insight {
	out := Insight{
		TenantID:      in.TenantID,
		GeneratedAt:   in.GeneratedAt,
		QuoteCount:    in.QuoteCount,
		StatusCounts:  make(map[string]int, len(in.StatusCounts)),
		PipelineValue: money(in.PipelineValue),
		WinRate:       in.WinRate.StringFixed(2),
		AverageValue:  money(in.AverageValue),
		Summary:       in.Summary,
		Cached:        in.Cached,
	}
	for status, count := range in.StatusCounts {
		out.StatusCounts[string(status)] = count
	}
	for _, top := range in.TopClients {
		out.TopClients = append(out.TopClients, ClientTotal{
			ClientID: top.ClientID,
			Name:     top.Name,
			Quotes:   top.Quotes,
			Total:    money(top.Total),
		})
	}
	return out
}

func mapQuotes(quotes []domain.Quote) []Quote {
	out := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, MapQuote(q))
	}
	return out
}

func mapTenant(t domain.Tenant) Tenant {
	return Tenant{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

func mapClient(c domain.Client) Client {
	return Client{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Name:      c.Name,
		Email:     c.Email,
		Company:   c.Company,
		CreatedAt: c.CreatedAt,
	}
}

func mapProduct(p domain.Product) Product {
	return Product{
		ID:        p.ID,
		TenantID:  p.TenantID,
		SKU:       p.SKU,
		Name:      p.Name,
		UnitPrice: money(p.UnitPrice),
		CreatedAt: p.CreatedAt,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// parseDecimal parses one decimal wire field.
func parseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number: %w", field, ErrInvalidRequest)
	}
	return d, nil
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrAllocation):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrAllocationFailed, err))
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidTaxRate),
		errors.Is(err, domain.ErrInvalidNumber),
		errors.Is(err, domain.ErrEmptyQuote):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
