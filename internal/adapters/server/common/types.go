// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrAllocationFailed reports that no quote number could be reserved.
var ErrAllocationFailed = errors.New("allocation failed")

// Error codes shared by the HTTP and MCP surfaces.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "not_found"
	CodeAllocationFailed = "allocation_failed"
	CodeInternal         = "internal_error"
)

// ErrorCode classifies one adapter error into a stable transport code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrAllocationFailed):
		return CodeAllocationFailed
	default:
		return CodeInternal
	}
}

// Tenant is the wire form of a tenant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is the wire form of a client.
type Client struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is the wire form of a catalog product. Prices are decimal strings.
type Product struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	SKU       string    `json:"sku,omitempty"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

// LineItem is one quote line.
type LineItem struct {
	ProductID   string `json:"product_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

// Quote is the wire form of a quote. Status carries the stored value and
// BoardStatus the column it is shown under.
type Quote struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	BoardStatus string     `json:"board_status"`
	ClientID    string     `json:"client_id"`
	Items       []LineItem `json:"items"`
	TaxRate     string     `json:"tax_rate"`
	Subtotal    string     `json:"subtotal"`
	Tax         string     `json:"tax"`
	Total       string     `json:"total"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// BoardColumn is one status column of the quotes board.
type BoardColumn struct {
	Status string  `json:"status"`
	Label  string  `json:"label"`
	Quotes []Quote `json:"quotes"`
}

// ClientTotal aggregates quote value for one client.
type ClientTotal struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Quotes   int    `json:"quotes"`
	Total    string `json:"total"`
}

// Insight is the wire form of a tenant business summary.
type Insight struct {
	TenantID      string         `json:"tenant_id"`
	GeneratedAt   time.Time      `json:"generated_at"`
	QuoteCount    int            `json:"quote_count"`
	StatusCounts  map[string]int `json:"status_counts"`
	PipelineValue string         `json:"pipeline_value"`
	WinRate       string         `json:"win_rate"`
	AverageValue  string         `json:"average_value"`
	TopClients    []ClientTotal  `json:"top_clients,omitempty"`
	Summary       string         `json:"summary"`
	Cached        bool           `json:"cached"`
}

// CreateTenantRequest captures input for one new tenant.
type CreateTenantRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateClientRequest captures input for one new client.
type CreateClientRequest struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Company  string `json:"company,omitempty"`
}

// CreateProductRequest captures input for one new catalog product.
type CreateProductRequest struct {
	TenantID  string `json:"tenant_id"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
}

// QuoteItemRequest is one requested quote line. Description and UnitPrice
// default to the catalog product.
type QuoteItemRequest struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
	UnitPrice   string `json:"unit_price,omitempty"`
}

// CreateQuoteRequest captures input for one new quote.
type CreateQuoteRequest struct {
	TenantID  string             `json:"tenant_id"`
	ClientID  string             `json:"client_id"`
	Items     []QuoteItemRequest `json:"items"`
	TaxRate   string             `json:"tax_rate,omitempty"`
	Notes     string             `json:"notes,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// SetQuoteStatusRequest captures one direct status change.
type SetQuoteStatusRequest struct {
	TenantID string `json:"tenant_id"`
	QuoteID  string `json:"quote_id"`
	Status   string `json:"status"`
}

// TenantService exposes tenant reads and writes.
type TenantService interface {
	CreateTenant(context.Context, CreateTenantRequest) (Tenant, error)
	ListTenants(context.Context) ([]Tenant, error)
}

// CatalogService exposes client and product operations.
type CatalogService interface {
	CreateClient(context.Context, CreateClientRequest) (Client, error)
	ListClients(context.Context, string) ([]Client, error)
	CreateProduct(context.Context, CreateProductRequest) (Product, error)
	ListProducts(context.Context, string) ([]Product, error)
}

// QuoteService exposes quote operations and the board view.
type QuoteService interface {
	CreateQuote(context.Context, CreateQuoteRequest) (Quote, error)
	GetQuote(context.Context, string, string) (Quote, error)
	ListQuotes(context.Context, string) ([]Quote, error)
	DeleteQuote(context.Context, string, string) error
	SetQuoteStatus(context.Context, SetQuoteStatusRequest) (Quote, error)
	Board(context.Context, string) ([]BoardColumn, error)
	// RenderQuotePDF returns the quote number and the rendered document.
	RenderQuotePDF(context.Context, string, string) (string, []byte, error)
}

// InsightReader resolves the cached business summary for one tenant.
type InsightReader interface {
	Insights(context.Context, string) (Insight, error)
}

// Service is the full surface served by the HTTP API.
type Service interface {
	TenantService
	CatalogService
	QuoteService
	InsightReader
}
