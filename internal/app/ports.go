package app

import (
	"context"

	"github.com/hylla/cotiza/internal/domain"
)

// Repository represents repository data used by this package.
type Repository interface {
	CounterStore
	QuoteStatusStore

	// CreateTenant stores the tenant and its zeroed counter in one transaction.
	CreateTenant(context.Context, domain.Tenant, domain.Counter) error
	GetTenant(context.Context, string) (domain.Tenant, error)
	ListTenants(context.Context) ([]domain.Tenant, error)

	CreateClient(context.Context, domain.Client) error
	GetClient(context.Context, string) (domain.Client, error)
	ListClients(context.Context, string) ([]domain.Client, error)
	DeleteClient(context.Context, string) error

	CreateProduct(context.Context, domain.Product) error
	GetProduct(context.Context, string) (domain.Product, error)
	ListProducts(context.Context, string) ([]domain.Product, error)
	DeleteProduct(context.Context, string) error

	CreateQuote(context.Context, domain.Quote) error
	GetQuote(context.Context, string) (domain.Quote, error)
	GetQuoteByNumber(context.Context, string, string) (domain.Quote, error)
	DeleteQuote(context.Context, string) error
}

// CounterStore runs read-modify-write transactions over tenant counters.
// Implementations serialize conflicting transactions and retry them on
// conflict; an error means nothing was committed.
type CounterStore interface {
	WithinCounterTx(context.Context, func(CounterTx) error) error
}

// CounterTx is the transaction handle passed to WithinCounterTx callbacks.
type CounterTx interface {
	GetCounter(context.Context, string) (domain.Counter, error)
	UpdateCounter(context.Context, domain.Counter) error
}

// QuoteStatusStore is the store surface used by the board.
type QuoteStatusStore interface {
	// UpdateQuoteStatus writes only the status and updated_at fields.
	UpdateQuoteStatus(ctx context.Context, tenantID, quoteID string, status domain.QuoteStatus) error
	ListQuotes(ctx context.Context, tenantID string) ([]domain.Quote, error)
}
