package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/hylla/cotiza/internal/domain"
)

// Default quote settings.
const (
	DefaultValidityDays = 30
	DefaultTenantName   = "Default"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	NumberFormat domain.NumberFormat
	TaxRate      decimal.Decimal
	ValidityDays int
	Logger       *charmLog.Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	repo         Repository
	idGen        IDGenerator
	clock        Clock
	allocator    *SequenceAllocator
	taxRate      decimal.Decimal
	validityDays int
	logger       *charmLog.Logger
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.NumberFormat.Prefix == "" && cfg.NumberFormat.Width == 0 {
		cfg.NumberFormat = domain.DefaultNumberFormat()
	}
	if cfg.ValidityDays <= 0 {
		cfg.ValidityDays = DefaultValidityDays
	}
	var counters CounterStore
	if repo != nil {
		counters = repo
	}
	return &Service{
		repo:         repo,
		idGen:        idGen,
		clock:        clock,
		allocator:    NewSequenceAllocator(counters, cfg.NumberFormat, clock, cfg.Logger),
		taxRate:      cfg.TaxRate,
		validityDays: cfg.ValidityDays,
		logger:       cfg.Logger,
	}
}

// Allocator returns the quote number allocator used by CreateQuote.
func (s *Service) Allocator() *SequenceAllocator {
	return s.allocator
}

// CreateTenant provisions a tenant and its quote counter.
func (s *Service) CreateTenant(ctx context.Context, id, name string) (domain.Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = s.idGen()
	}
	now := s.clock()
	tenant, err := domain.NewTenant(id, name, now)
	if err != nil {
		return domain.Tenant{}, err
	}
	counter, err := domain.NewCounter(tenant.ID, now)
	if err != nil {
		return domain.Tenant{}, err
	}
	if err := s.repo.CreateTenant(ctx, tenant, counter); err != nil {
		return domain.Tenant{}, err
	}
	return tenant, nil
}

// EnsureTenant returns the tenant with id, provisioning it when missing.
func (s *Service) EnsureTenant(ctx context.Context, id, name string) (domain.Tenant, error) {
	tenant, err := s.repo.GetTenant(ctx, strings.TrimSpace(id))
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Tenant{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultTenantName
	}
	return s.CreateTenant(ctx, id, name)
}

// GetTenant returns tenant.
func (s *Service) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	return s.repo.GetTenant(ctx, strings.TrimSpace(id))
}

// ListTenants lists tenants.
func (s *Service) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	return s.repo.ListTenants(ctx)
}

// CreateClientInput holds input values for create client operations.
type CreateClientInput struct {
	TenantID string
	Name     string
	Email    string
	Company  string
}

// CreateClient creates client.
func (s *Service) CreateClient(ctx context.Context, in CreateClientInput) (domain.Client, error) {
	if _, err := s.GetTenant(ctx, in.TenantID); err != nil {
		return domain.Client{}, err
	}
	client, err := domain.NewClient(domain.ClientInput{
		ID:       s.idGen(),
		TenantID: in.TenantID,
		Name:     in.Name,
		Email:    in.Email,
		Company:  in.Company,
	}, s.clock())
	if err != nil {
		return domain.Client{}, err
	}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

// GetClient returns client.
func (s *Service) GetClient(ctx context.Context, tenantID, clientID string) (domain.Client, error) {
	client, err := s.repo.GetClient(ctx, strings.TrimSpace(clientID))
	if err != nil {
		return domain.Client{}, err
	}
	if client.TenantID != strings.TrimSpace(tenantID) {
		return domain.Client{}, fmt.Errorf("client %q: %w", clientID, ErrNotFound)
	}
	return client, nil
}

// ListClients lists clients.
func (s *Service) ListClients(ctx context.Context, tenantID string) ([]domain.Client, error) {
	return s.repo.ListClients(ctx, strings.TrimSpace(tenantID))
}

// DeleteClient deletes client.
func (s *Service) DeleteClient(ctx context.Context, tenantID, clientID string) error {
	if _, err := s.GetClient(ctx, tenantID, clientID); err != nil {
		return err
	}
	return s.repo.DeleteClient(ctx, strings.TrimSpace(clientID))
}

// CreateProductInput holds input values for create product operations.
type CreateProductInput struct {
	TenantID  string
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
}

// CreateProduct creates product.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	if _, err := s.GetTenant(ctx, in.TenantID); err != nil {
		return domain.Product{}, err
	}
	product, err := domain.NewProduct(domain.ProductInput{
		ID:        s.idGen(),
		TenantID:  in.TenantID,
		SKU:       in.SKU,
		Name:      in.Name,
		UnitPrice: in.UnitPrice,
	}, s.clock())
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// GetProduct returns product.
func (s *Service) GetProduct(ctx context.Context, tenantID, productID string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	if product.TenantID != strings.TrimSpace(tenantID) {
		return domain.Product{}, fmt.Errorf("product %q: %w", productID, ErrNotFound)
	}
	return product, nil
}

// ListProducts lists products.
func (s *Service) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(tenantID))
}

// DeleteProduct deletes product.
func (s *Service) DeleteProduct(ctx context.Context, tenantID, productID string) error {
	if _, err := s.GetProduct(ctx, tenantID, productID); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, strings.TrimSpace(productID))
}

// QuoteItemInput is one requested quote line. Empty Description and nil
// UnitPrice are filled from the catalog product.
type QuoteItemInput struct {
	ProductID   string
	Quantity    int
	Description string
	UnitPrice   *decimal.Decimal
}

// CreateQuoteInput holds input values for create quote operations.
type CreateQuoteInput struct {
	TenantID string
	ClientID string
	Items    []QuoteItemInput
	// TaxRate overrides the configured rate when set.
	TaxRate   *decimal.Decimal
	Notes     string
	ExpiresAt time.Time
}

// CreateQuote validates the request, allocates a quote number and stores a
// draft quote. Allocation failures are returned as *AllocationError and no
// quote is stored.
func (s *Service) CreateQuote(ctx context.Context, in CreateQuoteInput) (domain.Quote, error) {
	tenantID := strings.TrimSpace(in.TenantID)
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return domain.Quote{}, err
	}
	if _, err := s.GetClient(ctx, tenantID, in.ClientID); err != nil {
		return domain.Quote{}, err
	}
	if len(in.Items) == 0 {
		return domain.Quote{}, domain.ErrEmptyQuote
	}
	items := make([]domain.LineItem, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return domain.Quote{}, domain.ErrInvalidQuantity
		}
		product, err := s.GetProduct(ctx, tenantID, item.ProductID)
		if err != nil {
			return domain.Quote{}, err
		}
		line := domain.LineItem{
			ProductID:   product.ID,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   product.UnitPrice,
		}
		if line.Description == "" {
			line.Description = product.Name
		}
		if item.UnitPrice != nil {
			if item.UnitPrice.IsNegative() {
				return domain.Quote{}, domain.ErrInvalidPrice
			}
			line.UnitPrice = *item.UnitPrice
		}
		items = append(items, line)
	}
	taxRate := s.taxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	if taxRate.IsNegative() {
		return domain.Quote{}, domain.ErrInvalidTaxRate
	}

	number, err := s.allocator.AllocateNext(ctx, tenantID)
	if err != nil {
		return domain.Quote{}, err
	}

	now := s.clock()
	expiresAt := in.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.AddDate(0, 0, s.validityDays)
	}
	quote, err := domain.NewQuote(domain.QuoteInput{
		ID:        s.idGen(),
		TenantID:  tenantID,
		Number:    number,
		ClientID:  in.ClientID,
		Items:     items,
		TaxRate:   taxRate,
		Notes:     in.Notes,
		ExpiresAt: expiresAt,
	}, now)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := s.repo.CreateQuote(ctx, quote); err != nil {
		return domain.Quote{}, err
	}
	if s.logger != nil {
		s.logger.Info("quote created", "tenant", tenantID, "number", quote.Number, "total", quote.Total.StringFixed(2))
	}
	return quote, nil
}

// GetQuote returns quote.
func (s *Service) GetQuote(ctx context.Context, tenantID, quoteID string) (domain.Quote, error) {
	quote, err := s.repo.GetQuote(ctx, strings.TrimSpace(quoteID))
	if err != nil {
		return domain.Quote{}, err
	}
	if quote.TenantID != strings.TrimSpace(tenantID) {
		return domain.Quote{}, fmt.Errorf("quote %q: %w", quoteID, ErrNotFound)
	}
	return quote, nil
}

// GetQuoteByNumber returns the tenant quote with number.
func (s *Service) GetQuoteByNumber(ctx context.Context, tenantID, number string) (domain.Quote, error) {
	return s.repo.GetQuoteByNumber(ctx, strings.TrimSpace(tenantID), strings.ToUpper(strings.TrimSpace(number)))
}

// ListQuotes lists quotes.
func (s *Service) ListQuotes(ctx context.Context, tenantID string) ([]domain.Quote, error) {
	return s.repo.ListQuotes(ctx, strings.TrimSpace(tenantID))
}

// UpdateQuoteStatus sets a quote status chosen directly by the user. Any
// status may follow any other.
func (s *Service) UpdateQuoteStatus(ctx context.Context, tenantID, quoteID string, raw string) (domain.Quote, error) {
	status, err := domain.ParseQuoteStatus(raw)
	if err != nil {
		return domain.Quote{}, err
	}
	quote, err := s.GetQuote(ctx, tenantID, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := quote.SetStatus(status, s.clock()); err != nil {
		return domain.Quote{}, err
	}
	if err := s.repo.UpdateQuoteStatus(ctx, quote.TenantID, quote.ID, status); err != nil {
		return domain.Quote{}, err
	}
	return quote, nil
}

// DeleteQuote deletes quote. Its number is not reissued.
func (s *Service) DeleteQuote(ctx context.Context, tenantID, quoteID string) error {
	if _, err := s.GetQuote(ctx, tenantID, quoteID); err != nil {
		return err
	}
	return s.repo.DeleteQuote(ctx, strings.TrimSpace(quoteID))
}

// ExpireDueQuotes moves open quotes past their expiry date to Expired and
// returns how many were moved.
func (s *Service) ExpireDueQuotes(ctx context.Context, tenantID string) (int, error) {
	quotes, err := s.ListQuotes(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	now := s.clock()
	expired := 0
	for _, q := range quotes {
		if q.Status.BoardStatus().Terminal() || !q.Expired(now) {
			continue
		}
		if err := s.repo.UpdateQuoteStatus(ctx, q.TenantID, q.ID, domain.StatusExpired); err != nil {
			return expired, fmt.Errorf("expire quote %s: %w", q.Number, err)
		}
		expired++
	}
	if expired > 0 && s.logger != nil {
		s.logger.Info("quotes expired", "tenant", tenantID, "count", expired)
	}
	return expired, nil
}

// Board returns the tenant quotes grouped into board columns.
func (s *Service) Board(ctx context.Context, tenantID string) ([]BoardColumn, error) {
	quotes, err := s.ListQuotes(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return GroupQuotesByStatus(quotes), nil
}
