package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tenant is the account that owns clients, products, quotes and a counter.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NewTenant constructs a new value for this package.
func NewTenant(id, name string, now time.Time) (Tenant, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Tenant{}, ErrInvalidID
	}
	if name == "" {
		return Tenant{}, ErrInvalidName
	}
	return Tenant{ID: id, Name: name, CreatedAt: now.UTC()}, nil
}

// Client is a customer quotes are addressed to.
type Client struct {
	ID        string
	TenantID  string
	Name      string
	Email     string
	Company   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientInput holds constructor values for a client.
type ClientInput struct {
	ID       string
	TenantID string
	Name     string
	Email    string
	Company  string
}

// NewClient constructs a new value for this package.
func NewClient(in ClientInput, now time.Time) (Client, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" || in.TenantID == "" {
		return Client{}, ErrInvalidID
	}
	if in.Name == "" {
		return Client{}, ErrInvalidName
	}
	return Client{
		ID:        in.ID,
		TenantID:  in.TenantID,
		Name:      in.Name,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Company:   strings.TrimSpace(in.Company),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Product is a catalog entry that can be quoted.
type Product struct {
	ID        string
	TenantID  string
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductInput holds constructor values for a product.
type ProductInput struct {
	ID        string
	TenantID  string
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
}

// NewProduct constructs a new value for this package.
func NewProduct(in ProductInput, now time.Time) (Product, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" || in.TenantID == "" {
		return Product{}, ErrInvalidID
	}
	if in.Name == "" {
		return Product{}, ErrInvalidName
	}
	if in.UnitPrice.IsNegative() {
		return Product{}, ErrInvalidPrice
	}
	return Product{
		ID:        in.ID,
		TenantID:  in.TenantID,
		SKU:       strings.ToUpper(strings.TrimSpace(in.SKU)),
		Name:      in.Name,
		UnitPrice: in.UnitPrice,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}
