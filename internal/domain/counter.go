package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Counter holds the last quote number issued for one tenant.
type Counter struct {
	TenantID      string
	CurrentNumber int64
	UpdatedAt     time.Time
}

// NewCounter constructs a tenant counter that has issued nothing yet.
func NewCounter(tenantID string, now time.Time) (Counter, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Counter{}, ErrInvalidID
	}
	return Counter{
		TenantID:  tenantID,
		UpdatedAt: now.UTC(),
	}, nil
}

// Advance increments the counter and returns the newly issued number.
func (c *Counter) Advance(now time.Time) (int64, error) {
	if c.CurrentNumber < 0 {
		return 0, ErrInvalidNumber
	}
	if c.CurrentNumber == math.MaxInt64 {
		return 0, ErrCounterOverflow
	}
	c.CurrentNumber++
	c.UpdatedAt = now.UTC()
	return c.CurrentNumber, nil
}

// NumberFormat renders issued counter values as quote numbers.
type NumberFormat struct {
	Prefix string
	// Width is a minimum; longer numbers are never truncated.
	Width int
}

// DefaultNumberFormat returns the COT-0000 format.
func DefaultNumberFormat() NumberFormat {
	return NumberFormat{Prefix: "COT-", Width: 4}
}

// Format renders n with the configured prefix and zero padding.
func (f NumberFormat) Format(n int64) string {
	width := f.Width
	if width < 0 {
		width = 0
	}
	return fmt.Sprintf("%s%0*d", f.Prefix, width, n)
}
