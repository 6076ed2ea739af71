package app

import (
	"context"
	"errors"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/cotiza/internal/domain"
)

// SequenceAllocator issues quote numbers from per-tenant counters.
// It keeps no state between calls; the store serializes concurrent callers.
type SequenceAllocator struct {
	store  CounterStore
	format domain.NumberFormat
	clock  Clock
	logger *charmLog.Logger
}

// NewSequenceAllocator constructs a new value for this package.
func NewSequenceAllocator(store CounterStore, format domain.NumberFormat, clock Clock, logger *charmLog.Logger) *SequenceAllocator {
	if clock == nil {
		clock = time.Now
	}
	return &SequenceAllocator{
		store:  store,
		format: format,
		clock:  clock,
		logger: logger,
	}
}

// AllocateNext increments the tenant counter in one store transaction and
// returns the formatted number. Every failure is an *AllocationError.
func (a *SequenceAllocator) AllocateNext(ctx context.Context, tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", &AllocationError{Err: domain.ErrInvalidID}
	}
	if a.store == nil {
		return "", &AllocationError{TenantID: tenantID, Err: errors.New("counter store is not configured")}
	}

	var next int64
	err := a.store.WithinCounterTx(ctx, func(tx CounterTx) error {
		counter, err := tx.GetCounter(ctx, tenantID)
		if err != nil {
			return err
		}
		n, err := counter.Advance(a.clock())
		if err != nil {
			return err
		}
		if err := tx.UpdateCounter(ctx, counter); err != nil {
			return err
		}
		next = n
		return nil
	})
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("quote number allocation failed", "tenant", tenantID, "err", err)
		}
		return "", &AllocationError{TenantID: tenantID, Err: err}
	}

	number := a.format.Format(next)
	if a.logger != nil {
		a.logger.Debug("quote number allocated", "tenant", tenantID, "number", number)
	}
	return number, nil
}
