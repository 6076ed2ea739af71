package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylla/cotiza/internal/domain"
)

// Insight default policy values.
const (
	DefaultInsightMaxAge         = 24 * time.Hour
	DefaultInsightDriftThreshold = 5
	topClientLimit               = 3
)

// ClientTotal aggregates quote value for one client.
type ClientTotal struct {
	ClientID string
	Name     string
	Quotes   int
	Total    decimal.Decimal
}

// Insight is a business summary for one tenant.
type Insight struct {
	TenantID      string
	GeneratedAt   time.Time
	QuoteCount    int
	StatusCounts  map[domain.QuoteStatus]int
	PipelineValue decimal.Decimal
	WinRate       decimal.Decimal
	AverageValue  decimal.Decimal
	TopClients    []ClientTotal
	// Summary is markdown.
	Summary string
	// Cached is set when the insight came from the cache.
	Cached bool
}

// InsightSource lists the records insights are computed from.
type InsightSource interface {
	ListQuotes(context.Context, string) ([]domain.Quote, error)
	ListClients(context.Context, string) ([]domain.Client, error)
}

// InsightGenerator produces an insight from a tenant's records.
type InsightGenerator interface {
	Generate(ctx context.Context, tenantID string, quotes []domain.Quote, clients []domain.Client) (Insight, error)
}

// StatsGenerator computes insights locally from quote totals.
type StatsGenerator struct {
	Clock Clock
}

// Generate implements InsightGenerator.
func (g StatsGenerator) Generate(_ context.Context, tenantID string, quotes []domain.Quote, clients []domain.Client) (Insight, error) {
	clock := g.Clock
	if clock == nil {
		clock = time.Now
	}
	names := make(map[string]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}

	out := Insight{
		TenantID:      tenantID,
		GeneratedAt:   clock().UTC(),
		QuoteCount:    len(quotes),
		StatusCounts:  map[domain.QuoteStatus]int{},
		PipelineValue: decimal.Zero,
		WinRate:       decimal.Zero,
		AverageValue:  decimal.Zero,
	}
	sum := decimal.Zero
	perClient := map[string]*ClientTotal{}
	for _, q := range quotes {
		status := q.Status.BoardStatus()
		out.StatusCounts[status]++
		sum = sum.Add(q.Total)
		if !status.Terminal() {
			out.PipelineValue = out.PipelineValue.Add(q.Total)
		}
		ct, ok := perClient[q.ClientID]
		if !ok {
			name := names[q.ClientID]
			if name == "" {
				name = q.ClientID
			}
			ct = &ClientTotal{ClientID: q.ClientID, Name: name, Total: decimal.Zero}
			perClient[q.ClientID] = ct
		}
		ct.Quotes++
		ct.Total = ct.Total.Add(q.Total)
	}
	if len(quotes) > 0 {
		out.AverageValue = sum.Div(decimal.NewFromInt(int64(len(quotes)))).Round(2)
	}
	won := out.StatusCounts[domain.StatusApproved]
	decided := won + out.StatusCounts[domain.StatusRejected]
	if decided > 0 {
		out.WinRate = decimal.NewFromInt(int64(won)).Div(decimal.NewFromInt(int64(decided))).Round(4)
	}

	for _, ct := range perClient {
		out.TopClients = append(out.TopClients, *ct)
	}
	slices.SortFunc(out.TopClients, func(a, b ClientTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(out.TopClients) > topClientLimit {
		out.TopClients = out.TopClients[:topClientLimit]
	}
	out.Summary = renderInsightSummary(out)
	return out, nil
}

func renderInsightSummary(in Insight) string {
	var b strings.Builder
	b.WriteString("# Business insights\n\n")
	fmt.Fprintf(&b, "- **Quotes:** %d\n", in.QuoteCount)
	fmt.Fprintf(&b, "- **Open pipeline:** %s\n", in.PipelineValue.StringFixed(2))
	fmt.Fprintf(&b, "- **Average quote:** %s\n", in.AverageValue.StringFixed(2))
	fmt.Fprintf(&b, "- **Win rate:** %s%%\n", in.WinRate.Mul(decimal.NewFromInt(100)).StringFixed(1))
	b.WriteString("\n## By status\n\n")
	for _, status := range domain.QuoteStatuses() {
		fmt.Fprintf(&b, "- %s: %d\n", status.Label(), in.StatusCounts[status])
	}
	if len(in.TopClients) > 0 {
		b.WriteString("\n## Top clients\n\n")
		for i, ct := range in.TopClients {
			fmt.Fprintf(&b, "%d. %s: %s across %d quote(s)\n", i+1, ct.Name, ct.Total.StringFixed(2), ct.Quotes)
		}
	}
	return b.String()
}

// InsightCacheConfig holds the cache invalidation policy.
type InsightCacheConfig struct {
	MaxAge         time.Duration
	DriftThreshold int
}

// InsightCache regenerates a tenant's insight when it is missing, older than
// MaxAge, or the quote count moved by DriftThreshold or more since it was made.
type InsightCache struct {
	source InsightSource
	gen    InsightGenerator
	clock  Clock
	cfg    InsightCacheConfig

	mu      sync.Mutex
	entries map[string]Insight
}

// NewInsightCache constructs a new value for this package.
func NewInsightCache(source InsightSource, gen InsightGenerator, clock Clock, cfg InsightCacheConfig) *InsightCache {
	if gen == nil {
		gen = StatsGenerator{Clock: clock}
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultInsightMaxAge
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = DefaultInsightDriftThreshold
	}
	return &InsightCache{
		source:  source,
		gen:     gen,
		clock:   clock,
		cfg:     cfg,
		entries: map[string]Insight{},
	}
}

// Get returns the cached insight for tenantID or regenerates it.
func (c *InsightCache) Get(ctx context.Context, tenantID string) (Insight, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Insight{}, domain.ErrInvalidID
	}
	quotes, err := c.source.ListQuotes(ctx, tenantID)
	if err != nil {
		return Insight{}, fmt.Errorf("list quotes: %w", err)
	}

	c.mu.Lock()
	entry, ok := c.entries[tenantID]
	c.mu.Unlock()
	if ok && !c.stale(entry, len(quotes)) {
		entry.Cached = true
		return entry, nil
	}

	clients, err := c.source.ListClients(ctx, tenantID)
	if err != nil {
		return Insight{}, fmt.Errorf("list clients: %w", err)
	}
	fresh, err := c.gen.Generate(ctx, tenantID, quotes, clients)
	if err != nil {
		return Insight{}, fmt.Errorf("generate insight: %w", err)
	}
	fresh.TenantID = tenantID
	fresh.QuoteCount = len(quotes)
	if fresh.GeneratedAt.IsZero() {
		fresh.GeneratedAt = c.clock().UTC()
	}
	fresh.Cached = false

	c.mu.Lock()
	c.entries[tenantID] = fresh
	c.mu.Unlock()
	return fresh, nil
}

// Invalidate drops the cached insight for tenantID.
func (c *InsightCache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, strings.TrimSpace(tenantID))
	c.mu.Unlock()
}

func (c *InsightCache) stale(entry Insight, quoteCount int) bool {
	if c.clock().Sub(entry.GeneratedAt) >= c.cfg.MaxAge {
		return true
	}
	drift := quoteCount - entry.QuoteCount
	if drift < 0 {
		drift = -drift
	}
	return drift >= c.cfg.DriftThreshold
}
