// Package postgres stores cotiza data in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hylla/cotiza/internal/app"
	"github.com/hylla/cotiza/internal/domain"
)

// DefaultTxRetries bounds counter transaction retries on serialization failures.
const DefaultTxRetries = 5

// SQLSTATE codes that mark a transaction as safe to retry.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Options tunes the postgres repository.
type Options struct {
	TxRetries int
}

// Repository represents repository data used by this package.
type Repository struct {
	pool      *pgxpool.Pool
	txRetries int
	clock     func() time.Time
}

// Open connects to dsn and applies migrations.
func Open(ctx context.Context, dsn string, opts Options) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.TxRetries <= 0 {
		opts.TxRetries = DefaultTxRetries
	}
	repo := &Repository{pool: pool, txRetries: opts.TxRetries, clock: time.Now}
	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quote_counters (
			tenant_id TEXT PRIMARY KEY REFERENCES tenants(id) ON DELETE CASCADE,
			current_number BIGINT NOT NULL DEFAULT 0 CHECK (current_number >= 0),
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			sku TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			unit_price NUMERIC(18,4) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			number TEXT NOT NULL,
			status TEXT NOT NULL,
			client_id TEXT NOT NULL,
			tax_rate NUMERIC(9,6) NOT NULL,
			subtotal NUMERIC(18,2) NOT NULL,
			tax NUMERIC(18,2) NOT NULL,
			total NUMERIC(18,2) NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			UNIQUE (tenant_id, number)
		)`,
		`CREATE TABLE IF NOT EXISTS quote_items (
			quote_id TEXT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price NUMERIC(18,4) NOT NULL,
			PRIMARY KEY (quote_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_tenant_status ON quotes(tenant_id, status)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

// CreateTenant inserts the tenant together with its counter.
func (r *Repository) CreateTenant(ctx context.Context, t domain.Tenant, c domain.Counter) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `INSERT INTO tenants(id, name, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.CreatedAt.UTC()); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `INSERT INTO quote_counters(tenant_id, current_number, updated_at) VALUES ($1, $2, $3)`,
		c.TenantID, c.CurrentNumber, c.UpdatedAt.UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetTenant returns tenant.
func (r *Repository) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return domain.Tenant{}, translateErr(err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

// ListTenants lists tenants.
func (r *Repository) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Tenant{}
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// WithinCounterTx runs fn in a transaction whose counter reads lock the row,
// retrying on serialization failures and deadlocks.
func (r *Repository) WithinCounterTx(ctx context.Context, fn func(app.CounterTx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.runCounterTx(ctx, fn)
		if err == nil || !isRetryable(err) || attempt >= r.txRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	if isRetryable(err) {
		return fmt.Errorf("counter transaction retries exhausted: %w", err)
	}
	return err
}

func (r *Repository) runCounterTx(ctx context.Context, fn func(app.CounterTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(counterTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type counterTx struct {
	tx pgx.Tx
}

// GetCounter reads and locks the tenant counter row.
func (c counterTx) GetCounter(ctx context.Context, tenantID string) (domain.Counter, error) {
	var counter domain.Counter
	err := c.tx.QueryRow(ctx, `
		SELECT tenant_id, current_number, updated_at FROM quote_counters WHERE tenant_id = $1 FOR UPDATE
	`, tenantID).Scan(&counter.TenantID, &counter.CurrentNumber, &counter.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Counter{}, fmt.Errorf("counter for tenant %q: %w", tenantID, app.ErrNotFound)
		}
		return domain.Counter{}, err
	}
	return counter, nil
}

// UpdateCounter updates state for the requested operation.
func (c counterTx) UpdateCounter(ctx context.Context, counter domain.Counter) error {
	tag, err := c.tx.Exec(ctx, `
		UPDATE quote_counters SET current_number = $1, updated_at = $2 WHERE tenant_id = $3
	`, counter.CurrentNumber, counter.UpdatedAt.UTC(), counter.TenantID)
	if err != nil {
		return err
	}
	return translateTag(tag)
}

// GetCounter reads a counter outside any transaction.
func (r *Repository) GetCounter(ctx context.Context, tenantID string) (domain.Counter, error) {
	var counter domain.Counter
	err := r.pool.QueryRow(ctx, `SELECT tenant_id, current_number, updated_at FROM quote_counters WHERE tenant_id = $1`, tenantID).
		Scan(&counter.TenantID, &counter.CurrentNumber, &counter.UpdatedAt)
	if err != nil {
		return domain.Counter{}, translateErr(err)
	}
	return counter, nil
}

// CreateClient creates client.
func (r *Repository) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients(id, tenant_id, name, email, company, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.TenantID, c.Name, c.Email, c.Company, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	return err
}

const clientColumns = `id, tenant_id, name, email, company, created_at, updated_at`

// GetClient returns client.
func (r *Repository) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

// ListClients lists clients.
func (r *Repository) ListClients(ctx context.Context, tenantID string) ([]domain.Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients WHERE tenant_id = $1 ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteClient deletes client.
func (r *Repository) DeleteClient(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return translateTag(tag)
}

// CreateProduct creates product.
func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products(id, tenant_id, sku, name, unit_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)
	`, p.ID, p.TenantID, p.SKU, p.Name, p.UnitPrice.String(), p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return err
}

const productColumns = `id, tenant_id, sku, name, unit_price::text, created_at, updated_at`

// GetProduct returns product.
func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// ListProducts lists products.
func (r *Repository) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id = $1 ORDER BY sku, name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProduct deletes product.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return translateTag(tag)
}

// CreateQuote stores the quote and its line items.
func (r *Repository) CreateQuote(ctx context.Context, q domain.Quote) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var expires *time.Time
	if !q.ExpiresAt.IsZero() {
		at := q.ExpiresAt.UTC()
		expires = &at
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO quotes(
			id, tenant_id, number, status, client_id, tax_rate, subtotal, tax, total, notes, created_at, updated_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9::text::numeric, $10, $11, $12, $13)
	`,
		q.ID, q.TenantID, q.Number, string(q.Status), q.ClientID,
		q.TaxRate.String(), q.Subtotal.String(), q.Tax.String(), q.Total.String(),
		q.Notes, q.CreatedAt.UTC(), q.UpdatedAt.UTC(), expires,
	); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, item := range q.Items {
		batch.Queue(`
			INSERT INTO quote_items(quote_id, position, product_id, description, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6::text::numeric)
		`, q.ID, i, item.ProductID, item.Description, item.Quantity, item.UnitPrice.String())
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const quoteColumns = `
	id, tenant_id, number, status, client_id, tax_rate::text, subtotal::text, tax::text, total::text,
	notes, created_at, updated_at, expires_at
`

// GetQuote returns quote.
func (r *Repository) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if err != nil {
		return domain.Quote{}, err
	}
	items, err := r.items(ctx, `WHERE i.quote_id = $1`, q.ID)
	if err != nil {
		return domain.Quote{}, err
	}
	q.Items = items[q.ID]
	return q, nil
}

// GetQuoteByNumber returns the quote a tenant issued under number.
func (r *Repository) GetQuoteByNumber(ctx context.Context, tenantID, number string) (domain.Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE tenant_id = $1 AND number = $2`, tenantID, number))
	if err != nil {
		return domain.Quote{}, err
	}
	items, err := r.items(ctx, `WHERE i.quote_id = $1`, q.ID)
	if err != nil {
		return domain.Quote{}, err
	}
	q.Items = items[q.ID]
	return q, nil
}

// ListQuotes lists a tenant's quotes ordered by number.
func (r *Repository) ListQuotes(ctx context.Context, tenantID string) ([]domain.Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE tenant_id = $1 ORDER BY number`, tenantID)
	if err != nil {
		return nil, err
	}
	out := []domain.Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := r.items(ctx, `JOIN quotes q ON q.id = i.quote_id WHERE q.tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// UpdateQuoteStatus writes only the status and updated_at columns.
func (r *Repository) UpdateQuoteStatus(ctx context.Context, tenantID, quoteID string, status domain.QuoteStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotes SET status = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4
	`, string(status), r.clock().UTC(), quoteID, tenantID)
	if err != nil {
		return err
	}
	return translateTag(tag)
}

// DeleteQuote deletes quote.
func (r *Repository) DeleteQuote(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return translateTag(tag)
}

func (r *Repository) items(ctx context.Context, filter string, arg string) (map[string][]domain.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.quote_id, i.product_id, i.description, i.quantity, i.unit_price::text
		FROM quote_items i `+filter+`
		ORDER BY i.quote_id, i.position
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]domain.LineItem{}
	for rows.Next() {
		var (
			quoteID  string
			item     domain.LineItem
			priceRaw string
		)
		if err := rows.Scan(&quoteID, &item.ProductID, &item.Description, &item.Quantity, &priceRaw); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(priceRaw); err != nil {
			return nil, fmt.Errorf("decode item unit_price: %w", err)
		}
		out[quoteID] = append(out[quoteID], item)
	}
	return out, rows.Err()
}

func scanClient(row pgx.Row) (domain.Client, error) {
	var c domain.Client
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Company, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Client{}, translateErr(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p        domain.Product
		priceRaw string
	)
	if err := row.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &priceRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, translateErr(err)
	}
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return domain.Product{}, fmt.Errorf("decode product unit_price: %w", err)
	}
	p.UnitPrice = price
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func scanQuote(row pgx.Row) (domain.Quote, error) {
	var (
		q                                 domain.Quote
		status                            string
		taxRate, subtotal, tax, totalText string
		expires                           *time.Time
	)
	if err := row.Scan(
		&q.ID, &q.TenantID, &q.Number, &status, &q.ClientID,
		&taxRate, &subtotal, &tax, &totalText,
		&q.Notes, &q.CreatedAt, &q.UpdatedAt, &expires,
	); err != nil {
		return domain.Quote{}, translateErr(err)
	}
	amounts := []struct {
		raw  string
		dest *decimal.Decimal
		name string
	}{
		{taxRate, &q.TaxRate, "tax_rate"},
		{subtotal, &q.Subtotal, "subtotal"},
		{tax, &q.Tax, "tax"},
		{totalText, &q.Total, "total"},
	}
	for _, a := range amounts {
		v, err := decimal.NewFromString(a.raw)
		if err != nil {
			return domain.Quote{}, fmt.Errorf("decode quote %s: %w", a.name, err)
		}
		*a.dest = v
	}
	q.Status = domain.QuoteStatus(status)
	q.CreatedAt = q.CreatedAt.UTC()
	q.UpdatedAt = q.UpdatedAt.UTC()
	if expires != nil {
		q.ExpiresAt = expires.UTC()
	}
	return q, nil
}

func translateErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return app.ErrNotFound
	}
	return err
}

func translateTag(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return app.ErrNotFound
	}
	return nil
}

// isRetryable reports serialization failures and deadlocks.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}
