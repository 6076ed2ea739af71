package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hylla/cotiza/internal/app"
	"github.com/hylla/cotiza/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// DefaultTxRetries bounds counter transaction retries on lock contention.
const DefaultTxRetries = 5

const busyTimeoutMillis = 5000

// Options tunes the sqlite repository.
type Options struct {
	// TxRetries is how many times a busy counter transaction is retried.
	TxRetries int
}

// Repository represents repository data used by this package.
type Repository struct {
	db        *sql.DB
	txRetries int
	clock     func() time.Time
}

// Open opens the requested operation.
func Open(path string, opts Options) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, fileDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db, opts)
}

// OpenInMemory opens in memory.
func OpenInMemory(opts Options) (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?"+connParams().Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each connection would get its own private memory database.
	db.SetMaxOpenConns(1)
	return newRepository(db, opts)
}

func newRepository(db *sql.DB, opts Options) (*Repository, error) {
	if opts.TxRetries < 0 {
		opts.TxRetries = 0
	}
	if opts.TxRetries == 0 {
		opts.TxRetries = DefaultTxRetries
	}
	repo := &Repository{db: db, txRetries: opts.TxRetries, clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// fileDSN builds a DSN whose transactions start with BEGIN IMMEDIATE so that
// counter read-modify-write cycles take the write lock up front.
func fileDSN(path string) string {
	params := connParams()
	params.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + params.Encode()
}

func connParams() url.Values {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	params.Set("_txlock", "immediate")
	return params
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS quote_counters (
			tenant_id TEXT PRIMARY KEY,
			current_number INTEGER NOT NULL DEFAULT 0 CHECK (current_number >= 0),
			updated_at TEXT NOT NULL,
			FOREIGN KEY(tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			unit_price TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			number TEXT NOT NULL,
			status TEXT NOT NULL,
			client_id TEXT NOT NULL,
			tax_rate TEXT NOT NULL,
			subtotal TEXT NOT NULL,
			tax TEXT NOT NULL,
			total TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT,
			UNIQUE(tenant_id, number),
			FOREIGN KEY(tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS quote_items (
			quote_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price TEXT NOT NULL,
			PRIMARY KEY(quote_id, position),
			FOREIGN KEY(quote_id) REFERENCES quotes(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_tenant_status ON quotes(tenant_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_clients_tenant ON clients(tenant_id);`,
		`CREATE INDEX IF NOT EXISTS idx_products_tenant ON products(tenant_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateTenant inserts the tenant together with its counter.
func (r *Repository) CreateTenant(ctx context.Context, t domain.Tenant, c domain.Counter) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO tenants(id, name, created_at) VALUES (?, ?, ?)
	`, t.ID, t.Name, ts(t.CreatedAt)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO quote_counters(tenant_id, current_number, updated_at) VALUES (?, ?, ?)
	`, c.TenantID, c.CurrentNumber, ts(c.UpdatedAt)); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// GetTenant returns tenant.
func (r *Repository) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

// ListTenants lists tenants.
func (r *Repository) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM tenants ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// WithinCounterTx runs fn in a BEGIN IMMEDIATE transaction, retrying the
// whole transaction while the database reports lock contention.
func (r *Repository) WithinCounterTx(ctx context.Context, fn func(app.CounterTx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.runCounterTx(ctx, fn)
		if err == nil || !isBusy(err) || attempt >= r.txRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay(attempt)):
		}
	}
	if isBusy(err) {
		return fmt.Errorf("counter transaction retries exhausted: %w", err)
	}
	return err
}

func (r *Repository) runCounterTx(ctx context.Context, fn func(app.CounterTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(counterTx{tx: tx}); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// counterTx exposes counter reads and writes on an open transaction.
type counterTx struct {
	tx *sql.Tx
}

// GetCounter returns counter.
func (c counterTx) GetCounter(ctx context.Context, tenantID string) (domain.Counter, error) {
	return getCounter(ctx, c.tx, tenantID)
}

// UpdateCounter updates state for the requested operation.
func (c counterTx) UpdateCounter(ctx context.Context, counter domain.Counter) error {
	res, err := c.tx.ExecContext(ctx, `
		UPDATE quote_counters SET current_number = ?, updated_at = ? WHERE tenant_id = ?
	`, counter.CurrentNumber, ts(counter.UpdatedAt), counter.TenantID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetCounter reads a counter outside any transaction.
func (r *Repository) GetCounter(ctx context.Context, tenantID string) (domain.Counter, error) {
	return getCounter(ctx, r.db, tenantID)
}

// CreateClient creates client.
func (r *Repository) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients(id, tenant_id, name, email, company, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.TenantID, c.Name, c.Email, c.Company, ts(c.CreatedAt), ts(c.UpdatedAt))
	return err
}

// GetClient returns client.
func (r *Repository) GetClient(ctx context.Context, id string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, company, created_at, updated_at
		FROM clients
		WHERE id = ?
	`, id)
	return scanClient(row)
}

// ListClients lists clients.
func (r *Repository) ListClients(ctx context.Context, tenantID string) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, email, company, created_at, updated_at
		FROM clients
		WHERE tenant_id = ?
		ORDER BY name ASC, id ASC
	`, tenantID)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateProduct creates product.
func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products(id, tenant_id, sku, name, unit_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.TenantID, p.SKU, p.Name, p.UnitPrice.String(), ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

// GetProduct returns product.
func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, sku, name, unit_price, created_at, updated_at
		FROM products
		WHERE id = ?
	`, id)
	return scanProduct(row)
}

// ListProducts lists products.
func (r *Repository) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, sku, name, unit_price, created_at, updated_at
		FROM products
		WHERE tenant_id = ?
		ORDER BY sku ASC, name ASC
	`, tenantID)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateQuote stores the quote and its line items.
func (r *Repository) CreateQuote(ctx context.Context, q domain.Quote) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quotes(
			id, tenant_id, number, status, client_id, tax_rate, subtotal, tax, total, notes, created_at, updated_at, expires_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		q.ID,
		q.TenantID,
		q.Number,
		string(q.Status),
		q.ClientID,
		q.TaxRate.String(),
		q.Subtotal.String(),
		q.Tax.String(),
		q.Total.String(),
		q.Notes,
		ts(q.CreatedAt),
		ts(q.UpdatedAt),
		nullableTS(q.ExpiresAt),
	)
	if err != nil {
		return err
	}
	for i, item := range q.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO quote_items(quote_id, position, product_id, description, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?)
		`, q.ID, i, item.ProductID, item.Description, item.Quantity, item.UnitPrice.String())
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

const quoteColumns = `
	id, tenant_id, number, status, client_id, tax_rate, subtotal, tax, total, notes, created_at, updated_at, expires_at
`

// GetQuote returns quote.
func (r *Repository) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id)
	q, err := scanQuote(row)
	if err != nil {
		return domain.Quote{}, err
	}
	return r.withItems(ctx, q)
}

// GetQuoteByNumber returns the quote a tenant issued under number.
func (r *Repository) GetQuoteByNumber(ctx context.Context, tenantID, number string) (domain.Quote, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE tenant_id = ? AND number = ?`, tenantID, number)
	q, err := scanQuote(row)
	if err != nil {
		return domain.Quote{}, err
	}
	return r.withItems(ctx, q)
}

// ListQuotes lists a tenant's quotes ordered by number.
func (r *Repository) ListQuotes(ctx context.Context, tenantID string) ([]domain.Quote, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE tenant_id = ? ORDER BY number ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	out := []domain.Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	items, err := r.tenantItems(ctx, tenantID)
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
	res, err := r.db.ExecContext(ctx, `
		UPDATE quotes SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ?
	`, string(status), ts(r.clock()), quoteID, tenantID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// DeleteQuote deletes quote.
func (r *Repository) DeleteQuote(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quotes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

func (r *Repository) withItems(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT quote_id, product_id, description, quantity, unit_price
		FROM quote_items
		WHERE quote_id = ?
		ORDER BY position ASC
	`, q.ID)
	if err != nil {
		return domain.Quote{}, err
	}
	defer rows.Close()

	for rows.Next() {
		_, item, err := scanItem(rows)
		if err != nil {
			return domain.Quote{}, err
		}
		q.Items = append(q.Items, item)
	}
	return q, rows.Err()
}

func (r *Repository) tenantItems(ctx context.Context, tenantID string) (map[string][]domain.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.quote_id, i.product_id, i.description, i.quantity, i.unit_price
		FROM quote_items i
		JOIN quotes q ON q.id = i.quote_id
		WHERE q.tenant_id = ?
		ORDER BY i.quote_id ASC, i.position ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]domain.LineItem{}
	for rows.Next() {
		quoteID, item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[quoteID] = append(out[quoteID], item)
	}
	return out, rows.Err()
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func getCounter(ctx context.Context, q queryRower, tenantID string) (domain.Counter, error) {
	var (
		c          domain.Counter
		updatedRaw string
	)
	err := q.QueryRowContext(ctx, `
		SELECT tenant_id, current_number, updated_at FROM quote_counters WHERE tenant_id = ?
	`, tenantID).Scan(&c.TenantID, &c.CurrentNumber, &updatedRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Counter{}, fmt.Errorf("counter for tenant %q: %w", tenantID, app.ErrNotFound)
		}
		return domain.Counter{}, err
	}
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(s scanner) (domain.Tenant, error) {
	var (
		t          domain.Tenant
		createdRaw string
	)
	if err := s.Scan(&t.ID, &t.Name, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, app.ErrNotFound
		}
		return domain.Tenant{}, err
	}
	t.CreatedAt = parseTS(createdRaw)
	return t, nil
}

func scanClient(s scanner) (domain.Client, error) {
	var (
		c          domain.Client
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Company, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Client{}, app.ErrNotFound
		}
		return domain.Client{}, err
	}
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

func scanProduct(s scanner) (domain.Product, error) {
	var (
		p          domain.Product
		priceRaw   string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &priceRaw, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, app.ErrNotFound
		}
		return domain.Product{}, err
	}
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return domain.Product{}, fmt.Errorf("decode product unit_price: %w", err)
	}
	p.UnitPrice = price
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

// scanQuote reads a quote row. The status is kept verbatim, even when it is
// outside the known set.
func scanQuote(s scanner) (domain.Quote, error) {
	var (
		q                                domain.Quote
		status                           string
		taxRaw, subRaw, taxAmt, totalRaw string
		createdRaw, updatedRaw           string
		expiresRaw                       sql.NullString
	)
	if err := s.Scan(
		&q.ID, &q.TenantID, &q.Number, &status, &q.ClientID,
		&taxRaw, &subRaw, &taxAmt, &totalRaw,
		&q.Notes, &createdRaw, &updatedRaw, &expiresRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Quote{}, app.ErrNotFound
		}
		return domain.Quote{}, err
	}
	var err error
	if q.TaxRate, err = decimal.NewFromString(taxRaw); err != nil {
		return domain.Quote{}, fmt.Errorf("decode quote tax_rate: %w", err)
	}
	if q.Subtotal, err = decimal.NewFromString(subRaw); err != nil {
		return domain.Quote{}, fmt.Errorf("decode quote subtotal: %w", err)
	}
	if q.Tax, err = decimal.NewFromString(taxAmt); err != nil {
		return domain.Quote{}, fmt.Errorf("decode quote tax: %w", err)
	}
	if q.Total, err = decimal.NewFromString(totalRaw); err != nil {
		return domain.Quote{}, fmt.Errorf("decode quote total: %w", err)
	}
	q.Status = domain.QuoteStatus(status)
	q.CreatedAt = parseTS(createdRaw)
	q.UpdatedAt = parseTS(updatedRaw)
	if expiresRaw.Valid {
		q.ExpiresAt = parseTS(expiresRaw.String)
	}
	return q, nil
}

func scanItem(s scanner) (string, domain.LineItem, error) {
	var (
		quoteID  string
		item     domain.LineItem
		priceRaw string
	)
	if err := s.Scan(&quoteID, &item.ProductID, &item.Description, &item.Quantity, &priceRaw); err != nil {
		return "", domain.LineItem{}, err
	}
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return "", domain.LineItem{}, fmt.Errorf("decode item unit_price: %w", err)
	}
	item.UnitPrice = price
	return quoteID, item, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// isBusy reports whether err is sqlite lock contention.
func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	default:
		return false
	}
}

func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt+1) * 10 * time.Millisecond
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS stores the zero time as NULL.
func nullableTS(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return ts(t)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
