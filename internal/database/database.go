package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("database: not found")
	// ErrDuplicate is returned on a unique constraint violation not covered
	// by a more specific error.
	ErrDuplicate = errors.New("database: duplicate key")
	// ErrDuplicateClaim is returned when the user already has a claim for
	// the same month.
	ErrDuplicateClaim = errors.New("database: claim already exists for period")
	// ErrDuplicateVoucherCode is returned when a generated voucher code is
	// already taken.
	ErrDuplicateVoucherCode = errors.New("database: voucher code already exists")
)

// Querier is the query capability shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn   *sql.DB
	driver string
}

// NewDB opens a SQLite database at dbPath and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects with the given driver and initializes the schema. For
// SQLite dsn is a file path; for Postgres it is a connection URL.
func Open(driver, dsn string) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)

	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		conn, err = sql.Open(DriverSQLite, dsn+"?_foreign_keys=1&_busy_timeout=5000&_txlock=immediate")
		if err == nil {
			// SQLite allows a single writer; one connection serializes
			// transactions instead of surfacing SQLITE_BUSY.
			conn.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		conn, err = sql.Open(DriverPostgres, dsn)
		if err == nil {
			conn.SetMaxOpenConns(25)
			conn.SetMaxIdleConns(5)
			conn.SetConnMaxLifetime(30 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, driver: driver}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Driver returns the driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			total_donations_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bins (
			id TEXT PRIMARY KEY,
			bin_code TEXT NOT NULL UNIQUE,
			location_name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS donations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			bin_id TEXT NOT NULL REFERENCES bins(id),
			scan_timestamp TEXT NOT NULL,
			media_url TEXT,
			media_latitude DOUBLE PRECISION,
			media_longitude DOUBLE PRECISION,
			media_timestamp TEXT,
			status TEXT NOT NULL,
			verification_notes TEXT NOT NULL DEFAULT '',
			admin_reviewed INTEGER NOT NULL DEFAULT 0,
			admin_id TEXT,
			admin_notes TEXT,
			reviewed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_donations_user_scan ON donations(user_id, scan_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_donations_user_bin_scan ON donations(user_id, bin_id, scan_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_donations_status ON donations(status)`,
		`CREATE TABLE IF NOT EXISTS vouchers (
			id TEXT PRIMARY KEY,
			partner_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			discount_amount TEXT NOT NULL DEFAULT '',
			terms_conditions TEXT NOT NULL DEFAULT '',
			expiry_date TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS claimed_vouchers (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			voucher_id TEXT NOT NULL REFERENCES vouchers(id),
			voucher_code TEXT NOT NULL,
			claimed_at TEXT NOT NULL,
			claim_year INTEGER NOT NULL,
			claim_month INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_claims_user_period ON claimed_vouchers(user_id, claim_year, claim_month)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_claims_code ON claimed_vouchers(voucher_code)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// Queries returns a query set bound to the connection pool.
func (db *DB) Queries() *Queries {
	return &Queries{q: db.conn, driver: db.driver}
}

// WithTx runs fn inside a transaction. The transaction is committed if fn
// returns nil and rolled back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(qs *Queries) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{q: tx, driver: db.driver}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Queries holds all data access statements. It runs against either the pool
// or a transaction.
type Queries struct {
	q      Querier
	driver string
}

// NewQueries binds a query set to an arbitrary Querier.
func NewQueries(q Querier, driver string) *Queries {
	return &Queries{q: q, driver: driver}
}

func (qs *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return qs.q.ExecContext(ctx, qs.rebind(query), args...)
}

func (qs *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return qs.q.QueryContext(ctx, qs.rebind(query), args...)
}

func (qs *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return qs.q.QueryRowContext(ctx, qs.rebind(query), args...)
}

// rebind converts ? placeholders to $n for Postgres.
func (qs *Queries) rebind(query string) string {
	if qs.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// timeLayout is fixed-width so that text comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by older tooling used plain RFC3339.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// classifyUnique maps driver unique-violation errors onto package errors.
// Other errors are returned unchanged.
func classifyUnique(err error) error {
	if err == nil {
		return nil
	}

	var detail string
	var sqliteErr sqlite3.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		detail = sqliteErr.Error()
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		detail = pgErr.ConstraintName + " " + pgErr.Message
	default:
		return err
	}

	switch {
	case strings.Contains(detail, "ux_claims_user_period") || strings.Contains(detail, "claimed_vouchers.claim_month"):
		return fmt.Errorf("%w: %v", ErrDuplicateClaim, err)
	case strings.Contains(detail, "ux_claims_code") || strings.Contains(detail, "voucher_code"):
		return fmt.Errorf("%w: %v", ErrDuplicateVoucherCode, err)
	default:
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
}
