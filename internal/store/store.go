package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/routebook/internal/config"
	"github.com/roach88/routebook/internal/metrics"
)

// DefaultTxTimeout bounds a transaction when the config leaves it unset.
const DefaultTxTimeout = 5 * time.Second

// Querier is the statement surface shared by *Store (outside transactions)
// and *Tx (inside one).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*Store)(nil)
	_ Querier = (*Tx)(nil)
)

// Store is the shared SQLite handle.
type Store struct {
	db        *sql.DB
	path      string
	txTimeout time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option customizes Open.
type Option func(*Store)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics sets the metrics sink (default none).
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Open creates or opens the database at cfg.Path.
//
// The parent directory is created when missing. Pragmas are applied to every
// physical connection by the connect hook and verified once here. Schema
// creation and migration are NOT performed; see package schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("open store: database path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	s := &Store{
		path:      cfg.Path,
		txTimeout: cfg.TxTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.txTimeout <= 0 {
		s.txTimeout = DefaultTxTimeout
	}

	drv := &sqlite3.SQLiteDriver{ConnectHook: connectHook(pragmasFor(cfg))}
	db := sql.OpenDB(&connector{driver: drv, dsn: cfg.Path})

	// SQLite only supports one writer at a time; one connection shared by
	// readers and writers keeps migrations and ledger writes from interleaving.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	s.logger.Debug("store opened",
		"path", cfg.Path,
		"synchronous", cfg.Synchronous(),
		"tx_timeout", s.txTimeout,
	)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Store methods and WithTx.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// TxTimeout returns the default transaction budget.
func (s *Store) TxTimeout() time.Duration {
	return s.txTimeout
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// ExecContext runs a statement outside any transaction.
func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query outside any transaction.
// Callers are responsible for closing the returned rows.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query outside any transaction.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// connector adapts a configured SQLiteDriver to sql.OpenDB so the connect
// hook can close over per-store settings.
type connector struct {
	driver *sqlite3.SQLiteDriver
	dsn    string
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *connector) Driver() driver.Driver {
	return c.driver
}

// pragmasFor builds the per-connection pragma list.
func pragmasFor(cfg config.DatabaseConfig) []string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.Synchronous()),
		"PRAGMA temp_store = MEMORY",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	if cfg.CacheSizeKiB > 0 {
		// Negative cache_size is in KiB rather than pages.
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeKiB))
	}
	if cfg.MmapSizeBytes > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA mmap_size = %d", cfg.MmapSizeBytes))
	}
	return pragmas
}

// connectHook applies pragmas and registers the SQL functions.
func connectHook(pragmas []string) func(*sqlite3.SQLiteConn) error {
	return func(conn *sqlite3.SQLiteConn) error {
		for _, pragma := range pragmas {
			if _, err := conn.Exec(pragma, nil); err != nil {
				return fmt.Errorf("failed to execute %q: %w", pragma, err)
			}
		}
		return registerFunctions(conn)
	}
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
