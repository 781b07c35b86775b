package schema

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/metrics"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// LatestVersion is the schema version this build writes.
const LatestVersion = 3

// legacyVersion is assumed for databases that predate user_version.
const legacyVersion = 1

// DefaultTimeout bounds a single migration step.
const DefaultTimeout = 2 * time.Minute

// ErrNewerSchema is wrapped by MigrationError when the database was written
// by a newer build.
var ErrNewerSchema = errors.New("database schema is newer than this build")

// MigrationError reports a failed step. The version was not advanced.
type MigrationError struct {
	From int
	To   int
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate schema v%d -> v%d: %v", e.From, e.To, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// IsMigrationError reports whether err is (or wraps) a MigrationError.
func IsMigrationError(err error) bool {
	var me *MigrationError
	return errors.As(err, &me)
}

// step upgrades a database from to-1 to to.
type step struct {
	to    int
	name  string
	apply func(ctx context.Context, tx *store.Tx, env stepEnv) error
}

// stepEnv is what a step may use besides its transaction.
type stepEnv struct {
	now    string
	logger *slog.Logger
}

var steps = []step{
	{to: 2, name: "minor units and iso dates", apply: migrateToV2},
	{to: 3, name: "streets, status and constraints", apply: migrateToV3},
}

// Manager tracks and advances the schema version of one store.
//
// Thread-safety: all methods are safe for concurrent use.
type Manager struct {
	store   *store.Store
	timeout time.Duration
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

// Option customizes New.
type Option func(*Manager)

// WithTimeout bounds each migration step (default DefaultTimeout).
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock sets the clock used for completion markers and fallback
// timestamps.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger (default: the store's logger).
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New creates a Manager for s.
func New(s *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   s,
		timeout: DefaultTimeout,
		clock:   clock.System{},
		logger:  s.Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CurrentVersion returns the effective schema version: 0 for an empty
// database, 1 for a pre-versioning one, otherwise user_version.
func (m *Manager) CurrentVersion(ctx context.Context) (int, error) {
	return effectiveVersion(ctx, m.store)
}

func effectiveVersion(ctx context.Context, q store.Querier) (int, error) {
	v, err := store.UserVersion(ctx, q)
	if err != nil {
		return 0, err
	}
	if v != 0 {
		return v, nil
	}
	legacy, err := store.TableExists(ctx, q, "clients")
	if err != nil {
		return 0, err
	}
	if legacy {
		return legacyVersion, nil
	}
	return 0, nil
}

// Migrate brings the database to LatestVersion.
//
// Pending steps run in ascending order, each in its own transaction. A
// second call is a no-op. Concurrent callers share one run; a caller whose
// ctx ends stops waiting but does not cancel the shared run.
func (m *Manager) Migrate(ctx context.Context) error {
	ch := m.group.DoChan("migrate", func() (any, error) {
		return nil, m.run(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context) error {
	version, err := m.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version > LatestVersion {
		return &MigrationError{From: version, To: LatestVersion, Err: ErrNewerSchema}
	}
	if version == LatestVersion {
		m.logger.Debug("schema up to date", "version", version)
		return nil
	}
	if version == 0 {
		return m.create(ctx)
	}

	for _, s := range steps {
		if s.to <= version {
			continue
		}
		if err := m.apply(ctx, version, s); err != nil {
			return err
		}
		version = s.to
	}
	return nil
}

// create lays down the latest schema on an empty database.
func (m *Manager) create(ctx context.Context) error {
	now := model.FormatTimestamp(m.clock.Now())
	err := m.store.WithTxTimeout(ctx, m.timeout, func(ctx context.Context, tx *store.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
		if err := createIndexes(ctx, tx); err != nil {
			return err
		}
		if err := store.SetSetting(ctx, tx, "schema.created_at", now); err != nil {
			return err
		}
		return store.SetUserVersion(ctx, tx, LatestVersion)
	})
	m.metrics.MigrationStep(strconv.Itoa(LatestVersion), err)
	if err != nil {
		return &MigrationError{From: 0, To: LatestVersion, Err: err}
	}
	m.logger.Info("schema created", "version", LatestVersion)
	return nil
}

// apply runs one step with foreign keys suspended.
func (m *Manager) apply(ctx context.Context, from int, s step) error {
	start := time.Now()
	env := stepEnv{
		now:    model.FormatTimestamp(m.clock.Now()),
		logger: m.logger.With("step", s.to),
	}

	err := m.store.WithTxForeignKeysOff(ctx, m.timeout, func(ctx context.Context, tx *store.Tx) error {
		// Another process may have advanced the file since run read it.
		current, err := store.UserVersion(ctx, tx)
		if err != nil {
			return err
		}
		if current >= s.to {
			return fmt.Errorf("user_version already %d", current)
		}

		if _, err := tx.ExecContext(ctx, createSettingsSQL); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, env); err != nil {
			return err
		}
		if err := checkForeignKeys(ctx, tx); err != nil {
			return err
		}
		key := fmt.Sprintf("migration.v%d.completed_at", s.to)
		if err := store.SetSetting(ctx, tx, key, env.now); err != nil {
			return err
		}
		return store.SetUserVersion(ctx, tx, s.to)
	})
	m.metrics.MigrationStep(strconv.Itoa(s.to), err)
	if err != nil {
		m.logger.Error("migration step failed", "from", from, "to", s.to, "error", err)
		return &MigrationError{From: from, To: s.to, Err: err}
	}

	m.logger.Info("migration step applied",
		"from", from,
		"to", s.to,
		"name", s.name,
		"duration", time.Since(start),
	)
	return nil
}

const createSettingsSQL = `CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// checkForeignKeys fails when any row references a missing parent.
func checkForeignKeys(ctx context.Context, tx *store.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return err
	}
	defer rows.Close()

	violations := 0
	var first string
	for rows.Next() {
		var (
			table  string
			rowid  *int64
			parent string
			fkid   int64
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("scan foreign_key_check: %w", err)
		}
		if violations == 0 {
			first = fmt.Sprintf("%s -> %s", table, parent)
		}
		violations++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate foreign_key_check: %w", err)
	}
	if violations > 0 {
		return fmt.Errorf("foreign key check failed: %d violation(s), first %s", violations, first)
	}
	return nil
}
