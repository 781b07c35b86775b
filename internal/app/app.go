// Package app wires the routebook components onto one store.
//
// Usage:
//
//	a, err := app.Open(ctx, cfg)
//	if err != nil { ... }
//	defer a.Close()
//	p, err := a.Ledger.RecordPayment(ctx, clientID, 2500, "")
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/routebook/internal/audit"
	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/config"
	"github.com/roach88/routebook/internal/export"
	"github.com/roach88/routebook/internal/ledger"
	"github.com/roach88/routebook/internal/metrics"
	"github.com/roach88/routebook/internal/query"
	"github.com/roach88/routebook/internal/schema"
	"github.com/roach88/routebook/internal/sequencer"
	"github.com/roach88/routebook/internal/store"
)

// App holds the wired components. Fields are safe to use concurrently.
type App struct {
	Config    config.Config
	Store     *store.Store
	Schema    *schema.Manager
	Ledger    *ledger.Ledger
	Sequencer *sequencer.Sequencer
	Query     *query.Reader
	Audit     *audit.Writer
	Export    *export.Exporter
	Metrics   *metrics.Metrics
}

type options struct {
	logger   *slog.Logger
	registry prometheus.Registerer
	clock    clock.Clock
	ids      export.IDGenerator
}

// Option customizes Open.
type Option func(*options)

// WithLogger sets the logger shared by every component (default
// slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the metrics collectors on reg. Without it the
// collectors exist but are not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithClock overrides the wall clock (default: system time in the
// configured timezone).
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator sets the export id source.
func WithIDGenerator(g export.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// Open opens the database, migrates it to the latest schema, ensures
// indexes and wires every component. The ledger invalidates the query
// cache after money moves.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.System{Location: loc}
	}
	m := metrics.New(o.registry)

	s, err := store.Open(ctx, cfg.Database, store.WithLogger(o.logger), store.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	mgr := schema.New(s,
		schema.WithTimeout(cfg.Database.MigrationTimeout),
		schema.WithClock(o.clock),
		schema.WithLogger(o.logger),
		schema.WithMetrics(m),
	)
	if err := mgr.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := mgr.EnsureIndexes(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	reader := query.New(s,
		query.WithClock(o.clock),
		query.WithLocation(loc),
		query.WithCacheTTL(cfg.Cache.TTL),
		query.WithLogger(o.logger),
		query.WithMetrics(m),
	)
	aw := audit.New(audit.WithClock(o.clock), audit.WithLogger(o.logger), audit.WithMetrics(m))

	exportOpts := []export.Option{
		export.WithClock(o.clock),
		export.WithLogger(o.logger),
		export.WithTimeout(cfg.Database.ExportTimeout),
	}
	if o.ids != nil {
		exportOpts = append(exportOpts, export.WithIDGenerator(o.ids))
	}

	return &App{
		Config: cfg,
		Store:  s,
		Schema: mgr,
		Ledger: ledger.New(s,
			ledger.WithAudit(aw),
			ledger.WithClock(o.clock),
			ledger.WithLogger(o.logger),
			ledger.WithMetrics(m),
			ledger.WithInvalidator(reader),
		),
		Sequencer: sequencer.New(s, sequencer.WithClock(o.clock), sequencer.WithLogger(o.logger)),
		Query:     reader,
		Audit:     aw,
		Export:    export.New(s, exportOpts...),
		Metrics:   m,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}
