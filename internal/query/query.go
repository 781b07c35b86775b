// Package query holds the read side of routebook: client listings, search,
// street and neighborhood tallies, and collection reports.
//
// Two aggregates are memoized for a short TTL: the portfolio summary and
// this month's collections. The Reader implements ledger.Invalidator so
// the ledger can drop them as soon as money moves.
package query

import (
	"log/slog"
	"time"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/metrics"
	"github.com/roach88/routebook/internal/store"
)

// DefaultCacheTTL is how long memoized aggregates are served.
const DefaultCacheTTL = 30 * time.Second

// DefaultSearchLimit caps Search when the caller passes no limit.
const DefaultSearchLimit = 50

// Reader answers queries against a store.
//
// Thread-safety: all methods are safe for concurrent use.
type Reader struct {
	store   *store.Store
	clock   clock.Clock
	loc     *time.Location
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   *ttlCache
}

// Option customizes New.
type Option func(*Reader)

// WithClock sets the clock used for report windows and cache expiry.
func WithClock(c clock.Clock) Option {
	return func(r *Reader) { r.clock = c }
}

// WithLocation sets the zone in which "today" and months are computed
// (default time.Local).
func WithLocation(loc *time.Location) Option {
	return func(r *Reader) { r.loc = loc }
}

// WithCacheTTL sets the aggregate cache lifetime. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Reader) { r.cache.ttl = ttl }
}

// WithLogger sets the logger (default: the store's logger).
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// WithMetrics sets the metrics sink for cache lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

// New creates a Reader on s.
func New(s *store.Store, opts ...Option) *Reader {
	r := &Reader{
		store:  s,
		clock:  clock.System{},
		loc:    time.Local,
		logger: s.Logger(),
		cache:  &ttlCache{ttl: DefaultCacheTTL, entries: make(map[string]cacheEntry)},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loc == nil {
		r.loc = time.Local
	}
	r.cache.clock = r.clock
	r.cache.metrics = r.metrics
	return r
}

// Invalidate drops every memoized aggregate.
func (r *Reader) Invalidate() {
	r.cache.purge()
	r.logger.Debug("query cache invalidated")
}

func (r *Reader) now() time.Time {
	return r.clock.Now().In(r.loc)
}
