package ledger

import (
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/routebook/internal/audit"
	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/metrics"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

// Invalidator drops memoized aggregates after money moves.
type Invalidator interface {
	Invalidate()
}

// Ledger applies client and payment mutations.
//
// Thread-safety: all methods are safe for concurrent use; the store
// serializes the underlying transactions.
type Ledger struct {
	store   *store.Store
	audit   *audit.Writer
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   Invalidator
}

// Option customizes New.
type Option func(*Ledger)

// WithAudit sets the audit writer (default: a writer sharing the ledger's
// clock and logger).
func WithAudit(w *audit.Writer) Option {
	return func(l *Ledger) { l.audit = w }
}

// WithClock sets the clock used for timestamps and "tomorrow".
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithLogger sets the logger (default: the store's logger).
func WithLogger(lg *slog.Logger) Option {
	return func(l *Ledger) { l.logger = lg }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithInvalidator registers the aggregate cache to drop after commits that
// change owed or paid.
func WithInvalidator(inv Invalidator) Option {
	return func(l *Ledger) { l.cache = inv }
}

// New creates a Ledger on s.
func New(s *store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		clock:  clock.System{},
		logger: s.Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.audit == nil {
		l.audit = audit.New(audit.WithClock(l.clock), audit.WithLogger(l.logger), audit.WithMetrics(l.metrics))
	}
	return l
}

// Audit returns the writer used for audit entries.
func (l *Ledger) Audit() *audit.Writer {
	return l.audit
}

func (l *Ledger) now() string {
	return model.FormatTimestamp(l.clock.Now())
}

func (l *Ledger) invalidate() {
	if l.cache != nil {
		l.cache.Invalidate()
	}
}

// clean trims s and puts it in NFC so equal-looking names compare equal.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func cleanPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := clean(*p)
	return &v
}
