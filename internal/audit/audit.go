// Package audit appends and reads the per-client audit trail.
//
// Appends are best effort. A failed append never fails the mutation it
// documents: the failure is logged, counted and published on a bounded side
// channel for whoever wants to watch it.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/metrics"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

const (
	// MaxTextRunes bounds a single entry's description.
	MaxTextRunes = 500

	// FailureBuffer is the capacity of the Failures channel.
	FailureBuffer = 64
)

// Failure describes an append that was discarded.
type Failure struct {
	ClientID int64
	Text     string
	At       time.Time
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("audit append for client %d: %v", f.ClientID, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Writer appends audit entries.
//
// Thread-safety: all methods are safe for concurrent use.
type Writer struct {
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	failures chan *Failure
	dropped  atomic.Int64
}

// Option customizes New.
type Option func(*Writer)

// WithClock sets the clock used for entry timestamps.
func WithClock(c clock.Clock) Option {
	return func(w *Writer) { w.clock = c }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// New creates a Writer.
func New(opts ...Option) *Writer {
	w := &Writer{
		clock:    clock.System{},
		logger:   slog.Default(),
		failures: make(chan *Failure, FailureBuffer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Append records text against clientID using q, normally the transaction
// of the mutation being documented. It never returns an error.
//
// SQLite aborts only the failing statement, not the enclosing transaction,
// so a rejected append leaves the caller's transaction usable.
func (w *Writer) Append(ctx context.Context, q store.Querier, clientID int64, text string) {
	text = Truncate(text, MaxTextRunes)
	now := w.clock.Now()

	_, err := q.ExecContext(ctx,
		"INSERT INTO logs (client_id, timestamp, description) VALUES (?, ?, ?)",
		clientID, model.FormatTimestamp(now), text,
	)
	if err == nil {
		return
	}

	f := &Failure{ClientID: clientID, Text: text, At: now, Err: err}
	w.metrics.AuditFailure()
	w.logger.Warn("audit append discarded", "client_id", clientID, "error", err)

	select {
	case w.failures <- f:
	default:
		w.dropped.Add(1)
	}
}

// Failures returns the side channel of discarded appends. When nobody
// drains it, the oldest FailureBuffer failures are kept and later ones are
// counted by Dropped.
func (w *Writer) Failures() <-chan *Failure {
	return w.failures
}

// Dropped returns how many failures did not fit on the channel.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Recent returns the latest model.RecentLogLimit entries of a client,
// newest first. An unknown client yields an empty slice.
func Recent(ctx context.Context, q store.Querier, clientID int64) ([]model.LogEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, client_id, timestamp, description
		FROM logs
		WHERE client_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, clientID, model.RecentLogLimit)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	entries := []model.LogEntry{}
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Timestamp, &e.Description); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return entries, nil
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
