// Package export writes the whole database as one versioned JSON document,
// for backups and for handing data to a sync collaborator.
//
// The document is read inside a single transaction, so it is a consistent
// snapshot even while the ledger is writing.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

const (
	// Format names the document type.
	Format = "routebook-export"

	// FormatVersion changes whenever the document layout changes.
	FormatVersion = 1

	// DefaultTimeout bounds the snapshot transaction.
	DefaultTimeout = 2 * time.Minute
)

// Document is the exported database.
type Document struct {
	Format        string               `json:"format"`
	FormatVersion int                  `json:"format_version"`
	SchemaVersion int                  `json:"schema_version"`
	ExportID      string               `json:"export_id"`
	ExportedAt    string               `json:"exported_at"`
	Neighborhoods []model.Neighborhood `json:"neighborhoods"`
	Streets       []model.Street       `json:"streets"`
	Clients       []*model.Client      `json:"clients"`
	Payments      []model.Payment      `json:"payments"`
	Logs          []model.LogEntry     `json:"logs"`
}

// IDGenerator produces export identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues time-ordered UUIDv7 identifiers.
type UUIDGenerator struct{}

// NewID returns a fresh UUIDv7.
func (UUIDGenerator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Exporter builds Documents from a store.
type Exporter struct {
	store   *store.Store
	clock   clock.Clock
	ids     IDGenerator
	logger  *slog.Logger
	timeout time.Duration
}

// Option customizes New.
type Option func(*Exporter)

// WithClock sets the clock stamped into exported_at.
func WithClock(c clock.Clock) Option {
	return func(e *Exporter) { e.clock = c }
}

// WithIDGenerator sets the export id source (default UUIDGenerator).
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Exporter) { e.ids = g }
}

// WithTimeout bounds the snapshot read (default DefaultTimeout).
func WithTimeout(d time.Duration) Option {
	return func(e *Exporter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger (default: the store's logger).
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// New creates an Exporter on s.
func New(s *store.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store:   s,
		clock:   clock.System{},
		ids:     UUIDGenerator{},
		logger:  s.Logger(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot reads every table into a Document.
func (e *Exporter) Snapshot(ctx context.Context) (*Document, error) {
	doc := &Document{
		Format:        Format,
		FormatVersion: FormatVersion,
		ExportID:      e.ids.NewID(),
		ExportedAt:    model.FormatTimestamp(e.clock.Now()),
	}
	err := e.store.WithTxTimeout(ctx, e.timeout, func(ctx context.Context, tx *store.Tx) error {
		var err error
		if doc.SchemaVersion, err = store.UserVersion(ctx, tx); err != nil {
			return err
		}
		if doc.Neighborhoods, err = neighborhoods(ctx, tx); err != nil {
			return err
		}
		if doc.Streets, err = streets(ctx, tx); err != nil {
			return err
		}
		if doc.Clients, err = clients(ctx, tx); err != nil {
			return err
		}
		if doc.Payments, err = payments(ctx, tx); err != nil {
			return err
		}
		doc.Logs, err = logs(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	return doc, nil
}

// Export writes a Snapshot to w as indented JSON and returns it.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (*Document, error) {
	doc, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	e.logger.Info("export written",
		"export_id", doc.ExportID,
		"clients", len(doc.Clients),
		"payments", len(doc.Payments),
		"logs", len(doc.Logs),
	)
	return doc, nil
}

// collect runs query and scans every row with scan.
func collect[T any](ctx context.Context, tx *store.Tx, query string, scan func(store.RowScanner) (T, error)) ([]T, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func neighborhoods(ctx context.Context, tx *store.Tx) ([]model.Neighborhood, error) {
	return collect(ctx, tx, "SELECT id, name FROM neighborhoods ORDER BY id",
		func(r store.RowScanner) (model.Neighborhood, error) {
			var n model.Neighborhood
			err := r.Scan(&n.ID, &n.Name)
			return n, err
		})
}

func streets(ctx context.Context, tx *store.Tx) ([]model.Street, error) {
	return collect(ctx, tx, "SELECT id, name, neighborhood_id FROM streets ORDER BY id",
		func(r store.RowScanner) (model.Street, error) {
			var s model.Street
			err := r.Scan(&s.ID, &s.Name, &s.NeighborhoodID)
			return s, err
		})
}

func clients(ctx context.Context, tx *store.Tx) ([]*model.Client, error) {
	return collect(ctx, tx, "SELECT "+store.ClientColumns+" FROM clients ORDER BY id", store.ScanClient)
}

func payments(ctx context.Context, tx *store.Tx) ([]model.Payment, error) {
	return collect(ctx, tx, "SELECT id, client_id, timestamp, amount FROM payments ORDER BY id",
		func(r store.RowScanner) (model.Payment, error) {
			var p model.Payment
			err := r.Scan(&p.ID, &p.ClientID, &p.Timestamp, &p.Amount)
			return p, err
		})
}

func logs(ctx context.Context, tx *store.Tx) ([]model.LogEntry, error) {
	return collect(ctx, tx, "SELECT id, client_id, timestamp, description FROM logs ORDER BY id",
		func(r store.RowScanner) (model.LogEntry, error) {
			var l model.LogEntry
			err := r.Scan(&l.ID, &l.ClientID, &l.Timestamp, &l.Description)
			return l, err
		})
}
