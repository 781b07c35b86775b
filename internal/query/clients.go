package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

// DefaultPageSize applies when Page.Limit is not positive.
const DefaultPageSize = 100

// Page selects a window of an ordered listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) bounds() (limit, offset int) {
	limit, offset = p.Limit, p.Offset
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListClients returns one page of clients ordered by name.
func (r *Reader) ListClients(ctx context.Context, page Page) ([]*model.Client, error) {
	limit, offset := page.bounds()
	return r.clients(ctx, "list clients",
		"SELECT "+store.ClientColumns+" FROM clients ORDER BY name COLLATE NOCASE, id LIMIT ? OFFSET ?",
		limit, offset)
}

// AllClients returns every client ordered by id.
func (r *Reader) AllClients(ctx context.Context) ([]*model.Client, error) {
	return r.clients(ctx, "all clients", "SELECT "+store.ClientColumns+" FROM clients ORDER BY id")
}

// ClientByID returns the client or nil when the id is unknown.
func (r *Reader) ClientByID(ctx context.Context, id int64) (*model.Client, error) {
	return store.GetClient(ctx, r.store, id)
}

// ClientsOnStreet returns a street's clients in visiting order.
func (r *Reader) ClientsOnStreet(ctx context.Context, streetID int64) ([]*model.Client, error) {
	return r.clients(ctx, "clients on street",
		"SELECT "+store.ClientColumns+" FROM clients WHERE street_id = ? ORDER BY visit_order, id",
		streetID)
}

// UpdatedSince returns clients whose updated_at is at or after since, oldest
// change first. Sync collaborators poll with the largest updated_at they have
// seen; timestamps are kept to the millisecond, so the boundary is inclusive
// and rows stamped in that millisecond come back again.
func (r *Reader) UpdatedSince(ctx context.Context, since time.Time) ([]*model.Client, error) {
	return r.clients(ctx, "updated since",
		"SELECT "+store.ClientColumns+" FROM clients WHERE updated_at >= ? ORDER BY updated_at, id",
		model.FormatTimestamp(since))
}

// DueBetween returns pending clients whose next charge date falls within
// [from, to], both ISO dates, ordered for a route.
func (r *Reader) DueBetween(ctx context.Context, from, to string) ([]*model.Client, error) {
	if !model.IsISODate(from) {
		return nil, model.NewValidationError("from", "must be a YYYY-MM-DD date")
	}
	if !model.IsISODate(to) {
		return nil, model.NewValidationError("to", "must be a YYYY-MM-DD date")
	}
	return r.clients(ctx, "due between",
		`SELECT `+store.ClientColumnsFor("c")+`
		   FROM clients c
		  WHERE c.status = ? AND c.next_charge_date BETWEEN ? AND ?
		  ORDER BY c.next_charge_date, c.street_id IS NULL, c.street_id, c.visit_order, c.id`,
		string(model.StatusPending), from, to)
}

// ClientPayments returns a client's payments, newest first.
func (r *Reader) ClientPayments(ctx context.Context, clientID int64) ([]model.Payment, error) {
	return r.payments(ctx, "client payments",
		"SELECT id, client_id, timestamp, amount FROM payments WHERE client_id = ? ORDER BY timestamp DESC, id DESC",
		clientID)
}

// PaymentsBetween returns payments received in [from, to), oldest first.
func (r *Reader) PaymentsBetween(ctx context.Context, from, to time.Time) ([]model.Payment, error) {
	return r.payments(ctx, "payments between",
		"SELECT id, client_id, timestamp, amount FROM payments WHERE timestamp >= ? AND timestamp < ? ORDER BY timestamp, id",
		model.FormatTimestamp(from), model.FormatTimestamp(to))
}

func (r *Reader) clients(ctx context.Context, what, query string, args ...any) ([]*model.Client, error) {
	rows, err := r.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	out := []*model.Client{}
	for rows.Next() {
		c, err := store.ScanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", what, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return out, nil
}

func (r *Reader) payments(ctx context.Context, what, query string, args ...any) ([]model.Payment, error) {
	rows, err := r.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	out := []model.Payment{}
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Timestamp, &p.Amount); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", what, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return out, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
