// Package sequencer maintains the visiting order of clients on a street.
//
// Positions on a street run 1..N. Position 0 marks a client that is not on
// a route (no street) or is being moved; negative positions only exist
// inside a transaction while a block of clients is being shifted. The
// unique index on (street_id, visit_order) covers positive positions only,
// so neither state can collide with a real slot whatever the street's size.
package sequencer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

// Vacant is the out-of-band position of a client being moved.
const Vacant = 0

// Sequencer reorders clients within a street.
type Sequencer struct {
	store  *store.Store
	clock  clock.Clock
	logger *slog.Logger
}

// Option customizes New.
type Option func(*Sequencer)

// WithClock sets the clock used for updated_at.
func WithClock(c clock.Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithLogger sets the logger (default: the store's logger).
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// New creates a Sequencer on st.
func New(st *store.Store, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:  st,
		clock:  clock.System{},
		logger: st.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOrder moves a client to newPosition on its street.
//
// The client is parked at Vacant, every other client at or after
// newPosition moves down one slot, and the client takes newPosition. The
// street is then renumbered 1..N in a second transaction, which also
// absorbs a newPosition past the end of the street.
//
// It is a no-op when the client already holds newPosition or does not
// exist. A client that is not on streetID is rejected.
func (s *Sequencer) SetOrder(ctx context.Context, clientID, streetID int64, newPosition int) error {
	if newPosition < 1 {
		return model.NewValidationError("position", "must be >= 1")
	}

	moved := false
	err := s.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		var (
			current int
			street  *int64
		)
		err := tx.QueryRowContext(ctx,
			"SELECT visit_order, street_id FROM clients WHERE id = ?", clientID,
		).Scan(&current, &street)
		if isNoRows(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load client %d: %w", clientID, err)
		}
		if street == nil || *street != streetID {
			return model.NewValidationError("street_id", fmt.Sprintf("client %d is not on street %d", clientID, streetID))
		}
		if current == newPosition {
			return nil
		}

		now := model.FormatTimestamp(s.clock.Now())
		if err := setPosition(ctx, tx, clientID, Vacant, now); err != nil {
			return err
		}
		if err := ShiftFrom(ctx, tx, streetID, newPosition, now); err != nil {
			return err
		}
		if err := setPosition(ctx, tx, clientID, newPosition, now); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil || !moved {
		return err
	}

	s.logger.Debug("client reordered", "client_id", clientID, "street_id", streetID, "position", newPosition)
	return s.Normalize(ctx, streetID)
}

// Normalize renumbers a street's clients 1..N in their current order.
// Clients already in place are not written.
func (s *Sequencer) Normalize(ctx context.Context, streetID int64) error {
	var changed int
	err := s.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		var err error
		changed, err = Renumber(ctx, tx, streetID, model.FormatTimestamp(s.clock.Now()))
		return err
	})
	if err != nil {
		return err
	}
	if changed > 0 {
		s.logger.Debug("street renumbered", "street_id", streetID, "moved", changed)
	}
	return nil
}

// Positions returns the client ids of a street in visiting order.
func Positions(ctx context.Context, q store.Querier, streetID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM clients WHERE street_id = ? ORDER BY visit_order, id", streetID)
	if err != nil {
		return nil, fmt.Errorf("query street %d: %w", streetID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan street %d: %w", streetID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
