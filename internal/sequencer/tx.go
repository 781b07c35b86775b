package sequencer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/routebook/internal/store"
)

// The helpers below run inside a caller's transaction so the ledger can
// place clients as part of its own mutations.

// Next returns the position after the last client of a street.
func Next(ctx context.Context, q store.Querier, streetID int64) (int, error) {
	var last int
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(visit_order), 0) FROM clients WHERE street_id = ?", streetID,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last position on street %d: %w", streetID, err)
	}
	return last + 1, nil
}

// ShiftFrom moves every client of a street at or after from one slot down.
//
// A single UPDATE visit_order = visit_order + 1 can trip the unique index
// halfway through, depending on the order SQLite visits rows. The block is
// therefore first parked at negative positions, outside the index, and
// then flipped back.
func ShiftFrom(ctx context.Context, tx *store.Tx, streetID int64, from int, now string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE clients SET visit_order = -(visit_order + 1), updated_at = ?
		WHERE street_id = ? AND visit_order >= ?
	`, now, streetID, from); err != nil {
		return fmt.Errorf("park street %d from %d: %w", streetID, from, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE clients SET visit_order = -visit_order
		WHERE street_id = ? AND visit_order < 0
	`, streetID); err != nil {
		return fmt.Errorf("unpark street %d: %w", streetID, err)
	}
	return nil
}

// Renumber reassigns a street's positions to 1..N ordered by
// (visit_order, id) and reports how many clients moved. Moved clients pass
// through negative positions for the same reason as in ShiftFrom.
func Renumber(ctx context.Context, tx *store.Tx, streetID int64, now string) (int, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT id, visit_order FROM clients WHERE street_id = ? ORDER BY visit_order, id", streetID)
	if err != nil {
		return 0, fmt.Errorf("read street %d: %w", streetID, err)
	}
	type move struct {
		id  int64
		pos int
	}
	var moves []move
	want := 0
	for rows.Next() {
		var id int64
		var pos int
		if err := rows.Scan(&id, &pos); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan street %d: %w", streetID, err)
		}
		want++
		if pos != want {
			moves = append(moves, move{id: id, pos: want})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate street %d: %w", streetID, err)
	}
	if len(moves) == 0 {
		return 0, nil
	}

	for _, m := range moves {
		if _, err := tx.ExecContext(ctx,
			"UPDATE clients SET visit_order = ?, updated_at = ? WHERE id = ?", -m.pos, now, m.id,
		); err != nil {
			return 0, fmt.Errorf("park client %d: %w", m.id, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE clients SET visit_order = -visit_order WHERE street_id = ? AND visit_order < 0", streetID,
	); err != nil {
		return 0, fmt.Errorf("unpark street %d: %w", streetID, err)
	}
	return len(moves), nil
}

func setPosition(ctx context.Context, tx *store.Tx, clientID int64, pos int, now string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE clients SET visit_order = ?, updated_at = ? WHERE id = ?", pos, now, clientID)
	if err != nil {
		return fmt.Errorf("set position of client %d: %w", clientID, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
