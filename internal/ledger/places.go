package ledger

import (
	"context"
	"fmt"

	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

type placeName struct {
	Name string `validate:"required,max=80"`
}

func validPlaceName(name string) (string, error) {
	in := placeName{Name: clean(name)}
	if err := model.Validate(in); err != nil {
		return "", err
	}
	return in.Name, nil
}

// CreateNeighborhood inserts a neighborhood. Names are unique regardless of
// case.
func (l *Ledger) CreateNeighborhood(ctx context.Context, name string) (id int64, err error) {
	defer func() { l.metrics.LedgerOp("create_neighborhood", err) }()

	if name, err = validPlaceName(name); err != nil {
		return 0, err
	}
	err = l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO neighborhoods (name) VALUES (?)", name)
		if store.IsUniqueViolation(err) {
			return model.NewValidationError("name", fmt.Sprintf("neighborhood %q already exists", name))
		}
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateStreet inserts a street into a neighborhood. Names are unique per
// neighborhood regardless of case.
func (l *Ledger) CreateStreet(ctx context.Context, neighborhoodID int64, name string) (id int64, err error) {
	defer func() { l.metrics.LedgerOp("create_street", err) }()

	if name, err = validPlaceName(name); err != nil {
		return 0, err
	}
	err = l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM neighborhoods WHERE id = ?", neighborhoodID,
		).Scan(&n); err != nil {
			return fmt.Errorf("look up neighborhood %d: %w", neighborhoodID, err)
		}
		if n == 0 {
			return model.NewValidationError("neighborhood_id", fmt.Sprintf("unknown neighborhood %d", neighborhoodID))
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO streets (name, neighborhood_id) VALUES (?, ?)", name, neighborhoodID)
		if store.IsUniqueViolation(err) {
			return model.NewValidationError("name", fmt.Sprintf("street %q already exists", name))
		}
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RenameStreet changes a street's name. An unknown id is a no-op.
func (l *Ledger) RenameStreet(ctx context.Context, id int64, name string) (err error) {
	defer func() { l.metrics.LedgerOp("rename_street", err) }()

	if name, err = validPlaceName(name); err != nil {
		return err
	}
	return l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE streets SET name = ? WHERE id = ?", name, id)
		if store.IsUniqueViolation(err) {
			return model.NewValidationError("name", fmt.Sprintf("street %q already exists", name))
		}
		return err
	})
}

// DeleteStreet removes a street. Its clients stay, unassigned and off the
// route.
func (l *Ledger) DeleteStreet(ctx context.Context, id int64) (err error) {
	defer func() { l.metrics.LedgerOp("delete_street", err) }()

	return l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE clients SET street_id = NULL, visit_order = 0, updated_at = ?
			WHERE street_id = ?
		`, l.now(), id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM streets WHERE id = ?", id)
		return err
	})
}

// DeleteNeighborhood removes a neighborhood and its streets. Their clients
// stay, unassigned and off the route.
func (l *Ledger) DeleteNeighborhood(ctx context.Context, id int64) (err error) {
	defer func() { l.metrics.LedgerOp("delete_neighborhood", err) }()

	return l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE clients SET street_id = NULL, visit_order = 0, updated_at = ?
			WHERE street_id IN (SELECT id FROM streets WHERE neighborhood_id = ?)
		`, l.now(), id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM neighborhoods WHERE id = ?", id)
		return err
	})
}
