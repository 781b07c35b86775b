package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/routebook/internal/model"
)

// ClientColumns is the select list understood by ScanClient. Prefix it with
// a table alias via ClientColumnsFor when joining.
const ClientColumns = `id, name, owed, paid, phone, reference, house_number, street_id,
	visit_order, priority, note, status, next_charge_date, created_at, updated_at`

// ClientColumnsFor returns ClientColumns qualified with alias.
func ClientColumnsFor(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.name, %[1]s.owed, %[1]s.paid, %[1]s.phone, %[1]s.reference,
	%[1]s.house_number, %[1]s.street_id, %[1]s.visit_order, %[1]s.priority, %[1]s.note, %[1]s.status,
	%[1]s.next_charge_date, %[1]s.created_at, %[1]s.updated_at`, alias)
}

// RowScanner is implemented by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanClient reads one row selected with ClientColumns.
func ScanClient(r RowScanner) (*model.Client, error) {
	var (
		c                       model.Client
		phone, reference, house sql.NullString
		streetID                sql.NullInt64
		priority                int
		status                  string
		nextCharge              sql.NullString
	)
	err := r.Scan(
		&c.ID, &c.Name, &c.Owed, &c.Paid, &phone, &reference, &house, &streetID,
		&c.VisitOrder, &priority, &c.Note, &status, &nextCharge, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Phone = phone.String
	c.Reference = reference.String
	c.HouseNumber = house.String
	if streetID.Valid {
		id := streetID.Int64
		c.StreetID = &id
	}
	c.Priority = priority != 0
	c.Status = model.Status(status)
	c.NextChargeDate = nextCharge.String
	return &c, nil
}

// GetClient loads one client. It returns nil, nil when the id is unknown.
func GetClient(ctx context.Context, q Querier, id int64) (*model.Client, error) {
	row := q.QueryRowContext(ctx, "SELECT "+ClientColumns+" FROM clients WHERE id = ?", id)
	c, err := ScanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}
	return c, nil
}

// NullString maps "" to NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullInt64 maps a nil pointer to NULL.
func NullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
