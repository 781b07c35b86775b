package schema

import (
	"context"
	"fmt"

	"github.com/roach88/routebook/internal/store"
)

// migrateToV2 rewrites the legacy tables with integer minor units and
// canonical ISO dates. Rows are copied through the to_minor_units,
// iso_date and iso_timestamp SQL functions; unparseable money fails the
// step, unparseable timestamps fall back to the migration time.
//
// Payments and log lines whose client no longer exists, and payments that
// convert to a non-positive amount, are not carried over.
func migrateToV2(ctx context.Context, tx *store.Tx, env stepEnv) error {
	for _, table := range []string{"clients_v2", "payments_v2", "logs_v2"} {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return err
		}
	}

	for table, cols := range map[string][]string{
		"clients":  {"owed", "paid", "street", "visit_order"},
		"payments": {"client_id", "date", "amount"},
		"logs":     {"client_id", "date", "description"},
	} {
		if err := requireColumns(ctx, tx, table, cols...); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE clients_v2 (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			name         TEXT NOT NULL,
			phone        TEXT,
			reference    TEXT,
			house_number TEXT,
			street       TEXT,
			visit_order  INTEGER NOT NULL DEFAULT 0,
			owed         INTEGER NOT NULL DEFAULT 0,
			paid         INTEGER NOT NULL DEFAULT 0,
			note         TEXT NOT NULL DEFAULT '',
			next_visit   TEXT,
			charge_date  TEXT,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);
		CREATE TABLE payments_v2 (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			timestamp TEXT NOT NULL,
			amount    INTEGER NOT NULL CHECK (amount > 0)
		);
		CREATE TABLE logs_v2 (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id   INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			timestamp   TEXT NOT NULL,
			description TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create v2 tables: %w", err)
	}

	var nextVisit, chargeDate, createdAt, updatedAt string
	for col, dst := range map[string]*string{
		"next_visit":  &nextVisit,
		"charge_date": &chargeDate,
		"created_at":  &createdAt,
		"updated_at":  &updatedAt,
	} {
		expr, err := columnOrNull(ctx, tx, "clients", col)
		if err != nil {
			return err
		}
		*dst = expr
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO clients_v2 (
			id, name, phone, reference, house_number, street, visit_order,
			owed, paid, note, next_visit, charge_date, created_at, updated_at
		)
		SELECT
			id,
			trim(COALESCE(name, '')),
			phone,
			reference,
			house_number,
			street,
			COALESCE(CAST(visit_order AS INTEGER), 0),
			to_minor_units(owed),
			to_minor_units(paid),
			COALESCE(note, ''),
			iso_date(%[1]s),
			iso_date(%[2]s),
			COALESCE(iso_timestamp(%[3]s), ?1),
			COALESCE(iso_timestamp(%[4]s), iso_timestamp(%[3]s), ?1)
		FROM clients
	`, nextVisit, chargeDate, createdAt, updatedAt), env.now); err != nil {
		return fmt.Errorf("copy clients: %w", err)
	}

	var skipped int64
	res, err := tx.ExecContext(ctx, `
		INSERT INTO payments_v2 (id, client_id, timestamp, amount)
		SELECT id, client_id, COALESCE(iso_timestamp(date), ?1), to_minor_units(amount)
		FROM payments
		WHERE client_id IN (SELECT id FROM clients_v2)
		  AND to_minor_units(amount) > 0
	`, env.now)
	if err != nil {
		return fmt.Errorf("copy payments: %w", err)
	}
	copied, _ := res.RowsAffected()
	var total int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments").Scan(&total); err != nil {
		return fmt.Errorf("count payments: %w", err)
	}
	skipped += total - copied

	res, err = tx.ExecContext(ctx, `
		INSERT INTO logs_v2 (id, client_id, timestamp, description)
		SELECT id, client_id, COALESCE(iso_timestamp(date), ?1), COALESCE(description, '')
		FROM logs
		WHERE client_id IN (SELECT id FROM clients_v2)
	`, env.now)
	if err != nil {
		return fmt.Errorf("copy logs: %w", err)
	}
	copied, _ = res.RowsAffected()
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&total); err != nil {
		return fmt.Errorf("count logs: %w", err)
	}
	skipped += total - copied
	if skipped > 0 {
		env.logger.Warn("legacy rows not carried over", "rows", skipped)
	}

	for _, stmt := range []string{
		"DROP TABLE logs",
		"DROP TABLE payments",
		"DROP TABLE clients",
		"ALTER TABLE clients_v2 RENAME TO clients",
		"ALTER TABLE payments_v2 RENAME TO payments",
		"ALTER TABLE logs_v2 RENAME TO logs",
		"CREATE INDEX IF NOT EXISTS idx_clients_name ON clients(name COLLATE NOCASE)",
		"CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id)",
		"CREATE INDEX IF NOT EXISTS idx_logs_client_timestamp ON logs(client_id, timestamp)",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// requireColumns fails when table lacks any of cols.
func requireColumns(ctx context.Context, q store.Querier, table string, cols ...string) error {
	for _, col := range cols {
		ok, err := store.ColumnExists(ctx, q, table, col)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s.%s is missing; not a recognized legacy layout", table, col)
		}
	}
	return nil
}

// columnOrNull returns col when table has it, otherwise the literal NULL,
// so copies tolerate columns that some legacy builds never created.
func columnOrNull(ctx context.Context, q store.Querier, table, col string) (string, error) {
	ok, err := store.ColumnExists(ctx, q, table, col)
	if err != nil {
		return "", err
	}
	if !ok {
		return "NULL", nil
	}
	return col, nil
}
