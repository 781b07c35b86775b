package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/routebook/internal/store"
)

// DefaultNeighborhood receives the streets recovered from the legacy
// free-text street column.
const DefaultNeighborhood = "Unassigned"

// clientsV3 is the clients definition of schema.sql under a scratch name.
const clientsV3 = `CREATE TABLE clients_v3 (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL,
    owed             INTEGER NOT NULL DEFAULT 0 CHECK (owed >= 0),
    paid             INTEGER NOT NULL DEFAULT 0 CHECK (paid >= 0 AND paid <= owed),
    phone            TEXT,
    reference        TEXT,
    house_number     TEXT,
    street_id        INTEGER REFERENCES streets(id) ON DELETE SET NULL,
    visit_order      INTEGER NOT NULL DEFAULT 0,
    priority         INTEGER NOT NULL DEFAULT 0 CHECK (priority IN (0, 1)),
    note             TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'settled')),
    next_charge_date TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
)`

// migrateToV3 introduces neighborhoods and streets and rebuilds clients
// with CHECK constraints.
//
// Order matters: columns are added first so the street and date backfills
// have somewhere to land, then the rebuild copies the finished rows while
// clamping paid into [0, owed], renumbering visit orders per street and
// deriving status.
func migrateToV3(ctx context.Context, tx *store.Tx, env stepEnv) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS neighborhoods (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE
		);
		CREATE TABLE IF NOT EXISTS streets (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			name            TEXT NOT NULL COLLATE NOCASE,
			neighborhood_id INTEGER NOT NULL REFERENCES neighborhoods(id) ON DELETE CASCADE,
			UNIQUE (neighborhood_id, name)
		);
		DROP TABLE IF EXISTS clients_v3;
	`); err != nil {
		return fmt.Errorf("create street tables: %w", err)
	}

	for _, col := range []struct{ name, def string }{
		{"street_id", "INTEGER"},
		{"priority", "INTEGER NOT NULL DEFAULT 0"},
		{"status", "TEXT NOT NULL DEFAULT 'pending'"},
		{"next_charge_date", "TEXT"},
	} {
		if err := addColumnIfMissing(ctx, tx, "clients", col.name, col.def); err != nil {
			return err
		}
	}

	if err := backfillStreets(ctx, tx); err != nil {
		return err
	}
	if err := backfillNextChargeDate(ctx, tx); err != nil {
		return err
	}

	var clamped int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clients WHERE owed < 0 OR paid < 0 OR paid > owed",
	).Scan(&clamped); err != nil {
		return fmt.Errorf("count out-of-range clients: %w", err)
	}
	if clamped > 0 {
		env.logger.Warn("clamping paid into [0, owed]", "invariant", "paid_le_owed", "clients", clamped)
	}

	if _, err := tx.ExecContext(ctx, clientsV3); err != nil {
		return fmt.Errorf("create clients_v3: %w", err)
	}

	// owed and paid are clamped in a subquery so status is derived from the
	// values actually stored.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO clients_v3 (
			id, name, owed, paid, phone, reference, house_number, street_id,
			visit_order, priority, note, status, next_charge_date,
			created_at, updated_at
		)
		SELECT
			id, name, owed, paid, phone, reference, house_number, street_id,
			CASE WHEN street_id IS NULL THEN 0
			     ELSE ROW_NUMBER() OVER (PARTITION BY street_id ORDER BY visit_order, id)
			END,
			priority, note,
			CASE WHEN owed > 0 AND paid >= owed THEN 'settled' ELSE 'pending' END,
			CASE WHEN owed > 0 AND paid >= owed THEN NULL ELSE next_charge_date END,
			created_at, updated_at
		FROM (
			SELECT
				id, name, phone, reference, house_number, street_id, visit_order,
				max(owed, 0) AS owed,
				min(max(paid, 0), max(owed, 0)) AS paid,
				CASE WHEN COALESCE(priority, 0) <> 0 THEN 1 ELSE 0 END AS priority,
				COALESCE(note, '') AS note,
				next_charge_date, created_at, updated_at
			FROM clients
		)
	`); err != nil {
		return fmt.Errorf("copy clients: %w", err)
	}

	for _, stmt := range []string{
		"DROP TABLE clients",
		"ALTER TABLE clients_v3 RENAME TO clients",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return createIndexes(ctx, tx)
}

// addColumnIfMissing runs ALTER TABLE ADD COLUMN unless the column exists.
func addColumnIfMissing(ctx context.Context, tx *store.Tx, table, col, def string) error {
	ok, err := store.ColumnExists(ctx, tx, table, col)
	if err != nil || ok {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col, def)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, col, err)
	}
	return nil
}

// backfillStreets turns distinct legacy street names into streets of the
// default neighborhood and points each client at its street. Names are
// matched case-insensitively after trimming.
func backfillStreets(ctx context.Context, tx *store.Tx) error {
	ok, err := store.ColumnExists(ctx, tx, "clients", "street")
	if err != nil || !ok {
		return err
	}

	var named int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clients WHERE street_id IS NULL AND trim(COALESCE(street, '')) <> ''",
	).Scan(&named); err != nil {
		return fmt.Errorf("count legacy streets: %w", err)
	}
	if named == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO neighborhoods (name) VALUES (?)", DefaultNeighborhood,
	); err != nil {
		return fmt.Errorf("create default neighborhood: %w", err)
	}
	var nid int64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM neighborhoods WHERE name = ?", DefaultNeighborhood,
	).Scan(&nid); err != nil {
		return fmt.Errorf("find default neighborhood: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO streets (name, neighborhood_id)
		SELECT trim(street), ?
		FROM clients
		WHERE street_id IS NULL AND trim(COALESCE(street, '')) <> ''
		GROUP BY trim(street) COLLATE NOCASE
	`, nid); err != nil {
		return fmt.Errorf("create streets: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE clients
		SET street_id = (
			SELECT s.id FROM streets s
			WHERE s.neighborhood_id = ? AND s.name = trim(clients.street)
		)
		WHERE street_id IS NULL AND trim(COALESCE(street, '')) <> ''
	`, nid); err != nil {
		return fmt.Errorf("link clients to streets: %w", err)
	}
	return nil
}

// backfillNextChargeDate folds the legacy next_visit and charge_date
// columns into next_charge_date, preferring a value already present.
func backfillNextChargeDate(ctx context.Context, tx *store.Tx) error {
	sources := []string{"next_charge_date"}
	for _, col := range []string{"next_visit", "charge_date"} {
		ok, err := store.ColumnExists(ctx, tx, "clients", col)
		if err != nil {
			return err
		}
		if ok {
			sources = append(sources, fmt.Sprintf("NULLIF(trim(%s), '')", col))
		}
	}
	if len(sources) == 1 {
		return nil
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE clients SET next_charge_date = COALESCE(%s) WHERE next_charge_date IS NULL",
		strings.Join(sources, ", "),
	))
	if err != nil {
		return fmt.Errorf("backfill next_charge_date: %w", err)
	}
	return nil
}
