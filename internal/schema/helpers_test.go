package schema

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/config"
	"github.com/roach88/routebook/internal/logging"
	"github.com/roach88/routebook/internal/store"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

const testNowStamp = "2026-10-17T12:00:00.000Z"

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "schema.db")
	cfg.Durability = config.DurabilityNormal

	s, err := store.Open(context.Background(), cfg, store.WithLogger(logging.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestManager(s *store.Store, opts ...Option) *Manager {
	base := []Option{
		WithClock(clock.NewFixed(testNow)),
		WithLogger(logging.Discard()),
		WithTimeout(10 * time.Second),
	}
	return New(s, append(base, opts...)...)
}

// legacyV1Schema is the layout written by builds that predate user_version.
const legacyV1Schema = `
CREATE TABLE clients (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL,
    phone        TEXT,
    reference    TEXT,
    house_number TEXT,
    street       TEXT,
    visit_order  INTEGER,
    owed         REAL,
    paid         REAL,
    note         TEXT,
    next_visit   TEXT,
    charge_date  TEXT,
    created_at   TEXT,
    updated_at   TEXT
);
CREATE TABLE payments (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id INTEGER REFERENCES clients(id) ON DELETE CASCADE,
    date      TEXT,
    amount    REAL
);
CREATE TABLE logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id   INTEGER REFERENCES clients(id) ON DELETE CASCADE,
    date        TEXT,
    description TEXT
);
`

// seedV1 creates the legacy layout and fills it with the awkward values
// real devices produced. Orphan rows are inserted with enforcement off.
func seedV1(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	err := s.WithTxForeignKeysOff(ctx, 5*time.Second, func(ctx context.Context, tx *store.Tx) error {
		if _, err := tx.ExecContext(ctx, legacyV1Schema); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clients (id, name, phone, street, visit_order, owed, paid, note, next_visit, charge_date, created_at, updated_at) VALUES
				(1, 'Ana', '555-0101', 'Main St', 3, '100,50', 40.0, 'blue door', '17/10/2026', NULL, '01/09/2026 10:00', NULL),
				(2, 'Bruno', NULL, ' main st ', 3, 50, 80, NULL, NULL, '2026-11-01', '2026-09-02', '2026-09-03 08:15:00'),
				(3, 'Caio', NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL),
				(4, 'Dora', NULL, 'Oak', 1, '20', '20', NULL, '20/10/2026', NULL, '2026-09-04', NULL);
			INSERT INTO payments (id, client_id, date, amount) VALUES
				(1, 1, '05/09/2026', 40.0),
				(2, 2, '06/09/2026 09:30', '80'),
				(3, 99, '07/09/2026', 10),
				(4, 1, '08/09/2026', 0);
			INSERT INTO logs (id, client_id, date, description) VALUES
				(1, 1, '05/09/2026', 'paid 40'),
				(2, 99, '07/09/2026', 'ghost');
		`)
		return err
	})
	require.NoError(t, err)
}

func countRows(t *testing.T, q store.Querier, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, q.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

type columnInfo struct {
	Name    string
	Type    string
	NotNull int
	Default *string
	PK      int
}

func tableInfo(t *testing.T, q store.Querier, table string) []columnInfo {
	t.Helper()
	rows, err := q.QueryContext(context.Background(),
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	require.NoError(t, err)
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var c columnInfo
		require.NoError(t, rows.Scan(&c.Name, &c.Type, &c.NotNull, &c.Default, &c.PK))
		cols = append(cols, c)
	}
	require.NoError(t, rows.Err())
	return cols
}

// seedV2 writes a clean v2 database: integer minor units, ISO timestamps and
// street names still held as text on each client.
func seedV2(t *testing.T, s *store.Store) {
	t.Helper()
	_, err := s.ExecContext(context.Background(), `
		CREATE TABLE clients (
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
		CREATE TABLE payments (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			timestamp TEXT NOT NULL,
			amount    INTEGER NOT NULL CHECK (amount > 0)
		);
		CREATE TABLE logs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id   INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			timestamp   TEXT NOT NULL,
			description TEXT NOT NULL
		);
		CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT NOT NULL);
		INSERT INTO clients (id, name, street, visit_order, owed, paid, next_visit, charge_date, created_at, updated_at) VALUES
			(1, 'Ana',  'Elm', 5, 10000, 10000, '2026-10-20', NULL,         '2026-09-01T10:00:00.000Z', '2026-09-01T10:00:00.000Z'),
			(2, 'Bia',  'elm', 2, 5000,  1000,  NULL,         '2026-10-21', '2026-09-02T10:00:00.000Z', '2026-09-02T10:00:00.000Z'),
			(3, 'Caio', NULL,  7, 3000,  0,     '2026-10-22', '2026-10-25', '2026-09-03T10:00:00.000Z', '2026-09-03T10:00:00.000Z');
		INSERT INTO payments (id, client_id, timestamp, amount) VALUES
			(1, 1, '2026-09-05T10:00:00.000Z', 10000),
			(2, 2, '2026-09-06T10:00:00.000Z', 1000);
		INSERT INTO logs (id, client_id, timestamp, description) VALUES
			(1, 2, '2026-09-06T10:00:00.000Z', 'paid 10.00');
		PRAGMA user_version = 2;
	`)
	require.NoError(t, err)
}

func columnType(t *testing.T, q store.Querier, table, col string) string {
	t.Helper()
	for _, c := range tableInfo(t, q, table) {
		if c.Name == col {
			return c.Type
		}
	}
	t.Fatalf("%s.%s not found", table, col)
	return ""
}
