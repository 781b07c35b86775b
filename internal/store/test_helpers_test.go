package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/routebook/internal/config"
	"github.com/roach88/routebook/internal/logging"
)

// testConfig returns a database config pointing into a fresh temp dir.
func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Durability = config.DurabilityNormal
	cfg.TxTimeout = 2 * time.Second
	return cfg
}

// createTestStore opens a store on a temp file with a scratch table.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), testConfig(t), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	_, err = s.ExecContext(context.Background(), `
		CREATE TABLE parents (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
		CREATE TABLE children (
			id INTEGER PRIMARY KEY,
			parent_id INTEGER NOT NULL REFERENCES parents(id) ON DELETE CASCADE,
			amount INTEGER NOT NULL CHECK (amount > 0)
		);
		CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT NOT NULL);
	`)
	if err != nil {
		t.Fatalf("create scratch tables: %v", err)
	}
	return s
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
