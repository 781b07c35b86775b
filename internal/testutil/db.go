// Package testutil provides deterministic clocks, identifiers and
// ready-migrated databases for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/routebook/internal/config"
	"github.com/roach88/routebook/internal/logging"
	"github.com/roach88/routebook/internal/schema"
	"github.com/roach88/routebook/internal/store"
)

// NewStore opens a store on a temp file and migrates it to the latest
// schema. The store is closed when the test ends.
func NewStore(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "routebook.db")
	cfg.Durability = config.DurabilityNormal

	opts = append([]store.Option{store.WithLogger(logging.Discard())}, opts...)
	s, err := store.Open(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	m := schema.New(s, schema.WithLogger(logging.Discard()))
	if err := m.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// Exec runs a statement outside any transaction, failing the test on error.
func Exec(t testing.TB, s *store.Store, query string, args ...any) {
	t.Helper()
	if _, err := s.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// Count returns SELECT COUNT(*) for the given FROM/WHERE tail, e.g.
// Count(t, s, "payments WHERE client_id = ?", id).
func Count(t testing.TB, s *store.Store, tail string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := s.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+tail, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", tail, err)
	}
	return n
}
