package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routebook/internal/config"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	cfg := testConfig(t)

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(cfg.Path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Path = filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, cfg.Path, s.Path())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{})
	require.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"foreign_keys", "1"},
		{"temp_store", "2"}, // MEMORY
		{"busy_timeout", "5000"},
		{"cache_size", "-16384"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.name, tt.expected))
		})
	}
}

func TestPragma_SynchronousFromDurability(t *testing.T) {
	cfg := testConfig(t)
	cfg.Durability = config.DurabilityFull

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	// FULL = 2
	assert.NoError(t, s.verifyPragma("synchronous", "2"))
}

func TestSQLFunctionsRegistered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var cents int64
	require.NoError(t, s.QueryRowContext(ctx, "SELECT to_minor_units('12,50')").Scan(&cents))
	assert.Equal(t, int64(1250), cents)

	var date string
	require.NoError(t, s.QueryRowContext(ctx, "SELECT iso_date('17/10/2026')").Scan(&date))
	assert.Equal(t, "2026-10-17", date)

	var folded string
	require.NoError(t, s.QueryRowContext(ctx, "SELECT fold('JOSÉ Núñez')").Scan(&folded))
	assert.Equal(t, "jose nunez", folded)
}

func TestHealth(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ExecContext(ctx, "INSERT INTO parents (id, name) VALUES (1, 'a'), (2, 'b')")
	require.NoError(t, err)

	h, err := s.Health(ctx)
	require.NoError(t, err)

	assert.True(t, h.IntegrityOK)
	assert.Empty(t, h.IntegrityDetail)
	assert.Positive(t, h.SizeBytes)
	assert.NotEmpty(t, h.EngineVersion)
	assert.Equal(t, int64(0), h.RowCounts["settings"])
	_, hasClients := h.RowCounts["clients"]
	assert.False(t, hasClients, "missing tables are skipped")
}
