package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/config"
	"github.com/roach88/routebook/internal/logging"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/schema"
	"github.com/roach88/routebook/internal/store"
	rbtest "github.com/roach88/routebook/internal/testutil"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "data", "routebook.db")
	cfg.Database.Durability = config.DurabilityNormal
	cfg.Timezone = "UTC"
	return cfg
}

func openApp(t *testing.T, cfg config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	a, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpen_MigratesAndWires(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	clk := clock.NewFixed(time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC))
	a := openApp(t, testConfig(t),
		WithRegisterer(reg),
		WithClock(clk),
		WithIDGenerator(rbtest.NewFixedIDGenerator("")),
	)

	version, err := a.Schema.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.LatestVersion, version)

	id, err := a.Ledger.CreateClient(ctx, model.ClientFields{Name: "Ana", Owed: 10000})
	require.NoError(t, err)

	summary, err := a.Query.PortfolioSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Paid)

	_, err = a.Ledger.RecordPayment(ctx, id, 4000, "")
	require.NoError(t, err)

	summary, err = a.Query.PortfolioSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), summary.Paid, "ledger invalidates the query cache")

	assert.Zero(t, len(a.Audit.Failures()))
	assert.Zero(t, a.Audit.Dropped())

	var buf bytes.Buffer
	doc, err := a.Export.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", doc.ExportID)
	assert.Equal(t, "2026-10-17T09:30:00.000Z", doc.ExportedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.LedgerOps.WithLabelValues("record_payment", "ok")))
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestOpen_Reopen(t *testing.T) {
	cfg := testConfig(t)

	first, err := Open(context.Background(), cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	_, err = first.Ledger.CreateClient(context.Background(), model.ClientFields{Name: "Ana", Owed: 100})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openApp(t, cfg)
	all, err := second.Query.AllClients(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	s, err := store.Open(ctx, cfg.Database, store.WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, store.SetUserVersion(ctx, s, schema.LatestVersion+1))
	require.NoError(t, s.Close())

	_, err = Open(ctx, cfg, WithLogger(logging.Discard()))
	require.Error(t, err)
	assert.True(t, schema.IsMigrationError(err))
	assert.True(t, errors.Is(err, schema.ErrNewerSchema))
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timezone = "Nowhere/Atlantis"

	_, err := Open(context.Background(), cfg, WithLogger(logging.Discard()))
	assert.Error(t, err)
}
