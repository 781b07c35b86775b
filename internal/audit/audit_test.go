package audit

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routebook/internal/logging"
	"github.com/roach88/routebook/internal/metrics"
	"github.com/roach88/routebook/internal/store"
	rbtest "github.com/roach88/routebook/internal/testutil"
)

var start = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*store.Store, *Writer, *metrics.Metrics) {
	t.Helper()
	s := rbtest.NewStore(t)
	rbtest.Exec(t, s, `INSERT INTO clients (id, name, owed, paid, created_at, updated_at)
		VALUES (1, 'Ana', 1000, 0, '2026-10-01T00:00:00.000Z', '2026-10-01T00:00:00.000Z')`)

	m := metrics.New(prometheus.NewRegistry())
	w := New(
		WithClock(rbtest.NewTickingClock(start, time.Second)),
		WithLogger(logging.Discard()),
		WithMetrics(m),
	)
	return s, w, m
}

func TestAppend_InsideTransaction(t *testing.T) {
	s, w, _ := setup(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		w.Append(ctx, tx, 1, "created")
		return nil
	})
	require.NoError(t, err)

	entries, err := Recent(ctx, s, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "created", entries[0].Description)
	assert.Equal(t, "2026-10-17T09:00:00.000Z", entries[0].Timestamp)
}

func TestAppend_RolledBackWithTransaction(t *testing.T) {
	s, w, _ := setup(t)
	ctx := context.Background()

	_ = s.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		w.Append(ctx, tx, 1, "never committed")
		return assert.AnError
	})

	entries, err := Recent(ctx, s, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppend_FailureIsSwallowed(t *testing.T) {
	s, w, m := setup(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		// No client 42: the foreign key rejects the insert.
		w.Append(ctx, tx, 42, "orphan")
		_, err := tx.ExecContext(ctx, "UPDATE clients SET paid = 500 WHERE id = 1")
		return err
	})
	require.NoError(t, err, "the documented mutation still commits")

	var paid int64
	require.NoError(t, s.QueryRowContext(ctx, "SELECT paid FROM clients WHERE id = 1").Scan(&paid))
	assert.Equal(t, int64(500), paid)

	select {
	case f := <-w.Failures():
		assert.Equal(t, int64(42), f.ClientID)
		assert.Equal(t, "orphan", f.Text)
		assert.Error(t, f.Err)
		assert.True(t, store.IsTransactionError(f))
		assert.Contains(t, f.Error(), "client 42")
	default:
		t.Fatal("expected a failure on the side channel")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditFailures))
	assert.Equal(t, int64(0), w.Dropped())
}

func TestAppend_FullChannelCountsDrops(t *testing.T) {
	s, w, m := setup(t)
	ctx := context.Background()

	for i := 0; i < FailureBuffer+3; i++ {
		w.Append(ctx, s, 999, "orphan")
	}

	assert.Len(t, w.Failures(), FailureBuffer)
	assert.Equal(t, int64(3), w.Dropped())
	assert.Equal(t, float64(FailureBuffer+3), testutil.ToFloat64(m.AuditFailures))
}

func TestRecent_NewestFirstAndBounded(t *testing.T) {
	s, w, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		w.Append(ctx, s, 1, "entry")
	}
	w.Append(ctx, s, 1, "latest")

	entries, err := Recent(ctx, s, 1)
	require.NoError(t, err)
	require.Len(t, entries, 50)
	assert.Equal(t, "latest", entries[0].Description)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i-1].Timestamp, entries[i].Timestamp)
	}
}

func TestRecent_UnknownClient(t *testing.T) {
	s, _, _ := setup(t)

	entries, err := Recent(context.Background(), s, 404)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestAppend_TruncatesLongText(t *testing.T) {
	s, w, _ := setup(t)
	ctx := context.Background()

	w.Append(ctx, s, 1, strings.Repeat("é", 2*MaxTextRunes))

	entries, err := Recent(ctx, s, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, MaxTextRunes, utf8.RuneCountInString(entries[0].Description))
	assert.True(t, strings.HasSuffix(entries[0].Description, "…"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab…", Truncate("abcd", 3))
	assert.Equal(t, "", Truncate("abc", 0))
}
