package sequencer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/logging"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
	rbtest "github.com/roach88/routebook/internal/testutil"
)

const seedStamp = "2026-10-01T00:00:00.000Z"

func setup(t *testing.T) (*store.Store, *Sequencer) {
	t.Helper()
	s := rbtest.NewStore(t)
	rbtest.Exec(t, s, "INSERT INTO neighborhoods (id, name) VALUES (1, 'Centro')")
	rbtest.Exec(t, s, "INSERT INTO streets (id, name, neighborhood_id) VALUES (1, 'Main', 1), (2, 'Oak', 1)")
	seq := New(s,
		WithClock(clock.NewFixed(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))),
		WithLogger(logging.Discard()),
	)
	return s, seq
}

// addClients puts n clients on a street at positions 1..n and returns
// their ids in that order.
func addClients(t *testing.T, s *store.Store, streetID int64, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		var next int
		require.NoError(t, s.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(visit_order), 0) + 1 FROM clients WHERE street_id = ?", streetID,
		).Scan(&next))
		res, err := s.ExecContext(ctx, `
			INSERT INTO clients (name, owed, paid, street_id, visit_order, created_at, updated_at)
			VALUES ('c', 0, 0, ?, ?, ?, ?)`, streetID, next, seedStamp, seedStamp)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func positionsOf(t *testing.T, s *store.Store, ids []int64) []int {
	t.Helper()
	out := make([]int, len(ids))
	for i, id := range ids {
		require.NoError(t, s.QueryRowContext(context.Background(),
			"SELECT visit_order FROM clients WHERE id = ?", id).Scan(&out[i]))
	}
	return out
}

func requireContiguous(t *testing.T, s *store.Store, streetID int64) {
	t.Helper()
	rows, err := s.QueryContext(context.Background(),
		"SELECT visit_order FROM clients WHERE street_id = ? ORDER BY visit_order", streetID)
	require.NoError(t, err)
	var got []int
	for rows.Next() {
		var p int
		require.NoError(t, rows.Scan(&p))
		got = append(got, p)
	}
	require.NoError(t, rows.Err())
	rows.Close()
	for i, p := range got {
		require.Equal(t, i+1, p, "positions %v", got)
	}
}

func TestSetOrder_MoveLastToFirst(t *testing.T) {
	s, seq := setup(t)
	ids := addClients(t, s, 1, 3)

	require.NoError(t, seq.SetOrder(context.Background(), ids[2], 1, 1))

	assert.Equal(t, []int{2, 3, 1}, positionsOf(t, s, ids))
}

func TestSetOrder_MoveFirstDown(t *testing.T) {
	s, seq := setup(t)
	ids := addClients(t, s, 1, 4)

	// Client 1 is inserted ahead of the client at position 3.
	require.NoError(t, seq.SetOrder(context.Background(), ids[0], 1, 3))

	got, err := Positions(context.Background(), s, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1], ids[0], ids[2], ids[3]}, got)
	requireContiguous(t, s, 1)
}

func TestSetOrder_PastTheEndGoesLast(t *testing.T) {
	s, seq := setup(t)
	ids := addClients(t, s, 1, 3)

	require.NoError(t, seq.SetOrder(context.Background(), ids[0], 1, 50))

	assert.Equal(t, []int{3, 1, 2}, positionsOf(t, s, ids))
}

func TestSetOrder_SamePositionIsNoOp(t *testing.T) {
	s, seq := setup(t)
	ids := addClients(t, s, 1, 3)

	require.NoError(t, seq.SetOrder(context.Background(), ids[1], 1, 2))

	assert.Equal(t, []int{1, 2, 3}, positionsOf(t, s, ids))
	assert.Equal(t, int64(0), rbtest.Count(t, s, "clients WHERE updated_at <> ?", seedStamp))
}

func TestSetOrder_UnknownClientIsNoOp(t *testing.T) {
	_, seq := setup(t)
	assert.NoError(t, seq.SetOrder(context.Background(), 404, 1, 1))
}

func TestSetOrder_Rejects(t *testing.T) {
	s, seq := setup(t)
	ids := addClients(t, s, 1, 2)
	ctx := context.Background()

	err := seq.SetOrder(ctx, ids[0], 1, 0)
	assert.True(t, model.IsValidation(err))

	err = seq.SetOrder(ctx, ids[0], 2, 1)
	assert.True(t, model.IsValidation(err), "client is on street 1, not 2")
}

func TestSetOrder_LeavesOtherStreetsAlone(t *testing.T) {
	s, seq := setup(t)
	main := addClients(t, s, 1, 3)
	oak := addClients(t, s, 2, 3)

	require.NoError(t, seq.SetOrder(context.Background(), main[2], 1, 1))

	assert.Equal(t, []int{1, 2, 3}, positionsOf(t, s, oak))
}

func TestSetOrder_RandomSequencesStayContiguous(t *testing.T) {
	s, seq := setup(t)
	ids := addClients(t, s, 1, 7)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 150; i++ {
		client := ids[rng.Intn(len(ids))]
		pos := 1 + rng.Intn(len(ids)+2)
		require.NoError(t, seq.SetOrder(ctx, client, 1, pos))
		requireContiguous(t, s, 1)
	}
}

func TestNormalize_ClosesGaps(t *testing.T) {
	s, seq := setup(t)
	ids := addClients(t, s, 1, 3)
	ctx := context.Background()

	rbtest.Exec(t, s, "UPDATE clients SET visit_order = 9 WHERE id = ?", ids[0])
	rbtest.Exec(t, s, "UPDATE clients SET visit_order = 5 WHERE id = ?", ids[1])
	rbtest.Exec(t, s, "UPDATE clients SET visit_order = 2 WHERE id = ?", ids[2])

	require.NoError(t, seq.Normalize(ctx, 1))
	assert.Equal(t, []int{3, 2, 1}, positionsOf(t, s, ids))
}

func TestNormalize_SkipsClientsInPlace(t *testing.T) {
	s, seq := setup(t)
	ids := addClients(t, s, 1, 3)
	ctx := context.Background()

	rbtest.Exec(t, s, "UPDATE clients SET visit_order = 4 WHERE id = ?", ids[2])

	require.NoError(t, seq.Normalize(ctx, 1))
	assert.Equal(t, []int{1, 2, 3}, positionsOf(t, s, ids))
	assert.Equal(t, int64(1), rbtest.Count(t, s, "clients WHERE updated_at <> ?", seedStamp),
		"only the displaced client is written")
}

func TestNormalize_EmptyStreet(t *testing.T) {
	_, seq := setup(t)
	assert.NoError(t, seq.Normalize(context.Background(), 2))
}

func TestTxHelpers(t *testing.T) {
	s, _ := setup(t)
	ids := addClients(t, s, 1, 3)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		next, err := Next(ctx, tx, 1)
		require.NoError(t, err)
		assert.Equal(t, 4, next)

		next, err = Next(ctx, tx, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, next)

		// Make room at 2 and fill it with a new client.
		require.NoError(t, ShiftFrom(ctx, tx, 1, 2, seedStamp))
		_, err = tx.ExecContext(ctx, `
			INSERT INTO clients (name, owed, paid, street_id, visit_order, created_at, updated_at)
			VALUES ('new', 0, 0, 1, 2, ?, ?)`, seedStamp, seedStamp)
		require.NoError(t, err)

		moved, err := Renumber(ctx, tx, 1, seedStamp)
		require.NoError(t, err)
		assert.Equal(t, 0, moved)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 4}, positionsOf(t, s, ids))
	requireContiguous(t, s, 1)
}
