package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routebook/internal/model"
)

func TestGetClient(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ExecContext(ctx, `
		CREATE TABLE clients (
			id INTEGER PRIMARY KEY, name TEXT NOT NULL, owed INTEGER NOT NULL, paid INTEGER NOT NULL,
			phone TEXT, reference TEXT, house_number TEXT, street_id INTEGER,
			visit_order INTEGER NOT NULL, priority INTEGER NOT NULL, note TEXT NOT NULL,
			status TEXT NOT NULL, next_charge_date TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL
		);
		INSERT INTO clients VALUES
			(1, 'Ana', 1000, 250, '555', NULL, '12B', 7, 2, 1, 'gate code 4', 'pending', '2026-10-18',
			 '2026-10-01T00:00:00.000Z', '2026-10-02T00:00:00.000Z'),
			(2, 'Bruno', 0, 0, NULL, NULL, NULL, NULL, 0, 0, '', 'pending', NULL,
			 '2026-10-01T00:00:00.000Z', '2026-10-01T00:00:00.000Z');
	`)
	require.NoError(t, err)

	c, err := GetClient(ctx, s, 1)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, int64(750), c.Outstanding())
	assert.Equal(t, "555", c.Phone)
	assert.Equal(t, "12B", c.HouseNumber)
	require.NotNil(t, c.StreetID)
	assert.Equal(t, int64(7), *c.StreetID)
	assert.True(t, c.Priority)
	assert.Equal(t, model.StatusPending, c.Status)
	assert.Equal(t, "2026-10-18", c.NextChargeDate)

	c, err = GetClient(ctx, s, 2)
	require.NoError(t, err)
	assert.Nil(t, c.StreetID)
	assert.Empty(t, c.Phone)
	assert.Empty(t, c.NextChargeDate)

	c, err = GetClient(ctx, s, 3)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, NullString("").Valid)
	assert.True(t, NullString("x").Valid)

	assert.False(t, NullInt64(nil).Valid)
	id := int64(4)
	assert.Equal(t, int64(4), NullInt64(&id).Int64)
}
