package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyMinorUnits(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{nil, 0},
		{int64(150), 15000},
		{12.5, 1250},
		{0.1 + 0.2, 30},
		{19.995, 2000},
		{"12.50", 1250},
		{"12,50", 1250},
		{"12,5", 1250},
		{"$ 1.234,50", 123450},
		{"1,234.50", 123450},
		{"1.234.567", 123456700},
		{"1.234", 123400},
		{"R$ 2.500", 250000},
		{"-1.500", -150000},
		{"2.50", 250},
		{"1,000", 100000},
		{"", 0},
		{[]byte("7"), 700},
	}
	for _, tt := range tests {
		got, err := LegacyMinorUnits(tt.in)
		require.NoError(t, err, "input %#v", tt.in)
		assert.Equal(t, tt.want, got, "input %#v", tt.in)
	}
}

func TestLegacyMinorUnits_Rejects(t *testing.T) {
	_, err := LegacyMinorUnits("1-2-3")
	assert.Error(t, err)

	_, err = LegacyMinorUnits(true)
	assert.Error(t, err)
}

func TestParseLegacyTime(t *testing.T) {
	tests := []struct {
		in       any
		wantDate string
		hasClock bool
	}{
		{"17/10/2026", "2026-10-17", false},
		{"7/3/2026", "2026-03-07", false},
		{"2026-10-17", "2026-10-17", false},
		{"2026/10/17", "2026-10-17", false},
		{"17-10-2026", "2026-10-17", false},
		{"17.10.2026", "2026-10-17", false},
		{"17/10/26", "2026-10-17", false},
		{"17/10/2026 14:30", "2026-10-17", true},
		{"2026-10-17 08:00:00", "2026-10-17", true},
		{"2026-10-17T08:00:00Z", "2026-10-17", true},
		{int64(1792195200), "2026-10-17", true},
		{int64(1792195200000), "2026-10-17", true},
	}
	for _, tt := range tests {
		got, hasClock, ok := ParseLegacyTime(tt.in)
		require.True(t, ok, "input %#v", tt.in)
		assert.Equal(t, tt.wantDate, got.Format("2006-01-02"), "input %#v", tt.in)
		assert.Equal(t, tt.hasClock, hasClock, "input %#v", tt.in)
	}

	for _, bad := range []any{nil, "", "someday", "32/13/2026", int64(0)} {
		_, _, ok := ParseLegacyTime(bad)
		assert.False(t, ok, "input %#v", bad)
	}
}

func TestSQLDateFunctions(t *testing.T) {
	assert.Equal(t, "2026-10-17", sqlISODate("17/10/2026"))
	assert.Nil(t, sqlISODate("never"))
	assert.Equal(t, "2026-10-17T14:30:00.000Z", sqlISOTimestamp("17/10/2026 14:30"))
	assert.Equal(t, "2026-10-17T00:00:00.000Z", sqlISOTimestamp(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC).Format("2006-01-02")))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "jose", Fold("JOSÉ"))
	assert.Equal(t, "muller", Fold("Müller"))
	assert.Equal(t, "100%", Fold("100%"))
	assert.Equal(t, Fold("Peña"), Fold("PENA"))
	assert.Nil(t, sqlFold(nil))
}
