package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("0b5d7a58-6f4e-4a59-9d0a-3c1f1e0c2a11")

	assert.Equal(t, "0b5d7a58-6f4e-4a59-9d0a-3c1f1e0c2a11", gen.NewID())
	assert.Equal(t, "0b5d7a58-6f4e-4a59-9d0a-3c1f1e0c2a11", gen.NewID())
}

func TestFixedIDGenerator_EmptyDefault(t *testing.T) {
	gen := NewFixedIDGenerator("")
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", gen.NewID())
}
