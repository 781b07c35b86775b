package testutil

// FixedIDGenerator returns the same identifier every time.
//
// This enables deterministic golden snapshot comparison: the same data
// exported with a FixedIDGenerator produces byte-identical documents.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id.
//
// If id is empty, NewID() returns "00000000-0000-0000-0000-000000000000".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "00000000-0000-0000-0000-000000000000"
	}
	return &FixedIDGenerator{id: id}
}

// NewID returns the fixed identifier.
//
// Implements export.IDGenerator.
func (g *FixedIDGenerator) NewID() string {
	return g.id
}
