package testutil

// ConstantIDGenerator returns the same correlation ID every time.
//
// Unlike engine.FixedGenerator, which returns IDs in sequence and
// panics when exhausted, this generator never runs out. It is useful
// for scenarios where every mutation should share one correlation ID,
// producing byte-identical event logs across runs.
//
// Thread-safety: stateless and safe for concurrent use.
type ConstantIDGenerator struct {
	id string
}

// NewConstantIDGenerator creates a generator returning id. An empty id
// defaults to "test-correlation-default".
func NewConstantIDGenerator(id string) *ConstantIDGenerator {
	if id == "" {
		id = "test-correlation-default"
	}
	return &ConstantIDGenerator{id: id}
}

// Generate returns the fixed correlation ID.
// Implements engine.IDGenerator.
func (g *ConstantIDGenerator) Generate() string {
	return g.id
}
