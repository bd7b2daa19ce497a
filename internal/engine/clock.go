package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock supplies event timestamps in milliseconds since the Unix epoch.
//
// Timestamps participate in reduction tie-breaks and timeout sweeps, so
// tests substitute a fixed clock to make both deterministic.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time in epoch milliseconds.
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// FixedClock returns a preset instant, advanced explicitly by tests.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedClock struct {
	mu sync.Mutex
	ts int64
}

// NewFixedClock creates a clock frozen at ts.
func NewFixedClock(ts int64) *FixedClock {
	return &FixedClock{ts: ts}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts += d.Milliseconds()
}

// IDGenerator produces correlation identifiers for provenance entries.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 correlation IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, making IDs
// sortable by creation time, which keeps provenance chains readable.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs for testing.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Panics once all ids are consumed; this is a fail-fast approach to
// catch test misconfiguration.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
