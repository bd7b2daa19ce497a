package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSteppingClock(t *testing.T) {
	c := NewSteppingClock(1700000000000)
	assert.Equal(t, int64(1700000000000), c.Now())

	got := c.Step(90 * time.Second)
	assert.Equal(t, int64(1700000090000), got)
	assert.Equal(t, got, c.Now())

	c.Reset()
	assert.Equal(t, int64(1700000000000), c.Now())
}

func TestConstantIDGenerator(t *testing.T) {
	g := NewConstantIDGenerator("corr-1")
	assert.Equal(t, "corr-1", g.Generate())
	assert.Equal(t, "corr-1", g.Generate())

	assert.Equal(t, "test-correlation-default", NewConstantIDGenerator("").Generate())
}
