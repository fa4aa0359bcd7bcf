package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicNow_StepsPerObservation(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	c := NewDeterministicNow(start, time.Second)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Second), c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(2*time.Second+time.Minute), c.Now())

	c.Reset(start)
	assert.Equal(t, start, c.Now())
}

func TestDeterministicNow_ZeroStepFreezes(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	c := NewDeterministicNow(start, 0)

	assert.Equal(t, c.Now(), c.Now())
}

func TestSequentialIDGenerator(t *testing.T) {
	g := NewSequentialIDGenerator("test")

	assert.Equal(t, "test-1", g.NewID())
	assert.Equal(t, "test-2", g.NewID())
	assert.Equal(t, int64(2), g.Count())

	g.Reset()
	assert.Equal(t, "test-1", g.NewID())
}

func TestSequentialIDGenerator_DefaultPrefix(t *testing.T) {
	g := NewSequentialIDGenerator("")
	assert.Equal(t, "op-1", g.NewID())
}
