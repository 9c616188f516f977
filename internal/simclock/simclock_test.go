package simclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeterministicAdvance(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewDeterministic(start, 1)
	require.True(t, c.Deterministic())
	require.Equal(t, start, c.Now())

	c.Advance(16 * time.Millisecond)
	require.Equal(t, uint64(1), c.Tick())
	require.Equal(t, start.Add(16*time.Millisecond), c.Now())
}

func TestDeterministicReproducible(t *testing.T) {
	a := NewDeterministic(time.Unix(0, 0), 42)
	b := NewDeterministic(time.Unix(0, 0), 42)

	for i := 0; i < 10; i++ {
		require.Equal(t, a.Float64(), b.Float64())
		require.Equal(t, a.Uint32(), b.Uint32())
	}
}

func TestNextCounterMonotonic(t *testing.T) {
	c := NewDeterministic(time.Unix(0, 0), 1)
	require.Equal(t, uint64(1), c.NextCounter())
	require.Equal(t, uint64(2), c.NextCounter())
	require.Equal(t, uint64(3), c.NextCounter())
}
