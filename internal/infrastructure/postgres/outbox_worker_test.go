package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeNextRetry_Bounds(t *testing.T) {
	// floor of 5s, even for a bogus attempt counter
	d0 := computeNextRetry(-1)
	require.GreaterOrEqual(t, d0, 4*time.Second)
	require.LessOrEqual(t, d0, 6*time.Second)

	// exponential region: 2^10s with jitter
	d10 := computeNextRetry(10)
	require.GreaterOrEqual(t, d10, 900*time.Second)
	require.LessOrEqual(t, d10, 1150*time.Second)

	// cap at 30 minutes with jitter
	d20 := computeNextRetry(20)
	require.GreaterOrEqual(t, d20, 1600*time.Second)
	require.LessOrEqual(t, d20, 2000*time.Second)
}
