package httpmiddleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(capacity, perMinute int, start time.Time) (*SimpleTokenBucket, *time.Time) {
	clock := start
	l := NewSimpleTokenBucket(capacity, perMinute)
	l.lastSweep = start
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestAllowExhaustsCapacity(t *testing.T) {
	l, _ := newTestLimiter(3, 60, time.Now())

	for i := 0; i < 3; i++ {
		require.True(t, l.allow("10.0.0.1"), "request %d within capacity", i+1)
	}
	assert.False(t, l.allow("10.0.0.1"))

	// Distinct clients carry their own buckets.
	assert.True(t, l.allow("10.0.0.2"))
}

func TestAllowRefillsOverTime(t *testing.T) {
	start := time.Now()
	l, clock := newTestLimiter(2, 60, start)

	require.True(t, l.allow("ip"))
	require.True(t, l.allow("ip"))
	require.False(t, l.allow("ip"))

	*clock = start.Add(2 * time.Second) // 60/min refills 2 tokens
	assert.True(t, l.allow("ip"))
}

func TestSweepEvictsIdleBuckets(t *testing.T) {
	start := time.Now()
	l, clock := newTestLimiter(5, 60, start)

	require.True(t, l.allow("idle"))
	require.True(t, l.allow("fresh"))
	require.Len(t, l.state, 2)

	*clock = start.Add(bucketIdleTTL / 2)
	require.True(t, l.allow("fresh"))

	*clock = start.Add(bucketIdleTTL + time.Minute)
	require.True(t, l.allow("trigger"))

	_, idleKept := l.state["idle"]
	_, freshKept := l.state["fresh"]
	assert.False(t, idleKept)
	assert.True(t, freshKept)
}
