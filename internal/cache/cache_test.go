package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/patchflow/patchflow/internal/clock"
)

func TestGetMissOnEmptyCache(t *testing.T) {
	c := New[string](time.Minute)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestPutAndGet(t *testing.T) {
	c := New[string](time.Minute)
	c.Put("key", "value")

	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestTTLBoundary(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	ttl := 300000 * time.Millisecond
	c := New[string](ttl).WithClock(fake)

	c.Put("key", "value")

	fake.Advance(299999 * time.Millisecond)
	_, ok := c.Get("key")
	assert.True(t, ok, "hit just inside the TTL")

	fake.Advance(2 * time.Millisecond) // now at t0+300001ms
	_, ok = c.Get("key")
	assert.False(t, ok, "miss just past the TTL")
}

func TestExpiredEntryEvictedOnRead(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := New[int](time.Minute).WithClock(fake)

	c.Put("key", 7)
	assert.Equal(t, 1, c.Len())

	fake.Advance(2 * time.Minute)
	_, ok := c.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry deleted on read")
}

func TestPutRefreshesTimestamp(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := New[string](time.Minute).WithClock(fake)

	c.Put("key", "old")
	fake.Advance(50 * time.Second)
	c.Put("key", "new")
	fake.Advance(30 * time.Second)

	// 80s after the first Put, 30s after the overwrite
	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestSweepRemovesStaleEntries(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := New[string](time.Minute).WithClock(fake)

	c.Put("stale", "x")
	fake.Advance(2 * time.Minute)
	c.Put("fresh", "y")

	c.sweep()
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}
