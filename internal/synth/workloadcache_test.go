package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkloadCachePutGetRoundTrip(t *testing.T) {
	c := NewWorkloadCache[string](4, 8)

	c.Put("shape-a", 42)
	v, ok := c.Get("shape-a")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestWorkloadCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewWorkloadCache[string](1, 2)

	c.Put("a", 1)
	c.Put("b", 2)
	// Touch "a" so "b" becomes the least recently used.
	_, _ = c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry must have been evicted")

	va, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, va)

	vc, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, vc)
}

func TestWorkloadCacheExpirationEvictsOnRead(t *testing.T) {
	// The background clock this cache reads (see now() in workloadcache.go)
	// refreshes only every 100ms, trading precision for avoiding a syscall
	// per Put/Get -- the expiration window and sleep here must both clear
	// that refresh period, or the stale clock would mask the expiry.
	c := NewWorkloadCache[string](1, 4, 150*time.Millisecond)
	c.Put("shape", "descriptor")

	_, ok := c.Get("shape")
	require.True(t, ok)

	time.Sleep(250 * time.Millisecond)
	_, ok = c.Get("shape")
	assert.False(t, ok, "entry should have expired")
}

func TestWorkloadCacheIntegerKeys(t *testing.T) {
	c := NewWorkloadCache[int64](2, 4)
	c.Put(int64(7), "seven")
	v, ok := c.Get(int64(7))
	require.True(t, ok)
	assert.Equal(t, "seven", v)
}
