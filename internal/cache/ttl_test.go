package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, size int) (*TTLCache[string, int], *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	c, err := NewTTLCache[string, int]("test", size, time.Minute, clock)
	require.NoError(t, err)
	return c, clock
}

func TestTTLCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 10)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestTTLCache_Expiry(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.Set("a", 1)

	clock.Advance(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok, "entry should live until the TTL elapses")

	clock.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry should expire exactly at the TTL")
	assert.Equal(t, 0, c.Len(), "expired entry should be dropped on read")
}

func TestTTLCache_SetRefreshesTTL(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.Set("a", 1)
	clock.Advance(45 * time.Second)
	c.Set("a", 2)
	clock.Advance(45 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTLCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestTTLCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set("a", 1)
	c.Invalidate("a")
	c.Invalidate("missing")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_InvalidatePrefix(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set("org-1:0:20", 1)
	c.Set("org-1:20:20", 2)
	c.Set("org-10:0:20", 3)
	c.Set("org-2:0:20", 4)

	assert.Equal(t, 2, c.InvalidatePrefix("org-1:"))
	_, ok := c.Get("org-10:0:20")
	assert.True(t, ok, "prefix must not match org-10")
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 2, c.InvalidatePrefix(""))
	assert.Equal(t, 0, c.Len())
}

func TestNewTTLCache_Errors(t *testing.T) {
	_, err := NewTTLCache[string, int]("bad", 10, 0, nil)
	assert.Error(t, err)

	_, err = NewTTLCache[string, int]("bad", 0, time.Minute, nil)
	assert.Error(t, err)
}
