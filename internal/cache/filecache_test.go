package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCachePutGet(t *testing.T) {
	c := NewFileCache(1024, 10*time.Second)

	require.True(t, c.Put(1, []byte("hello")))
	data, fresh, ok := c.Get(1)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), c.Size())
}

func TestFileCacheTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewFileCache(1024, 10*time.Second)
	c.now = clock.Now

	c.Put(1, []byte("hello"))

	clock.Advance(9 * time.Second)
	_, fresh, ok := c.Get(1)
	require.True(t, ok)
	assert.True(t, fresh)

	clock.Advance(2 * time.Second)
	data, fresh, ok := c.Get(1)
	require.True(t, ok)
	assert.False(t, fresh, "entry past its TTL must read as stale")
	assert.Equal(t, "hello", string(data))
}

func TestFileCacheRefreshRestartsTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewFileCache(1024, 10*time.Second)
	c.now = clock.Now

	c.Put(1, []byte("hello"))
	clock.Advance(9 * time.Second)
	c.Refresh(1)
	clock.Advance(9 * time.Second)

	_, fresh, ok := c.Get(1)
	require.True(t, ok)
	assert.True(t, fresh)
}

func TestFileCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewFileCache(30, 10*time.Second)

	c.Put(1, bytes.Repeat([]byte("a"), 10))
	c.Put(2, bytes.Repeat([]byte("b"), 10))
	c.Put(3, bytes.Repeat([]byte("c"), 10))

	// Touch 1 so 2 becomes the eviction candidate.
	_, _, ok := c.Get(1)
	require.True(t, ok)

	c.Put(4, bytes.Repeat([]byte("d"), 10))

	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2), "least recently used entry should be evicted")
	assert.True(t, c.Contains(3))
	assert.True(t, c.Contains(4))
	assert.LessOrEqual(t, c.Size(), int64(30))
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestFileCacheEvictsMultipleForLargeEntry(t *testing.T) {
	c := NewFileCache(30, 10*time.Second)

	c.Put(1, bytes.Repeat([]byte("a"), 10))
	c.Put(2, bytes.Repeat([]byte("b"), 10))
	c.Put(3, bytes.Repeat([]byte("c"), 10))
	c.Put(4, bytes.Repeat([]byte("d"), 25))

	assert.False(t, c.Contains(1))
	assert.False(t, c.Contains(2))
	assert.False(t, c.Contains(3))
	assert.True(t, c.Contains(4))
	assert.LessOrEqual(t, c.Size(), int64(30))
}

func TestFileCacheRejectsOversizedContent(t *testing.T) {
	c := NewFileCache(30, 10*time.Second)

	stored := c.Put(1, bytes.Repeat([]byte("x"), 31))
	assert.False(t, stored)
	assert.False(t, c.Contains(1))
	assert.Equal(t, int64(0), c.Size())
}

func TestFileCacheReplaceAdjustsSize(t *testing.T) {
	c := NewFileCache(1024, 10*time.Second)

	c.Put(1, bytes.Repeat([]byte("a"), 100))
	c.Put(1, bytes.Repeat([]byte("b"), 40))

	assert.Equal(t, int64(40), c.Size())
	data, _, ok := c.Get(1)
	require.True(t, ok)
	assert.Len(t, data, 40)
}

func TestFileCacheInvalidate(t *testing.T) {
	c := NewFileCache(1024, 10*time.Second)

	c.Put(1, []byte("hello"))
	c.Invalidate(1)

	assert.False(t, c.Contains(1))
	assert.Equal(t, int64(0), c.Size())
}

func TestFileCacheCopiesOnGet(t *testing.T) {
	c := NewFileCache(1024, 10*time.Second)

	c.Put(1, []byte("hello"))
	data, _, ok := c.Get(1)
	require.True(t, ok)
	data[0] = 'X'

	again, _, _ := c.Get(1)
	assert.Equal(t, "hello", string(again))
}

func TestFileCacheStats(t *testing.T) {
	c := NewFileCache(1024, 10*time.Second)

	c.Put(1, []byte("hello"))
	c.Get(1)
	c.Get(2)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, int64(5), stats.Size)
	assert.Equal(t, int64(1024), stats.Capacity)
}
