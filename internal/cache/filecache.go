package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/remotefs/remotefs/internal/metrics"
)

// FileCache caches whole file contents by inode ID. It evicts least
// recently used entries once the resident bytes exceed the configured
// ceiling, and treats entries older than the TTL as stale without
// evicting them.
type FileCache struct {
	mu          sync.Mutex
	maxBytes    int64
	currentSize int64
	ttl         time.Duration
	items       map[uint64]*fileItem
	evictList   *list.List

	stats FileCacheStats

	now func() time.Time
}

type fileItem struct {
	id        uint64
	data      []byte
	fetchedAt time.Time
	element   *list.Element
}

// FileCacheStats counts cache activity since creation.
type FileCacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int64
	Capacity  int64
}

// NewFileCache creates a file cache bounded to maxBytes resident bytes.
func NewFileCache(maxBytes int64, ttl time.Duration) *FileCache {
	return &FileCache{
		maxBytes:  maxBytes,
		ttl:       ttl,
		items:     make(map[uint64]*fileItem),
		evictList: list.New(),
		stats:     FileCacheStats{Capacity: maxBytes},
		now:       time.Now,
	}
}

// Get returns a copy of the cached content for id. fresh reports
// whether the entry is within its TTL; ok reports whether the entry
// exists at all. A hit, fresh or stale, marks the entry most recently
// used.
func (c *FileCache) Get(id uint64) (data []byte, fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[id]
	if !exists {
		c.stats.Misses++
		return nil, false, false
	}

	c.evictList.MoveToFront(item.element)
	c.stats.Hits++

	out := make([]byte, len(item.data))
	copy(out, item.data)
	return out, c.now().Sub(item.fetchedAt) < c.ttl, true
}

// Contains reports whether id is cached, without touching recency.
func (c *FileCache) Contains(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

// Put stores content for id and restarts its TTL. Content larger than
// the cache ceiling is rejected; such files are served by ranged
// fetches instead. Put reports whether the content was stored.
func (c *FileCache) Put(id uint64, data []byte) bool {
	size := int64(len(data))
	if size > c.maxBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[id]; exists {
		c.currentSize -= int64(len(item.data))
		item.data = make([]byte, size)
		copy(item.data, data)
		item.fetchedAt = c.now()
		c.currentSize += size
		c.evictList.MoveToFront(item.element)
	} else {
		item = &fileItem{
			id:        id,
			data:      make([]byte, size),
			fetchedAt: c.now(),
		}
		copy(item.data, data)
		item.element = c.evictList.PushFront(item)
		c.items[id] = item
		c.currentSize += size
	}

	c.evictIfNeeded()
	metrics.CacheBytes.Set(float64(c.currentSize))
	return true
}

// Invalidate drops the entry for id, if any.
func (c *FileCache) Invalidate(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[id]
	if !exists {
		return
	}
	c.removeItem(item)
	metrics.CacheBytes.Set(float64(c.currentSize))
}

// Refresh restarts the TTL of an existing entry without replacing its
// content. Used after a revalidation confirms the cached bytes are
// still current.
func (c *FileCache) Refresh(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[id]; exists {
		item.fetchedAt = c.now()
		c.evictList.MoveToFront(item.element)
	}
}

// Size returns the resident bytes.
func (c *FileCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// Stats returns a snapshot of cache statistics.
func (c *FileCache) Stats() FileCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.currentSize
	return stats
}

func (c *FileCache) evictIfNeeded() {
	for c.currentSize > c.maxBytes && c.evictList.Len() > 0 {
		element := c.evictList.Back()
		if element == nil {
			return
		}
		c.removeItem(element.Value.(*fileItem))
		c.stats.Evictions++
		metrics.CacheEvictions.Inc()
	}
}

func (c *FileCache) removeItem(item *fileItem) {
	c.evictList.Remove(item.element)
	delete(c.items, item.id)
	c.currentSize -= int64(len(item.data))
}
