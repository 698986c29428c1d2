// Package cache holds the TTL directory cache and the byte-bounded
// LRU file content cache.
package cache

import (
	"sync"
	"time"

	"github.com/remotefs/remotefs/internal/remote"
)

// DirCache caches directory listings by inode ID with a fixed TTL.
// Stale records are kept until explicitly invalidated so callers can
// fall back to them when revalidation fails.
type DirCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[uint64]*dirRecord

	now func() time.Time
}

type dirRecord struct {
	entries   []remote.Entry
	fetchedAt time.Time
}

// NewDirCache creates a directory cache with the given TTL. A zero or
// negative TTL makes every record immediately stale.
func NewDirCache(ttl time.Duration) *DirCache {
	return &DirCache{
		ttl:   ttl,
		items: make(map[uint64]*dirRecord),
		now:   time.Now,
	}
}

// Get returns the cached listing for id. fresh reports whether the
// record is within its TTL; ok reports whether any record exists.
func (c *DirCache) Get(id uint64) (entries []remote.Entry, fresh, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, exists := c.items[id]
	if !exists {
		return nil, false, false
	}

	out := make([]remote.Entry, len(rec.entries))
	copy(out, rec.entries)
	return out, c.now().Sub(rec.fetchedAt) < c.ttl, true
}

// Put stores a listing for id, replacing any previous record and
// restarting its TTL.
func (c *DirCache) Put(id uint64, entries []remote.Entry) {
	stored := make([]remote.Entry, len(entries))
	copy(stored, entries)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = &dirRecord{entries: stored, fetchedAt: c.now()}
}

// Invalidate drops the record for id, if any.
func (c *DirCache) Invalidate(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

// Len reports how many listings are cached.
func (c *DirCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
