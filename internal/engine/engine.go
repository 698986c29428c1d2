// Package engine is the caching and consistency core. It sits between
// the filesystem adapter and the remote client, owning the inode
// registry, both cache tiers, and the coalescing of concurrent fetches.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/remotefs/remotefs/internal/cache"
	"github.com/remotefs/remotefs/internal/logging"
	"github.com/remotefs/remotefs/internal/metrics"
	"github.com/remotefs/remotefs/internal/registry"
	"github.com/remotefs/remotefs/internal/remote"
	"github.com/remotefs/remotefs/pkg/fserr"
)

var (
	// ErrNotDirectory is returned when a directory operation targets a file.
	ErrNotDirectory = errors.New("not a directory")
	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("is a directory")
	// ErrStaleHandle is returned when an inode ID is no longer registered.
	ErrStaleHandle = errors.New("stale inode")
)

// Fetcher is the remote access surface the engine depends on.
type Fetcher interface {
	ListDirectory(ctx context.Context, path string) ([]remote.Entry, error)
	Stat(ctx context.Context, path string) (remote.Entry, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ReadFileRange(ctx context.Context, path string, offset, length int64) ([]byte, error)
}

// Config carries the cache tuning the engine is constructed with.
type Config struct {
	DirTTL   time.Duration
	FileTTL  time.Duration
	MaxBytes int64
	NoCache  bool
}

// Engine coordinates the registry, the cache tiers, and the remote
// client. All methods are safe for concurrent use.
type Engine struct {
	client   Fetcher
	reg      *registry.Registry
	dirs     *cache.DirCache
	files    *cache.FileCache
	flights  singleflight.Group
	maxBytes int64
	noCache  bool
}

// New creates an engine backed by client.
func New(client Fetcher, cfg Config) *Engine {
	return &Engine{
		client:   client,
		reg:      registry.New(),
		dirs:     cache.NewDirCache(cfg.DirTTL),
		files:    cache.NewFileCache(cfg.MaxBytes, cfg.FileTTL),
		maxBytes: cfg.MaxBytes,
		noCache:  cfg.NoCache,
	}
}

func dirKey(id uint64) string  { return fmt.Sprintf("dir/%d", id) }
func fileKey(id uint64) string { return fmt.Sprintf("file/%d", id) }

// Node returns the registry record for id.
func (e *Engine) Node(id uint64) (registry.Node, bool) {
	return e.reg.ByID(id)
}

// Root returns the mount root.
func (e *Engine) Root() registry.Node {
	n, _ := e.reg.ByID(registry.RootID)
	return n
}

// ChildNode returns the registered child of parentID named name without
// touching the remote. Callers that need freshness use Resolve.
func (e *Engine) ChildNode(parentID uint64, name string) (registry.Node, bool) {
	parent, ok := e.reg.ByID(parentID)
	if !ok {
		return registry.Node{}, false
	}
	return e.reg.ByPath(registry.ChildPath(parent.Path, name))
}

// Walk resolves a slash-separated path from the root, component by
// component. An empty path resolves to the root itself.
func (e *Engine) Walk(ctx context.Context, path string) (registry.Node, error) {
	node := e.Root()
	if path == "" {
		return node, nil
	}
	for _, name := range strings.Split(path, "/") {
		child, err := e.Resolve(ctx, node.ID, name)
		if err != nil {
			return registry.Node{}, err
		}
		node = child
	}
	return node, nil
}

// ListChildren returns the directory entries under id, serving a fresh
// cached listing when available and otherwise coalescing a remote
// fetch. Concurrent callers for the same directory share one fetch.
func (e *Engine) ListChildren(ctx context.Context, id uint64) ([]remote.Entry, error) {
	node, ok := e.reg.ByID(id)
	if !ok {
		return nil, ErrStaleHandle
	}
	if !node.IsDir {
		return nil, ErrNotDirectory
	}

	if !e.noCache {
		if entries, fresh, ok := e.dirs.Get(id); ok && fresh {
			metrics.CacheHits.WithLabelValues("dir").Inc()
			return entries, nil
		}
		metrics.CacheMisses.WithLabelValues("dir").Inc()
	}

	v, err, shared := e.flights.Do(dirKey(id), func() (interface{}, error) {
		// A waiter that lost the race re-checks before fetching again.
		if !e.noCache {
			if entries, fresh, ok := e.dirs.Get(id); ok && fresh {
				return entries, nil
			}
		}

		entries, err := e.client.ListDirectory(ctx, node.Path)
		if err != nil {
			if fserr.IsNotFound(err) {
				e.dropSubtree(node.Path)
			}
			return nil, err
		}

		e.reconcileChildren(id, node.Path, entries)
		if !e.noCache {
			e.dirs.Put(id, entries)
		}
		return entries, nil
	})
	if shared {
		metrics.CoalescedWaiters.WithLabelValues("dir").Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.([]remote.Entry), nil
}

// Resolve finds the child of parentID named name, registering it if it
// is new. It drives a listing of the parent, so freshness and
// coalescing follow ListChildren.
func (e *Engine) Resolve(ctx context.Context, parentID uint64, name string) (registry.Node, error) {
	parent, ok := e.reg.ByID(parentID)
	if !ok {
		return registry.Node{}, ErrStaleHandle
	}

	entries, err := e.ListChildren(ctx, parentID)
	if err != nil {
		return registry.Node{}, err
	}

	for _, entry := range entries {
		if entry.Name == name {
			node, ok := e.reg.ByPath(registry.ChildPath(parent.Path, name))
			if !ok {
				// Reconciliation registered it; a concurrent removal
				// is the only way to get here.
				return registry.Node{}, fserr.NotFound("resolve", registry.ChildPath(parent.Path, name))
			}
			return node, nil
		}
	}
	return registry.Node{}, fserr.NotFound("resolve", registry.ChildPath(parent.Path, name))
}

// Attributes returns the metadata for id. A snapshot backed by a fresh
// parent listing is served directly; otherwise the remote is consulted
// and the registry refreshed.
func (e *Engine) Attributes(ctx context.Context, id uint64) (registry.Node, error) {
	node, ok := e.reg.ByID(id)
	if !ok {
		return registry.Node{}, ErrStaleHandle
	}
	if id == registry.RootID {
		return node, nil
	}

	if !e.noCache {
		if parent, ok := e.reg.ByPath(parentPath(node.Path)); ok {
			if _, fresh, ok := e.dirs.Get(parent.ID); ok && fresh {
				return node, nil
			}
		}
	}

	entry, err := e.client.Stat(ctx, node.Path)
	if err != nil {
		if fserr.IsNotFound(err) {
			e.dropSubtree(node.Path)
		}
		return registry.Node{}, err
	}
	return e.reg.Upsert(node.Path, entry.IsDir, entry.Size, entry.ModTime), nil
}

// ReadAt returns up to length bytes of the file id starting at offset.
// Whole files are cached; files larger than the cache ceiling and all
// reads in no-cache mode go straight to the remote as ranged fetches.
func (e *Engine) ReadAt(ctx context.Context, id uint64, offset, length int64) ([]byte, error) {
	node, ok := e.reg.ByID(id)
	if !ok {
		return nil, ErrStaleHandle
	}
	if node.IsDir {
		return nil, ErrIsDirectory
	}
	if length <= 0 {
		return nil, nil
	}

	if e.noCache || node.Size > e.maxBytes {
		data, err := e.client.ReadFileRange(ctx, node.Path, offset, length)
		if err != nil && fserr.IsNotFound(err) {
			e.dropSubtree(node.Path)
		}
		return data, err
	}

	if data, fresh, ok := e.files.Get(id); ok && fresh {
		metrics.CacheHits.WithLabelValues("file").Inc()
		return sliceRange(data, offset, length), nil
	}
	metrics.CacheMisses.WithLabelValues("file").Inc()

	v, err, shared := e.flights.Do(fileKey(id), func() (interface{}, error) {
		if data, fresh, ok := e.files.Get(id); ok && fresh {
			return data, nil
		}

		data, err := e.client.ReadFile(ctx, node.Path)
		if err != nil {
			if fserr.IsNotFound(err) {
				e.dropSubtree(node.Path)
			}
			return nil, err
		}

		if !e.files.Put(id, data) {
			logging.Debug("content exceeds cache ceiling, serving uncached",
				zap.String("path", node.Path),
				zap.Int("size", len(data)))
		}
		e.reg.Upsert(node.Path, false, int64(len(data)), node.ModTime)
		return data, nil
	})
	if shared {
		metrics.CoalescedWaiters.WithLabelValues("file").Inc()
	}
	if err != nil {
		return nil, err
	}
	return sliceRange(v.([]byte), offset, length), nil
}

// CacheStats returns the file cache counters.
func (e *Engine) CacheStats() cache.FileCacheStats {
	return e.files.Stats()
}

// dropSubtree retires a path that the remote reports gone, along with
// everything registered beneath it, and purges both cache tiers.
func (e *Engine) dropSubtree(path string) {
	if node, ok := e.reg.ByPath(path); ok {
		e.dirs.Invalidate(node.ID)
		e.files.Invalidate(node.ID)
	}
	for _, id := range e.reg.Remove(path) {
		e.dirs.Invalidate(id)
		e.files.Invalidate(id)
	}
}

// reconcileChildren applies a freshly fetched listing to the registry:
// new names are registered, refreshed names keep their IDs, and names
// the server no longer reports are dropped with their subtrees.
func (e *Engine) reconcileChildren(parentID uint64, parentDir string, entries []remote.Entry) {
	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		present[entry.Name] = true
		e.reg.Upsert(registry.ChildPath(parentDir, entry.Name), entry.IsDir, entry.Size, entry.ModTime)
	}

	if prev, _, ok := e.dirs.Get(parentID); ok {
		for _, old := range prev {
			if !present[old.Name] {
				e.dropSubtree(registry.ChildPath(parentDir, old.Name))
			}
		}
	}
}

func parentPath(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

func sliceRange(data []byte, offset, length int64) []byte {
	if offset >= int64(len(data)) {
		return nil
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end]
}
