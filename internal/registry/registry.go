// Package registry maintains the mapping between remote paths and
// stable inode IDs for the lifetime of a mount.
package registry

import (
	"strings"
	"sync"
	"time"
)

// RootID is the inode ID of the mount root.
const RootID uint64 = 1

// Node is a known filesystem object. Fields other than ID and Path are
// a snapshot of the most recently observed remote attributes.
type Node struct {
	ID      uint64
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Registry allocates inode IDs and resolves them against remote paths.
// IDs are never reused within a mount's lifetime.
type Registry struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*Node
	byPath map[string]uint64
}

// New creates a registry seeded with the root directory at the empty
// path.
func New() *Registry {
	r := &Registry{
		nextID: RootID + 1,
		byID:   make(map[uint64]*Node),
		byPath: make(map[string]uint64),
	}
	root := &Node{ID: RootID, Path: "", IsDir: true}
	r.byID[RootID] = root
	r.byPath[""] = RootID
	return r
}

// ChildPath joins a parent path with an entry name.
func ChildPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// ByID returns the node with the given inode ID.
func (r *Registry) ByID(id uint64) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byID[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// ByPath returns the node registered at path.
func (r *Registry) ByPath(path string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPath[path]
	if !ok {
		return Node{}, false
	}
	return *r.byID[id], true
}

// Upsert registers path if it is new, or refreshes its attributes if it
// is already known. The node keeps its original ID across refreshes.
func (r *Registry) Upsert(path string, isDir bool, size int64, modTime time.Time) Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPath[path]; ok {
		n := r.byID[id]
		n.IsDir = isDir
		n.Size = size
		n.ModTime = modTime
		return *n
	}

	n := &Node{
		ID:      r.nextID,
		Path:    path,
		IsDir:   isDir,
		Size:    size,
		ModTime: modTime,
	}
	r.nextID++
	r.byID[n.ID] = n
	r.byPath[path] = n.ID
	return *n
}

// Remove drops the node at path and every node beneath it. Removed IDs
// are retired, not recycled. The root cannot be removed. It returns the
// IDs that were dropped.
func (r *Registry) Remove(path string) []uint64 {
	if path == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := path + "/"
	var removed []uint64
	for p, id := range r.byPath {
		if p == path || strings.HasPrefix(p, prefix) {
			removed = append(removed, id)
			delete(r.byPath, p)
			delete(r.byID, id)
		}
	}
	return removed
}

// Len reports how many nodes are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
