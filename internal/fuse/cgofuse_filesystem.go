//go:build cgofuse
// +build cgofuse

package fuse

import (
	"context"
	"errors"
	"strings"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/remotefs/remotefs/internal/engine"
	"github.com/remotefs/remotefs/internal/metrics"
	"github.com/remotefs/remotefs/internal/registry"
	"github.com/remotefs/remotefs/pkg/fserr"
)

// CgoFuseFS adapts the engine to the cgofuse path-based API for hosts
// served through WinFsp or macFUSE.
type CgoFuseFS struct {
	fuse.FileSystemBase

	engine *engine.Engine
	config *Config

	host    *fuse.FileSystemHost
	done    chan struct{}
	mounted bool
}

// NewCgoFuseFS creates a cgofuse-based filesystem served from eng.
func NewCgoFuseFS(eng *engine.Engine, config *Config) *CgoFuseFS {
	if config == nil {
		config = NewConfig("")
	}
	return &CgoFuseFS{engine: eng, config: config}
}

// errnoFor translates engine errors into cgofuse's negative errno
// convention.
func errnoFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, engine.ErrNotDirectory):
		return -fuse.ENOTDIR
	case errors.Is(err, engine.ErrIsDirectory):
		return -fuse.EISDIR
	case errors.Is(err, engine.ErrStaleHandle):
		return -fuse.ENOENT
	case fserr.IsNotFound(err):
		return -fuse.ENOENT
	case fserr.IsTimeout(err):
		return -fuse.ETIMEDOUT
	default:
		return -fuse.EIO
	}
}

// resolvePath walks a driver path like "/docs/a.txt" down from the root.
func (f *CgoFuseFS) resolvePath(path string) (registry.Node, error) {
	return f.engine.Walk(context.Background(), strings.Trim(path, "/"))
}

func (f *CgoFuseFS) fillStat(node registry.Node, stat *fuse.Stat_t) {
	stat.Ino = node.ID
	stat.Uid = f.config.UID
	stat.Gid = f.config.GID
	if node.IsDir {
		stat.Mode = fuse.S_IFDIR | f.config.DirMode
		stat.Nlink = 2
	} else {
		stat.Mode = fuse.S_IFREG | f.config.FileMode
		stat.Nlink = 1
		stat.Size = node.Size
	}
	if !node.ModTime.IsZero() {
		ts := fuse.NewTimespec(node.ModTime)
		stat.Mtim = ts
		stat.Ctim = ts
		stat.Atim = ts
	}
}

// Getattr returns attributes for path.
func (f *CgoFuseFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	metrics.FUSEOperations.WithLabelValues("getattr").Inc()

	node, err := f.resolvePath(path)
	if err != nil {
		return errnoFor(err)
	}
	attrs, err := f.engine.Attributes(context.Background(), node.ID)
	if err != nil {
		return errnoFor(err)
	}
	f.fillStat(attrs, stat)
	return 0
}

// Opendir opens a directory handle for path.
func (f *CgoFuseFS) Opendir(path string) (int, uint64) {
	node, err := f.resolvePath(path)
	if err != nil {
		return errnoFor(err), ^uint64(0)
	}
	if !node.IsDir {
		return -fuse.ENOTDIR, ^uint64(0)
	}
	return 0, node.ID
}

// Readdir lists the entries of the directory at path.
func (f *CgoFuseFS) Readdir(path string,
	fill func(name string, stat *fuse.Stat_t, ofst int64) bool,
	ofst int64, fh uint64) int {
	metrics.FUSEOperations.WithLabelValues("readdir").Inc()

	node, err := f.resolvePath(path)
	if err != nil {
		return errnoFor(err)
	}

	entries, err := f.engine.ListChildren(context.Background(), node.ID)
	if err != nil {
		return errnoFor(err)
	}

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, entry := range entries {
		var stat *fuse.Stat_t
		if child, ok := f.engine.ChildNode(node.ID, entry.Name); ok {
			stat = &fuse.Stat_t{}
			f.fillStat(child, stat)
		}
		if !fill(entry.Name, stat, 0) {
			break
		}
	}
	return 0
}

// Open opens a file handle for path. The mount is read-only.
func (f *CgoFuseFS) Open(path string, flags int) (int, uint64) {
	metrics.FUSEOperations.WithLabelValues("open").Inc()

	if flags&(fuse.O_WRONLY|fuse.O_RDWR) != 0 {
		return -fuse.EROFS, ^uint64(0)
	}

	node, err := f.resolvePath(path)
	if err != nil {
		return errnoFor(err), ^uint64(0)
	}
	if node.IsDir {
		return -fuse.EISDIR, ^uint64(0)
	}
	return 0, node.ID
}

// Read fills buff from the file at path starting at ofst.
func (f *CgoFuseFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	metrics.FUSEOperations.WithLabelValues("read").Inc()

	id := fh
	if id == 0 || id == ^uint64(0) {
		node, err := f.resolvePath(path)
		if err != nil {
			return errnoFor(err)
		}
		id = node.ID
	}

	data, err := f.engine.ReadAt(context.Background(), id, ofst, int64(len(buff)))
	if err != nil {
		return errnoFor(err)
	}
	return copy(buff, data)
}

// Release closes a file handle. No per-handle state is kept.
func (f *CgoFuseFS) Release(path string, fh uint64) int {
	return 0
}

// Releasedir closes a directory handle.
func (f *CgoFuseFS) Releasedir(path string, fh uint64) int {
	return 0
}
