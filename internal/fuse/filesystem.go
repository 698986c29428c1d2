//go:build !cgofuse
// +build !cgofuse

package fuse

import (
	"context"
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/remotefs/remotefs/internal/engine"
	"github.com/remotefs/remotefs/internal/metrics"
	"github.com/remotefs/remotefs/internal/registry"
	"github.com/remotefs/remotefs/pkg/fserr"
)

// FileSystem adapts the engine to the go-fuse node API. It holds no
// cache state of its own.
type FileSystem struct {
	engine *engine.Engine
	config *Config
}

// NewFileSystem creates a filesystem served from eng.
func NewFileSystem(eng *engine.Engine, config *Config) *FileSystem {
	if config == nil {
		config = NewConfig("")
	}
	return &FileSystem{engine: eng, config: config}
}

// Root returns the root node embedder for mounting.
func (f *FileSystem) Root() fs.InodeEmbedder {
	return &remoteNode{fsys: f, id: registry.RootID}
}

// errnoFor translates engine errors into the driver's errno convention.
func errnoFor(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, engine.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, engine.ErrIsDirectory):
		return syscall.EISDIR
	case errors.Is(err, engine.ErrStaleHandle):
		return syscall.ESTALE
	case fserr.IsNotFound(err):
		return syscall.ENOENT
	case fserr.IsTimeout(err):
		return syscall.ETIMEDOUT
	default:
		return syscall.EIO
	}
}

func (f *FileSystem) statMode(node registry.Node) uint32 {
	if node.IsDir {
		return syscall.S_IFDIR | f.config.DirMode
	}
	return syscall.S_IFREG | f.config.FileMode
}

func (f *FileSystem) fillAttr(node registry.Node, out *fuse.Attr) {
	out.Ino = node.ID
	out.Mode = f.statMode(node)
	out.Size = uint64(node.Size)
	out.Uid = f.config.UID
	out.Gid = f.config.GID
	if node.IsDir {
		out.Nlink = 2
	} else {
		out.Nlink = 1
	}
	if !node.ModTime.IsZero() {
		mtime := uint64(node.ModTime.Unix())
		out.Mtime = mtime
		out.Ctime = mtime
		out.Atime = mtime
	}
}

// remoteNode is one inode in the mounted tree. All state lives in the
// engine; the node carries only its identifier.
type remoteNode struct {
	fs.Inode
	fsys *FileSystem
	id   uint64
}

var (
	_ fs.NodeLookuper  = (*remoteNode)(nil)
	_ fs.NodeGetattrer = (*remoteNode)(nil)
	_ fs.NodeReaddirer = (*remoteNode)(nil)
	_ fs.NodeOpener    = (*remoteNode)(nil)
	_ fs.NodeReader    = (*remoteNode)(nil)
	_ fs.NodeSetattrer = (*remoteNode)(nil)
)

func (n *remoteNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	metrics.FUSEOperations.WithLabelValues("lookup").Inc()

	child, err := n.fsys.engine.Resolve(ctx, n.id, name)
	if err != nil {
		return nil, errnoFor(err)
	}

	n.fsys.fillAttr(child, &out.Attr)
	mode := uint32(syscall.S_IFREG)
	if child.IsDir {
		mode = syscall.S_IFDIR
	}
	stable := fs.StableAttr{Mode: mode, Ino: child.ID}
	return n.NewInode(ctx, &remoteNode{fsys: n.fsys, id: child.ID}, stable), 0
}

func (n *remoteNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	metrics.FUSEOperations.WithLabelValues("getattr").Inc()

	node, err := n.fsys.engine.Attributes(ctx, n.id)
	if err != nil {
		return errnoFor(err)
	}
	n.fsys.fillAttr(node, &out.Attr)
	return 0
}

func (n *remoteNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	metrics.FUSEOperations.WithLabelValues("readdir").Inc()

	entries, err := n.fsys.engine.ListChildren(ctx, n.id)
	if err != nil {
		return nil, errnoFor(err)
	}

	dirents := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		mode := uint32(syscall.S_IFREG)
		if entry.IsDir {
			mode = syscall.S_IFDIR
		}
		dirent := fuse.DirEntry{Name: entry.Name, Mode: mode}
		if child, ok := n.fsys.engine.ChildNode(n.id, entry.Name); ok {
			dirent.Ino = child.ID
		}
		dirents = append(dirents, dirent)
	}
	return fs.NewListDirStream(dirents), 0
}

func (n *remoteNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	metrics.FUSEOperations.WithLabelValues("open").Inc()

	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, 0, 0
}

func (n *remoteNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	metrics.FUSEOperations.WithLabelValues("read").Inc()

	data, err := n.fsys.engine.ReadAt(ctx, n.id, off, int64(len(dest)))
	if err != nil {
		return nil, errnoFor(err)
	}
	return fuse.ReadResultData(data), 0
}

func (n *remoteNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}
