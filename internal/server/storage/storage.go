// Package storage defines the backends the file server can serve from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/remotefs/remotefs/internal/remote"
)

// ErrNotFound reports that a path does not exist in the backend.
var ErrNotFound = errors.New("not found")

// Backend serves directory listings and file bytes for the HTTP
// handlers. Paths are slash-separated and relative to the backend
// root; the empty path is the root itself.
type Backend interface {
	List(ctx context.Context, path string) ([]remote.Entry, error)
	Stat(ctx context.Context, path string) (remote.Entry, error)
	// Read returns file content starting at offset. A length of -1
	// means until end of file. The returned size is the file's total
	// size regardless of the requested range.
	Read(ctx context.Context, path string, offset, length int64) (io.ReadCloser, int64, error)
}

// Local serves a directory tree on the local filesystem.
type Local struct {
	root string
}

// NewLocal creates a backend rooted at dir.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", abs)
	}
	return &Local{root: abs}, nil
}

// resolve maps a request path under the root, rejecting escapes.
func (l *Local) resolve(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", ErrNotFound
	}
	full := filepath.Join(l.root, filepath.FromSlash(path))
	if full != l.root && !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", ErrNotFound
	}
	return full, nil
}

func (l *Local) List(ctx context.Context, path string) ([]remote.Entry, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	entries := make([]remote.Entry, 0, len(dirents))
	for _, d := range dirents {
		info, err := d.Info()
		if err != nil {
			continue
		}
		entries = append(entries, remote.Entry{
			Name:    d.Name(),
			IsDir:   d.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

func (l *Local) Stat(ctx context.Context, path string) (remote.Entry, error) {
	full, err := l.resolve(path)
	if err != nil {
		return remote.Entry{}, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return remote.Entry{}, ErrNotFound
		}
		return remote.Entry{}, err
	}
	return remote.Entry{
		Name:    filepath.Base(full),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (l *Local) Read(ctx context.Context, path string, offset, length int64) (io.ReadCloser, int64, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, ErrNotFound
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, 0, err
		}
	}

	var rc io.ReadCloser = f
	if length >= 0 {
		rc = &limitReadCloser{Reader: io.LimitReader(f, length), closer: f}
	}
	return rc, info.Size(), nil
}

type limitReadCloser struct {
	io.Reader
	closer io.Closer
}

func (l *limitReadCloser) Close() error { return l.closer.Close() }
