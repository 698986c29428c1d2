//go:build cgofuse
// +build cgofuse

package fuse

import (
	"context"

	"github.com/remotefs/remotefs/internal/engine"
)

// PlatformFileSystem is the mount lifecycle surface shared by both
// driver bindings.
type PlatformFileSystem interface {
	Mount(ctx context.Context) error
	Unmount() error
	IsMounted() bool
	Wait()
}

// CreatePlatformMountManager builds the cgofuse-based filesystem used
// with WinFsp and macFUSE.
func CreatePlatformMountManager(eng *engine.Engine, config *Config) PlatformFileSystem {
	return NewCgoFuseFS(eng, config)
}
