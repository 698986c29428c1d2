//go:build !cgofuse
// +build !cgofuse

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

// CreatePlatformMountManager builds the go-fuse mount manager used on
// Linux and macOS.
func CreatePlatformMountManager(eng *engine.Engine, config *Config) PlatformFileSystem {
	return NewMountManager(NewFileSystem(eng, config), config)
}
