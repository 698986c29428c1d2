//go:build !cgofuse
// +build !cgofuse

package fuse

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"

	"github.com/remotefs/remotefs/internal/logging"
)

// MountManager owns the FUSE server lifecycle for the go-fuse binding.
type MountManager struct {
	filesystem *FileSystem
	config     *Config
	server     *fuse.Server
	mounted    bool
}

// NewMountManager creates a mount manager for filesystem.
func NewMountManager(filesystem *FileSystem, config *Config) *MountManager {
	return &MountManager{filesystem: filesystem, config: config}
}

// Mount attaches the filesystem at the configured mount point and
// starts serving in the background.
func (m *MountManager) Mount(ctx context.Context) error {
	if m.mounted {
		return fmt.Errorf("filesystem is already mounted")
	}
	if err := m.validateMountPoint(); err != nil {
		return fmt.Errorf("invalid mount point: %w", err)
	}

	server, err := fs.Mount(m.config.MountPoint, m.filesystem.Root(), m.buildFUSEOptions())
	if err != nil {
		return fmt.Errorf("mounting filesystem: %w", err)
	}
	m.server = server
	m.mounted = true

	logging.Info("filesystem mounted",
		zap.String("mountpoint", m.config.MountPoint),
		zap.String("fsname", m.config.FSName))
	return nil
}

// Unmount detaches the filesystem. A busy mount is retried lazily.
func (m *MountManager) Unmount() error {
	if !m.mounted || m.server == nil {
		return fmt.Errorf("filesystem is not mounted")
	}

	if err := m.server.Unmount(); err != nil {
		logging.Warn("unmount failed, forcing detach", zap.Error(err))
		if forceErr := m.forceUnmount(); forceErr != nil {
			return fmt.Errorf("unmount failed: %w (forced detach also failed: %v)", err, forceErr)
		}
	}

	m.mounted = false
	m.server = nil
	logging.Info("filesystem unmounted", zap.String("mountpoint", m.config.MountPoint))
	return nil
}

// IsMounted reports whether the filesystem is currently attached.
func (m *MountManager) IsMounted() bool {
	return m.mounted
}

// Wait blocks until the FUSE server exits.
func (m *MountManager) Wait() {
	if m.server != nil {
		m.server.Wait()
	}
}

func (m *MountManager) validateMountPoint() error {
	if m.config.MountPoint == "" {
		return fmt.Errorf("mount point cannot be empty")
	}

	info, err := os.Stat(m.config.MountPoint)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("mount point does not exist: %s", m.config.MountPoint)
		}
		return fmt.Errorf("cannot access mount point: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mount point is not a directory: %s", m.config.MountPoint)
	}
	return nil
}

func (m *MountManager) buildFUSEOptions() *fs.Options {
	attrTimeout := m.config.AttrTimeout
	entryTimeout := m.config.EntryTimeout

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:       m.config.FSName,
			FsName:     m.config.FSName,
			Debug:      m.config.Debug,
			AllowOther: m.config.AllowOther,
		},
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
	}
	opts.Options = append(opts.Options, "ro")
	return opts
}

func (m *MountManager) forceUnmount() error {
	if err := syscall.Unmount(m.config.MountPoint, 2); err == nil {
		return nil
	}
	return syscall.Unmount(m.config.MountPoint, 1)
}
