//go:build cgofuse
// +build cgofuse

package fuse

import (
	"context"
	"fmt"
	"runtime"

	"github.com/winfsp/cgofuse/fuse"
	"go.uber.org/zap"

	"github.com/remotefs/remotefs/internal/logging"
)

// Mount attaches the filesystem at the configured mount point and
// starts serving in the background.
func (f *CgoFuseFS) Mount(ctx context.Context) error {
	if f.mounted {
		return fmt.Errorf("filesystem is already mounted")
	}

	f.host = fuse.NewFileSystemHost(f)
	f.host.SetCapReaddirPlus(true)
	f.done = make(chan struct{})

	options := []string{"-o", "ro", "-o", "fsname=" + f.config.FSName}
	if f.config.AllowOther {
		options = append(options, "-o", "allow_other")
	}
	switch runtime.GOOS {
	case "darwin":
		options = append(options, "-o", "volname="+f.config.FSName)
	case "windows":
		options = append(options, "-o", "FileSystemName="+f.config.FSName)
	}

	go func() {
		defer close(f.done)
		if ok := f.host.Mount(f.config.MountPoint, options); !ok {
			logging.Error("mount failed",
				zap.String("mountpoint", f.config.MountPoint))
		}
	}()

	f.mounted = true
	logging.Info("filesystem mounted",
		zap.String("mountpoint", f.config.MountPoint),
		zap.String("fsname", f.config.FSName))
	return nil
}

// Unmount detaches the filesystem.
func (f *CgoFuseFS) Unmount() error {
	if !f.mounted || f.host == nil {
		return fmt.Errorf("filesystem is not mounted")
	}
	if ok := f.host.Unmount(); !ok {
		return fmt.Errorf("unmount failed for %s", f.config.MountPoint)
	}
	f.mounted = false
	logging.Info("filesystem unmounted", zap.String("mountpoint", f.config.MountPoint))
	return nil
}

// IsMounted reports whether the filesystem is currently attached.
func (f *CgoFuseFS) IsMounted() bool {
	return f.mounted
}

// Wait blocks until the FUSE host exits.
func (f *CgoFuseFS) Wait() {
	if f.done != nil {
		<-f.done
	}
}
