// Package fuse binds the caching engine to the host filesystem driver.
// Two bindings exist: the default hanwen/go-fuse binding for Linux and
// macOS, and a cgofuse binding (build tag "cgofuse") for WinFsp.
package fuse

import (
	"os"
	"time"
)

// Config carries mount options common to both driver bindings.
type Config struct {
	MountPoint   string
	FSName       string
	AllowOther   bool
	Debug        bool
	AttrTimeout  time.Duration
	EntryTimeout time.Duration

	UID      uint32
	GID      uint32
	FileMode uint32
	DirMode  uint32
}

// NewConfig returns mount options with the current user's identity and
// conventional read-only permission bits.
func NewConfig(mountPoint string) *Config {
	return &Config{
		MountPoint:   mountPoint,
		FSName:       "remotefs",
		AttrTimeout:  time.Second,
		EntryTimeout: time.Second,
		UID:          safeIntToUint32(os.Getuid()),
		GID:          safeIntToUint32(os.Getgid()),
		FileMode:     0644,
		DirMode:      0755,
	}
}

func safeIntToUint32(i int) uint32 {
	if i < 0 {
		return 0
	}
	if i > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(i)
}
