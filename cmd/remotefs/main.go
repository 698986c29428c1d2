// remotefs mounts a remote HTTP file store as a local read-only
// filesystem.
//
// Usage:
//
//	remotefs <mountpoint> [--server-url URL] [--dir-cache-ttl SEC]
//	         [--file-cache-ttl SEC] [--max-cache-mb MB] [--no-cache]
//	         [--daemon]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/remotefs/remotefs/internal/config"
	"github.com/remotefs/remotefs/internal/engine"
	"github.com/remotefs/remotefs/internal/fuse"
	"github.com/remotefs/remotefs/internal/logging"
	"github.com/remotefs/remotefs/internal/metrics"
	"github.com/remotefs/remotefs/internal/remote"
)

const daemonEnv = "REMOTEFS_DAEMONIZED"

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	serverURL := flag.String("server-url", "", "Remote file server base URL")
	dirTTL := flag.Float64("dir-cache-ttl", -1, "Directory cache TTL in seconds")
	fileTTL := flag.Float64("file-cache-ttl", -1, "File content cache TTL in seconds")
	maxCacheMB := flag.Int64("max-cache-mb", -1, "File content cache ceiling in MB")
	noCache := flag.Bool("no-cache", false, "Bypass all caching; every operation goes remote")
	daemon := flag.Bool("daemon", false, "Detach and run in the background")
	allowOther := flag.Bool("allow-other", false, "Allow other users to access the mount")
	debug := flag.Bool("debug", false, "Enable FUSE debug output")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (empty to disable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <mountpoint> [flags]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.NewDefault()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags override the file.
	cfg.Mount.MountPoint = flag.Arg(0)
	if *serverURL != "" {
		cfg.Remote.ServerURL = *serverURL
	}
	if *dirTTL >= 0 {
		cfg.Cache.DirTTL = time.Duration(*dirTTL * float64(time.Second))
	}
	if *fileTTL >= 0 {
		cfg.Cache.FileTTL = time.Duration(*fileTTL * float64(time.Second))
	}
	if *maxCacheMB >= 0 {
		cfg.Cache.MaxBytes = *maxCacheMB << 20
	}
	if *noCache {
		cfg.Cache.NoCache = true
	}
	if *allowOther {
		cfg.Mount.AllowOther = true
	}
	if *debug {
		cfg.Mount.Debug = true
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *daemon && os.Getenv(daemonEnv) == "" {
		if err := daemonize(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to daemonize: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := run(cfg); err != nil {
		logging.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Configuration) error {
	client := remote.NewClient(cfg.Remote.ServerURL, cfg.Remote.RequestTimeout)

	// An unreachable server at mount time is fatal; once mounted,
	// remote failures only fail individual operations.
	healthCtx, cancel := context.WithTimeout(context.Background(), cfg.Remote.RequestTimeout)
	err := client.Health(healthCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("remote server %s is not reachable: %w", cfg.Remote.ServerURL, err)
	}

	eng := engine.New(client, engine.Config{
		DirTTL:   cfg.Cache.DirTTL,
		FileTTL:  cfg.Cache.FileTTL,
		MaxBytes: cfg.Cache.MaxBytes,
		NoCache:  cfg.Cache.NoCache,
	})

	mountCfg := fuse.NewConfig(cfg.Mount.MountPoint)
	mountCfg.FSName = cfg.Mount.FSName
	mountCfg.AllowOther = cfg.Mount.AllowOther
	mountCfg.Debug = cfg.Mount.Debug
	if cfg.Mount.AttrTimeout > 0 {
		mountCfg.AttrTimeout = cfg.Mount.AttrTimeout
	}
	if cfg.Mount.EntryTimeout > 0 {
		mountCfg.EntryTimeout = cfg.Mount.EntryTimeout
	}

	manager := fuse.CreatePlatformMountManager(eng, mountCfg)
	if err := manager.Mount(context.Background()); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				logging.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	logging.Info("serving",
		zap.String("server", cfg.Remote.ServerURL),
		zap.String("mountpoint", cfg.Mount.MountPoint),
		zap.Bool("no_cache", cfg.Cache.NoCache))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		manager.Wait()
		close(done)
	}()

	select {
	case sig := <-sigCh:
		logging.Info("signal received, unmounting", zap.String("signal", sig.String()))
		if err := manager.Unmount(); err != nil {
			return err
		}
	case <-done:
		// Unmounted externally (e.g. fusermount -u).
	}

	stats := eng.CacheStats()
	logging.Info("cache totals",
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses),
		zap.Uint64("evictions", stats.Evictions),
		zap.Int64("resident_bytes", stats.Size))
	return nil
}

