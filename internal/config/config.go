package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration is the complete mount-client configuration. It is built
// once at startup and handed by reference to every component; nothing
// reads configuration from globals.
type Configuration struct {
	Remote  RemoteConfig  `yaml:"remote"`
	Cache   CacheConfig   `yaml:"cache"`
	Mount   MountConfig   `yaml:"mount"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RemoteConfig configures the HTTP storage client.
type RemoteConfig struct {
	ServerURL      string        `yaml:"server_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CacheConfig configures both cache tiers.
type CacheConfig struct {
	DirTTL   time.Duration `yaml:"dir_ttl"`
	FileTTL  time.Duration `yaml:"file_ttl"`
	MaxBytes int64         `yaml:"max_bytes"`

	// NoCache disables freshness checks and storage on both tiers; every
	// operation issues a remote request.
	NoCache bool `yaml:"no_cache"`
}

// MountConfig configures the VFS binding.
type MountConfig struct {
	MountPoint string `yaml:"mount_point"`
	FSName     string `yaml:"fsname"`
	AllowOther bool   `yaml:"allow_other"`
	Debug      bool   `yaml:"debug"`

	AttrTimeout  time.Duration `yaml:"attr_timeout"`
	EntryTimeout time.Duration `yaml:"entry_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultMaxCacheBytes is the file-content cache ceiling when none is
// configured.
const DefaultMaxCacheBytes = 64 << 20

// NewDefault returns the configuration used when no file or flags are
// given.
func NewDefault() *Configuration {
	return &Configuration{
		Remote: RemoteConfig{
			ServerURL:      "http://127.0.0.1:8000",
			RequestTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			DirTTL:   5 * time.Second,
			FileTTL:  10 * time.Second,
			MaxBytes: DefaultMaxCacheBytes,
		},
		Mount: MountConfig{
			FSName:       "remotefs",
			AttrTimeout:  time.Second,
			EntryTimeout: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9815",
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Configuration, error) {
	cfg := NewDefault()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks for values the components cannot operate with.
func (c *Configuration) Validate() error {
	u, err := url.Parse(c.Remote.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", c.Remote.ServerURL)
	}
	if c.Remote.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.Remote.RequestTimeout)
	}
	if c.Cache.DirTTL < 0 {
		return fmt.Errorf("dir cache TTL must not be negative, got %v", c.Cache.DirTTL)
	}
	if c.Cache.FileTTL < 0 {
		return fmt.Errorf("file cache TTL must not be negative, got %v", c.Cache.FileTTL)
	}
	if c.Cache.MaxBytes <= 0 && !c.Cache.NoCache {
		return fmt.Errorf("cache size must be positive, got %d", c.Cache.MaxBytes)
	}
	if c.Mount.MountPoint == "" {
		return fmt.Errorf("mount point is required")
	}
	return nil
}
