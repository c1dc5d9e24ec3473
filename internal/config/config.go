// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"zimg/pkg/configutil"
)

// envPrefix introduces structured overrides such as ZIMG_SERVER__PORT.
const envPrefix = "ZIMG_"

// legacyEnvKeys maps flat environment names kept for compatibility with the
// original deployment scripts onto structured keys.
var legacyEnvKeys = map[string]string{
	"HOST":             "server.host",
	"PORT":             "server.port",
	"IMG_PATH":         "storage.img_path",
	"ROOT_PATH":        "storage.root_path",
	"CACHE_MAX_SIZE":   "cache.max_entry_size",
	"CACHE_CAPACITY":   "cache.capacity",
	"STATS_INTERVAL":   "cache.stats_interval",
	"JPEG_QUALITY":     "image.jpeg_quality",
	"GOMAXPROCS":       "runtime.gomaxprocs",
	"VIPS_CONCURRENCY": "runtime.vips_concurrency",
}

// Config represents the full service configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Shard   ShardConfig
	Cache   CacheConfig
	Image   ImageConfig
	Runtime RuntimeConfig
}

// ServerConfig describes HTTP server binding parameters.
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout Duration
}

// Address returns the server listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig locates the sharded image root and the welcome page.
type StorageConfig struct {
	// ImgPath is the root of the sharded content-addressed tree.
	ImgPath string
	// RootPath is an optional HTML file served at "/". A built-in page is
	// used when empty or unreadable.
	RootPath string
}

// ShardConfig sets the bucket ranges of the two directory fan-out levels.
// Changing them orphans previously stored images, so they are fixed per
// deployment.
type ShardConfig struct {
	Level1Buckets int
	Level2Buckets int
}

// CacheConfig bounds the in-memory hot cache.
type CacheConfig struct {
	// MaxEntrySize rejects blobs at or above this many bytes.
	MaxEntrySize int64
	// Capacity is the total LRU budget in bytes; 0 disables eviction.
	Capacity int64
	// StatsInterval is the period of the stats log line; 0 disables it.
	StatsInterval Duration
}

// ImageConfig holds encoding parameters.
type ImageConfig struct {
	JPEGQuality int
}

// RuntimeConfig tunes the Go runtime and libvips worker pool.
type RuntimeConfig struct {
	GOMAXPROCS      int
	VIPSConcurrency int
}

// Duration wraps time.Duration for values like "30d" or "10m".
type Duration struct {
	time.Duration
}

// LoadFromEnvOrFile builds the configuration from defaults, the optional YAML
// file at path, and environment overrides.
func LoadFromEnvOrFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if strings.TrimSpace(path) != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	legacy := map[string]interface{}{}
	for name, key := range legacyEnvKeys {
		if value, ok := os.LookupEnv(name); ok {
			legacy[key] = value
		}
	}
	if len(legacy) > 0 {
		if err := k.Load(confmap.Provider(legacy, "."), nil); err != nil {
			return nil, fmt.Errorf("load env overrides: %w", err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg, err := fromKoanf(k)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func transformEnvKey(name string) string {
	name = strings.TrimPrefix(name, envPrefix)
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, "__", ".")
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":              "0.0.0.0",
		"server.port":              4869,
		"server.shutdown_timeout":  "30s",
		"storage.img_path":         "./img",
		"storage.root_path":        "",
		"shard.level1_buckets":     1024,
		"shard.level2_buckets":     1024,
		"cache.max_entry_size":     "1mb",
		"cache.capacity":           "256mb",
		"cache.stats_interval":     "0",
		"image.jpeg_quality":       75,
		"runtime.gomaxprocs":       0,
		"runtime.vips_concurrency": 0,
	}
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Storage: StorageConfig{
			ImgPath:  k.String("storage.img_path"),
			RootPath: k.String("storage.root_path"),
		},
		Shard: ShardConfig{
			Level1Buckets: k.Int("shard.level1_buckets"),
			Level2Buckets: k.Int("shard.level2_buckets"),
		},
		Image: ImageConfig{
			JPEGQuality: k.Int("image.jpeg_quality"),
		},
		Runtime: RuntimeConfig{
			GOMAXPROCS:      k.Int("runtime.gomaxprocs"),
			VIPSConcurrency: k.Int("runtime.vips_concurrency"),
		},
	}

	var err error
	if cfg.Server.ShutdownTimeout, err = durationKey(k, "server.shutdown_timeout"); err != nil {
		return nil, err
	}
	if cfg.Cache.StatsInterval, err = durationKey(k, "cache.stats_interval"); err != nil {
		return nil, err
	}
	if cfg.Cache.MaxEntrySize, err = sizeKey(k, "cache.max_entry_size"); err != nil {
		return nil, err
	}
	if cfg.Cache.Capacity, err = sizeKey(k, "cache.capacity"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func durationKey(k *koanf.Koanf, key string) (Duration, error) {
	raw := strings.TrimSpace(k.String(key))
	d, err := configutil.ParseFlexibleDuration(raw)
	if err != nil {
		return Duration{}, fmt.Errorf("config %s: %w", key, err)
	}
	return Duration{d}, nil
}

func sizeKey(k *koanf.Koanf, key string) (int64, error) {
	size, err := configutil.ParseByteSize(k.String(key))
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return size, nil
}

// Validate returns an error if required configuration values are missing or
// invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Host) == "" {
		return errors.New("server.host must be set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Storage.ImgPath) == "" {
		return errors.New("storage.img_path must be set")
	}
	if err := ensureDirExists(c.Storage.ImgPath); err != nil {
		return fmt.Errorf("validate storage.img_path: %w", err)
	}
	if c.Shard.Level1Buckets <= 0 || c.Shard.Level2Buckets <= 0 {
		return errors.New("shard bucket ranges must be positive")
	}
	if c.Cache.MaxEntrySize <= 0 {
		return errors.New("cache.max_entry_size must be positive")
	}
	if c.Cache.Capacity < 0 {
		return errors.New("cache.capacity must be non-negative")
	}
	if c.Image.JPEGQuality <= 0 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be within 1-100, got %d", c.Image.JPEGQuality)
	}
	return nil
}

func ensureDirExists(path string) error {
	sanitized := strings.TrimSpace(path)
	if sanitized == "" {
		return errors.New("path cannot be empty")
	}
	info, err := os.Stat(sanitized)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path %s does not exist", sanitized)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path %s is not a directory", sanitized)
	}
	return nil
}
