package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"zimg/pkg/configutil"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zimg.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	imgDir := t.TempDir()
	t.Setenv("IMG_PATH", imgDir)

	cfg, err := LoadFromEnvOrFile("")
	if err != nil {
		t.Fatalf("LoadFromEnvOrFile: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 4869 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Shard.Level1Buckets != 1024 || cfg.Shard.Level2Buckets != 1024 {
		t.Fatalf("unexpected shard defaults: %+v", cfg.Shard)
	}
	if cfg.Cache.MaxEntrySize != 1<<20 {
		t.Fatalf("unexpected per-entry limit: %d", cfg.Cache.MaxEntrySize)
	}
	if cfg.Cache.Capacity != 256<<20 {
		t.Fatalf("unexpected capacity: %d", cfg.Cache.Capacity)
	}
	if cfg.Image.JPEGQuality != 75 {
		t.Fatalf("unexpected jpeg quality: %d", cfg.Image.JPEGQuality)
	}
	if cfg.Server.ShutdownTimeout.Duration != 30*time.Second {
		t.Fatalf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadFromEnvOrFileLegacyEnv(t *testing.T) {
	imgDir := t.TempDir()

	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9091")
	t.Setenv("IMG_PATH", imgDir)
	t.Setenv("ROOT_PATH", "/srv/index.html")
	t.Setenv("CACHE_MAX_SIZE", "400kb")
	t.Setenv("CACHE_CAPACITY", "64mb")
	t.Setenv("STATS_INTERVAL", "10m")
	t.Setenv("JPEG_QUALITY", "80")
	t.Setenv("GOMAXPROCS", "6")
	t.Setenv("VIPS_CONCURRENCY", "5")

	cfg, err := LoadFromEnvOrFile("")
	if err != nil {
		t.Fatalf("LoadFromEnvOrFile: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9091 {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.ImgPath != imgDir || cfg.Storage.RootPath != "/srv/index.html" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Cache.MaxEntrySize != 400<<10 || cfg.Cache.Capacity != 64<<20 {
		t.Fatalf("unexpected cache sizes: %+v", cfg.Cache)
	}
	if cfg.Cache.StatsInterval.Duration != 10*time.Minute {
		t.Fatalf("unexpected stats interval: %s", cfg.Cache.StatsInterval)
	}
	if cfg.Image.JPEGQuality != 80 {
		t.Fatalf("unexpected jpeg quality: %d", cfg.Image.JPEGQuality)
	}
	if cfg.Runtime.GOMAXPROCS != 6 || cfg.Runtime.VIPSConcurrency != 5 {
		t.Fatalf("unexpected runtime config: %+v", cfg.Runtime)
	}
}

func TestLoadFromEnvOrFileWithPrefixedKeys(t *testing.T) {
	imgDir := t.TempDir()

	t.Setenv("ZIMG_SERVER__HOST", "0.0.0.0")
	t.Setenv("ZIMG_SERVER__PORT", "8085")
	t.Setenv("ZIMG_STORAGE__IMG_PATH", imgDir)
	t.Setenv("ZIMG_SHARD__LEVEL1_BUCKETS", "512")
	t.Setenv("ZIMG_SHARD__LEVEL2_BUCKETS", "256")
	t.Setenv("ZIMG_CACHE__MAX_ENTRY_SIZE", "2mb")
	t.Setenv("ZIMG_CACHE__STATS_INTERVAL", "1h30m")
	t.Setenv("ZIMG_RUNTIME__GOMAXPROCS", "3")

	cfg, err := LoadFromEnvOrFile("")
	if err != nil {
		t.Fatalf("LoadFromEnvOrFile: %v", err)
	}
	if cfg.Server.Port != 8085 {
		t.Fatalf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Storage.ImgPath != imgDir {
		t.Fatalf("unexpected img path: %s", cfg.Storage.ImgPath)
	}
	if cfg.Shard.Level1Buckets != 512 || cfg.Shard.Level2Buckets != 256 {
		t.Fatalf("unexpected shard config: %+v", cfg.Shard)
	}
	if cfg.Cache.MaxEntrySize != 2<<20 {
		t.Fatalf("unexpected per-entry limit: %d", cfg.Cache.MaxEntrySize)
	}
	if cfg.Cache.StatsInterval.Duration != 90*time.Minute {
		t.Fatalf("unexpected stats interval: %s", cfg.Cache.StatsInterval)
	}
	if cfg.Runtime.GOMAXPROCS != 3 {
		t.Fatalf("unexpected GOMAXPROCS: %d", cfg.Runtime.GOMAXPROCS)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	imgDir := t.TempDir()
	path := writeConfigFile(t, fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: 4869
  shutdown_timeout: 1m
storage:
  img_path: %q
shard:
  level1_buckets: 128
  level2_buckets: 128
cache:
  max_entry_size: 512kb
  capacity: 32mb
image:
  jpeg_quality: 70
`, filepath.ToSlash(imgDir)))

	cfg, err := LoadFromEnvOrFile(path)
	if err != nil {
		t.Fatalf("LoadFromEnvOrFile: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("unexpected host: %s", cfg.Server.Host)
	}
	if cfg.Server.ShutdownTimeout.Duration != time.Minute {
		t.Fatalf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Shard.Level1Buckets != 128 {
		t.Fatalf("unexpected shard buckets: %+v", cfg.Shard)
	}
	if cfg.Cache.MaxEntrySize != 512<<10 || cfg.Cache.Capacity != 32<<20 {
		t.Fatalf("unexpected cache sizes: %+v", cfg.Cache)
	}
	if cfg.Image.JPEGQuality != 70 {
		t.Fatalf("unexpected jpeg quality: %d", cfg.Image.JPEGQuality)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	imgDir := t.TempDir()
	base := func() *Config {
		return &Config{
			Server:  ServerConfig{Host: "0.0.0.0", Port: 4869},
			Storage: StorageConfig{ImgPath: imgDir},
			Shard:   ShardConfig{Level1Buckets: 1024, Level2Buckets: 1024},
			Cache:   CacheConfig{MaxEntrySize: 1 << 20, Capacity: 256 << 20},
			Image:   ImageConfig{JPEGQuality: 75},
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"missing img path", func(c *Config) { c.Storage.ImgPath = "" }},
		{"nonexistent img path", func(c *Config) { c.Storage.ImgPath = filepath.Join(imgDir, "missing") }},
		{"zero buckets", func(c *Config) { c.Shard.Level1Buckets = 0 }},
		{"zero entry limit", func(c *Config) { c.Cache.MaxEntrySize = 0 }},
		{"quality out of range", func(c *Config) { c.Image.JPEGQuality = 101 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"42", 42},
		{"400kb", 400 << 10},
		{"2mb", 2 << 20},
		{"3GB", 3 << 30},
		{"5MiB", 5 << 20},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			size, err := configutil.ParseByteSize(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if size != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, size)
			}
		})
	}
	if _, err := configutil.ParseByteSize("12foobar"); err == nil {
		t.Fatalf("expected error for invalid unit")
	}
}

func TestParseFlexibleDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"0", 0},
		{"", 0},
		{"30d", 30 * 24 * time.Hour},
		{"1d12h", (24 + 12) * time.Hour},
		{"2h30m", 2*time.Hour + 30*time.Minute},
		{"45m10s", 45*time.Minute + 10*time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			dur, err := configutil.ParseFlexibleDuration(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dur != tt.expected {
				t.Fatalf("expected %s, got %s", tt.expected, dur)
			}
		})
	}
	if _, err := configutil.ParseFlexibleDuration("banana"); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
