// Package config loads routebook settings.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, a .env file in the working directory, then ROUTEBOOK_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "ROUTEBOOK"

// Durability profiles map onto PRAGMA synchronous.
const (
	DurabilityAuto   = "auto"
	DurabilityNormal = "normal"
	DurabilityFull   = "full"
	DurabilityExtra  = "extra"
)

// Config is the complete runtime configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Cache    CacheConfig    `yaml:"cache"`

	// Timezone is the IANA zone used for "today" and month boundaries.
	Timezone string `yaml:"timezone" envconfig:"ROUTEBOOK_TIMEZONE"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path             string        `yaml:"path" envconfig:"ROUTEBOOK_DB_PATH"`
	Durability       string        `yaml:"durability" envconfig:"ROUTEBOOK_DB_DURABILITY"`
	CacheSizeKiB     int           `yaml:"cache_size_kib" envconfig:"ROUTEBOOK_DB_CACHE_SIZE_KIB"`
	MmapSizeBytes    int64         `yaml:"mmap_size_bytes" envconfig:"ROUTEBOOK_DB_MMAP_SIZE_BYTES"`
	BusyTimeout      time.Duration `yaml:"busy_timeout" envconfig:"ROUTEBOOK_DB_BUSY_TIMEOUT"`
	TxTimeout        time.Duration `yaml:"tx_timeout" envconfig:"ROUTEBOOK_DB_TX_TIMEOUT"`
	MigrationTimeout time.Duration `yaml:"migration_timeout" envconfig:"ROUTEBOOK_DB_MIGRATION_TIMEOUT"`
	ExportTimeout    time.Duration `yaml:"export_timeout" envconfig:"ROUTEBOOK_DB_EXPORT_TIMEOUT"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"ROUTEBOOK_LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"ROUTEBOOK_LOG_FORMAT"` // "text" | "json"
}

// CacheConfig configures the aggregate cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" envconfig:"ROUTEBOOK_CACHE_TTL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path:             "./data/routebook.db",
			Durability:       DurabilityAuto,
			CacheSizeKiB:     16 * 1024,
			MmapSizeBytes:    256 << 20,
			BusyTimeout:      5 * time.Second,
			TxTimeout:        5 * time.Second,
			MigrationTimeout: 2 * time.Minute,
			ExportTimeout:    2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			TTL: 30 * time.Second,
		},
		Timezone: "Local",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), .env and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the store cannot honor.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config: database.path is required")
	}
	switch strings.ToLower(c.Database.Durability) {
	case DurabilityAuto, DurabilityNormal, DurabilityFull, DurabilityExtra:
	default:
		return fmt.Errorf("config: unknown durability %q", c.Database.Durability)
	}
	if c.Database.TxTimeout <= 0 {
		return errors.New("config: database.tx_timeout must be positive")
	}
	if c.Database.MigrationTimeout <= 0 {
		return errors.New("config: database.migration_timeout must be positive")
	}
	if c.Database.ExportTimeout <= 0 {
		return errors.New("config: database.export_timeout must be positive")
	}
	if c.Cache.TTL < 0 {
		return errors.New("config: cache.ttl must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Synchronous resolves the durability profile to a PRAGMA synchronous
// value. "auto" picks FULL on constrained hosts and NORMAL elsewhere.
func (d DatabaseConfig) Synchronous() string {
	switch strings.ToLower(d.Durability) {
	case DurabilityNormal:
		return "NORMAL"
	case DurabilityFull:
		return "FULL"
	case DurabilityExtra:
		return "EXTRA"
	default:
		if constrainedHost() {
			return "FULL"
		}
		return "NORMAL"
	}
}

var constrainedHost = func() bool {
	return runtime.NumCPU() <= 2 || strconv.IntSize == 32
}
