// Package config loads process configuration from MACHINECORE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Archive drivers.
const (
	ArchiveNone   = "none"
	ArchiveFS     = "fs"
	ArchiveMemory = "memory"
	ArchiveS3     = "s3"
)

// Metrics exporters.
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
)

// S3 configures the s3 archive driver.
type S3 struct {
	Bucket       string `env:"BUCKET"`
	Region       string `env:"REGION" envDefault:"us-east-1"`
	Endpoint     string `env:"ENDPOINT"`
	UsePathStyle bool   `env:"USE_PATH_STYLE"`
	AccessKey    string `env:"ACCESS_KEY_ID"`
	SecretKey    string `env:"SECRET_ACCESS_KEY"`
	SessionToken string `env:"SESSION_TOKEN"`
}

// Config is the full process configuration.
type Config struct {
	StorageDriver string `env:"MACHINECORE_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string `env:"MACHINECORE_SQLITE_PATH"    envDefault:"./machinecore.db"`
	PostgresDSN   string `env:"MACHINECORE_POSTGRES_DSN"`

	ArchiveDriver string `env:"MACHINECORE_ARCHIVE_DRIVER"  envDefault:"fs"`
	ArchiveFSRoot string `env:"MACHINECORE_ARCHIVE_FS_ROOT" envDefault:"./archive"`
	S3            S3     `envPrefix:"MACHINECORE_ARCHIVE_S3_"`

	LogLevel  string `env:"MACHINECORE_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"MACHINECORE_LOG_FORMAT" envDefault:"json"`

	CacheSize        int    `env:"MACHINECORE_CACHE_SIZE"        envDefault:"1024"`
	SaveConcurrency  int    `env:"MACHINECORE_SAVE_CONCURRENCY"  envDefault:"4"`
	MetricsExporter  string `env:"MACHINECORE_METRICS_EXPORTER"  envDefault:"prometheus"`
	MetricsNamespace string `env:"MACHINECORE_METRICS_NAMESPACE" envDefault:"machinecore"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from vars instead of the process
// environment. Unset variables take their defaults.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.ArchiveDriver = strings.ToLower(strings.TrimSpace(cfg.ArchiveDriver))
	cfg.MetricsExporter = strings.ToLower(strings.TrimSpace(cfg.MetricsExporter))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and driver-specific requirements.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: sqlite driver requires MACHINECORE_SQLITE_PATH")
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("config: postgres driver requires MACHINECORE_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.StorageDriver)
	}
	switch c.ArchiveDriver {
	case ArchiveNone, ArchiveMemory:
	case ArchiveFS:
		if c.ArchiveFSRoot == "" {
			return fmt.Errorf("config: fs archive requires MACHINECORE_ARCHIVE_FS_ROOT")
		}
	case ArchiveS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: s3 archive requires MACHINECORE_ARCHIVE_S3_BUCKET")
		}
	default:
		return fmt.Errorf("config: unknown archive driver %q", c.ArchiveDriver)
	}
	switch c.MetricsExporter {
	case MetricsNone, MetricsPrometheus, MetricsExpvar:
	default:
		return fmt.Errorf("config: unknown metrics exporter %q", c.MetricsExporter)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("config: cache size must be positive, got %d", c.CacheSize)
	}
	if c.SaveConcurrency <= 0 {
		return fmt.Errorf("config: save concurrency must be positive, got %d", c.SaveConcurrency)
	}
	return nil
}

// Environ returns the MACHINECORE_* variables of the process environment,
// for logging effective configuration sources.
func Environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, "MACHINECORE_") {
			out[k] = v
		}
	}
	return out
}
