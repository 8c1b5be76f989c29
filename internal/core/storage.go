package core

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"machinecore/internal/archive"
	"machinecore/internal/config"
	"machinecore/internal/infra/persistence/memory"
	"machinecore/internal/infra/persistence/postgres"
	"machinecore/internal/infra/persistence/sqlite"
)

// OpenStateStore selects a state store backend from cfg.
//
//	MACHINECORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	MACHINECORE_SQLITE_PATH: path to sqlite file (default ./machinecore.db)
//	MACHINECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenStateStore(ctx context.Context, cfg config.Config) (StateStore, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return memory.NewStore(), nil
	case config.StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

// OpenArchiver builds an archiver over the backend selected by cfg. It
// returns (nil, nil) when archiving is disabled.
func OpenArchiver(ctx context.Context, cfg config.Config, clk clock.Clock) (*archive.Archiver, error) {
	store, err := archive.Open(ctx, cfg)
	if err != nil || store == nil {
		return nil, err
	}
	return archive.NewArchiver(store, archive.WithClock(clk))
}

// Open builds a service with the state store, archiver, logger and metrics
// exporter selected by cfg. opts are applied after the configured ones.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	logger, _, err := NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("open logger: %w", err)
	}
	recorder, err := NewMetricsRecorder(cfg)
	if err != nil {
		return nil, fmt.Errorf("open metrics: %w", err)
	}
	store, err := OpenStateStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	archiver, err := OpenArchiver(ctx, cfg, clock.New())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	base := []Option{
		WithLogger(logger),
		WithMetricsRecorder(recorder),
		WithStateStore(store),
		WithArchiver(archiver),
		WithCacheSize(cfg.CacheSize),
		WithSaveConcurrency(cfg.SaveConcurrency),
	}
	svc, err := NewService(append(base, opts...)...)
	if err != nil {
		_ = store.Close()
		if archiver != nil {
			_ = archiver.Close()
		}
		return nil, err
	}
	return svc, nil
}
