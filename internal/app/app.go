// Package app wires a configured storage backend and wave tracker.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iudanet/tubewave/internal/config"
	"github.com/iudanet/tubewave/internal/storage"
	"github.com/iudanet/tubewave/internal/storage/boltdb"
	"github.com/iudanet/tubewave/internal/storage/memory"
	"github.com/iudanet/tubewave/internal/storage/sqlstore"
	"github.com/iudanet/tubewave/internal/wave"
)

// Closer is implemented by backends holding a file or connection
type Closer interface {
	Close() error
}

// OpenStorage opens the backend named by cfg.Driver
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.New(), nil
	case config.DriverBolt:
		return boltdb.New(ctx, cfg.DSN)
	case config.DriverSQLite:
		return sqlstore.New(ctx, sqlstore.DialectSQLite, cfg.DSN)
	case config.DriverPostgres:
		return sqlstore.New(ctx, sqlstore.DialectPostgres, cfg.DSN)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// TrackerOptions translates the config into tracker options
func TrackerOptions(cfg *config.Config) []wave.Option {
	opts := []wave.Option{wave.WithStrictMonotonic(cfg.StrictMonotonic)}
	switch cfg.Cache.Policy {
	case config.PolicyLRU:
		opts = append(opts, wave.WithEvictionPolicy(wave.NewLRUEviction(cfg.Cache.Hard)))
	default:
		opts = append(opts, wave.WithEvictionPolicy(wave.NewRandomEviction(cfg.Cache.Hard, cfg.Cache.Soft)))
	}
	return opts
}

// Open opens the configured storage and starts a tracker over it.
// The returned close function stops the tracker and releases the backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*wave.Tracker, func(context.Context) error, error) {
	store, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Info("Storage opened", "driver", cfg.Storage.Driver)
	return OpenTracker(ctx, cfg, store, logger)
}

// OpenTracker starts a tracker over an already opened store
func OpenTracker(ctx context.Context, cfg *config.Config, store storage.Storage, logger *slog.Logger) (*wave.Tracker, func(context.Context) error, error) {
	tracker := wave.New(store, logger, TrackerOptions(cfg)...)
	if err := tracker.Start(ctx); err != nil {
		closeStore(store)
		return nil, nil, fmt.Errorf("failed to start tracker: %w", err)
	}

	closeFn := func(ctx context.Context) error {
		if _, err := tracker.Save(ctx, false, true); err != nil {
			logger.Warn("Failed to flush storage", "error", err)
		}
		stopErr := tracker.Stop(ctx)
		if err := closeStore(store); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		return stopErr
	}
	return tracker, closeFn, nil
}

// Generations opens the storage of each server generation. An in-memory
// store survives config reloads while the driver stays memory; file and
// database backends are reopened from their DSN.
type Generations struct {
	mem *memory.Storage
}

// Open is app.Open that keeps the in-memory store of the previous generation
func (g *Generations) Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*wave.Tracker, func(context.Context) error, error) {
	if !isMemory(cfg.Storage.Driver) {
		if g.mem != nil {
			logger.Warn("Driver changed, in-memory waves discarded",
				"driver", cfg.Storage.Driver,
				"records", g.mem.Size())
			g.mem = nil
		}
		return Open(ctx, cfg, logger)
	}

	if g.mem == nil {
		g.mem = memory.New()
		logger.Info("Storage opened", "driver", config.DriverMemory)
	} else {
		logger.Info("Keeping in-memory storage across reload", "records", g.mem.Size())
	}
	return OpenTracker(ctx, cfg, g.mem, logger)
}

func isMemory(driver string) bool {
	return driver == config.DriverMemory || driver == ""
}

func closeStore(store storage.Storage) error {
	if c, ok := store.(Closer); ok {
		return c.Close()
	}
	return nil
}
