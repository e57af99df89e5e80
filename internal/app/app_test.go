package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tubewave/internal/config"
	"github.com/iudanet/tubewave/internal/storage"
	"github.com/iudanet/tubewave/internal/storage/boltdb"
	"github.com/iudanet/tubewave/internal/storage/memory"
	"github.com/iudanet/tubewave/internal/storage/sqlstore"
	"github.com/iudanet/tubewave/internal/wave"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		check func(t *testing.T, s storage.Storage)
		name  string
		cfg   config.StorageConfig
	}{
		{
			name: "memory",
			cfg:  config.StorageConfig{Driver: config.DriverMemory},
			check: func(t *testing.T, s storage.Storage) {
				assert.IsType(t, &memory.Storage{}, s)
			},
		},
		{
			name: "bolt",
			cfg:  config.StorageConfig{Driver: config.DriverBolt, DSN: filepath.Join(dir, "waves.bolt")},
			check: func(t *testing.T, s storage.Storage) {
				assert.IsType(t, &boltdb.Storage{}, s)
			},
		},
		{
			name: "sqlite",
			cfg:  config.StorageConfig{Driver: config.DriverSQLite, DSN: filepath.Join(dir, "waves.db")},
			check: func(t *testing.T, s storage.Storage) {
				assert.IsType(t, &sqlstore.Storage{}, s)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenStorage(ctx, tt.cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = closeStore(s) })
			tt.check(t, s)
		})
	}

	_, err := OpenStorage(ctx, config.StorageConfig{Driver: "redis"})
	assert.Error(t, err)
}

func TestOpen_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: config.DriverBolt, DSN: filepath.Join(t.TempDir(), "waves.bolt")}

	tracker, closeFn, err := Open(ctx, cfg, testLogger())
	require.NoError(t, err)

	ok, err := tracker.UpdateSyncWave(ctx, "ns://db", []string{"ns://db/A"}, "ns://db/T", 8)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, closeFn(ctx))

	// после переоткрытия данные на месте
	tracker, closeFn, err = Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer func() { _ = closeFn(ctx) }()

	waves, err := tracker.LastWaves(ctx, "ns://db", []string{"ns://db/A"}, "ns://db/T")
	require.NoError(t, err)
	assert.Equal(t, int64(8), waves["ns://db/A"])
}

func TestGenerations_KeepsMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	var gens Generations

	tracker, closeFn, err := gens.Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	_, err = tracker.UpdateSyncWave(ctx, "ns://db", []string{"ns://db/A"}, "ns://db/T", 4)
	require.NoError(t, err)
	require.NoError(t, closeFn(ctx))

	// перезагрузка конфига с тем же драйвером
	cfg.LogLevel = "debug"
	tracker, closeFn, err = gens.Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	waves, err := tracker.LastWaves(ctx, "ns://db", []string{"ns://db/A"}, "ns://db/T")
	require.NoError(t, err)
	assert.Equal(t, int64(4), waves["ns://db/A"])
	require.NoError(t, closeFn(ctx))

	// смена драйвера сбрасывает память
	bolt := *cfg
	bolt.Storage = config.StorageConfig{Driver: config.DriverBolt, DSN: filepath.Join(t.TempDir(), "waves.bolt")}
	tracker, closeFn, err = gens.Open(ctx, &bolt, testLogger())
	require.NoError(t, err)
	waves, err = tracker.LastWaves(ctx, "ns://db", []string{"ns://db/A"}, "ns://db/T")
	require.NoError(t, err)
	assert.Equal(t, int64(0), waves["ns://db/A"])
	require.NoError(t, closeFn(ctx))

	tracker, closeFn, err = gens.Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer func() { _ = closeFn(ctx) }()
	waves, err = tracker.LastWaves(ctx, "ns://db", []string{"ns://db/A"}, "ns://db/T")
	require.NoError(t, err)
	assert.Equal(t, int64(0), waves["ns://db/A"])
}

func TestTrackerOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Cache = config.CacheConfig{Policy: config.PolicyLRU, Hard: 2}
	cfg.StrictMonotonic = true

	tracker := wave.New(memory.New(), testLogger(), TrackerOptions(cfg)...)

	for _, id := range []string{"1", "2", "3"} {
		assert.True(t, tracker.HasChange("ns://db/s:"+id, map[string]any{"v": id}))
	}
	assert.Equal(t, 2, tracker.Cache().Len("ns://db/s"))

	ctx := context.Background()
	_, err := tracker.UpdateSyncWave(ctx, "ns://db", []string{"ns://db/A"}, "ns://db/T", 5)
	require.NoError(t, err)
	ok, err := tracker.UpdateSyncWave(ctx, "ns://db", []string{"ns://db/A"}, "ns://db/T", 4)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, wave.ErrWaveRegression))
}
