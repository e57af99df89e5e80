// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tubewave/internal/storage"
)

const (
	syncURI     = "ns://db/TubeSync"
	snapshotURI = "ns://db/TubeSnapshot"
)

// Run executes the shared backend checks against storages created by newStorage
func Run(t *testing.T, newStorage func(t *testing.T) storage.Storage) {
	t.Run("QueryEmpty", func(t *testing.T) {
		s := newStorage(t)
		rows, err := s.Query(context.Background(), syncURI, storage.Params{"source": "ns://db/A"})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("PutGeneratesID", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		stored, err := s.Put(ctx, syncURI, storage.Record{"source": "ns://db/A", "target": "ns://db/T", "wave": 5})
		require.NoError(t, err)
		require.NotEmpty(t, stored.ID())

		rows, err := s.Query(ctx, syncURI, storage.Params{"source": "ns://db/A", "target": "ns://db/T"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, stored.ID(), rows[0].ID())
		assert.Equal(t, int64(5), rows[0]["wave"])
	})

	t.Run("PutKeepsGivenID", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		stored, err := s.Put(ctx, syncURI, storage.Record{"id": "fixed", "wave": 1})
		require.NoError(t, err)
		assert.Equal(t, "fixed", stored.ID())

		_, err = s.Put(ctx, syncURI, storage.Record{"id": "fixed", "wave": 2})
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("UpdateInPlace", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		stored, err := s.Put(ctx, syncURI, storage.Record{"source": "ns://db/A", "target": "ns://db/T", "wave": 5})
		require.NoError(t, err)

		stored["wave"] = 7
		_, err = s.Update(ctx, syncURI, stored)
		require.NoError(t, err)

		rows, err := s.Query(ctx, syncURI, storage.Params{"source": "ns://db/A"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(7), rows[0]["wave"])
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		_, err := s.Update(ctx, syncURI, storage.Record{"id": "ghost", "wave": 1})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = s.Update(ctx, syncURI, storage.Record{"wave": 1})
		assert.ErrorIs(t, err, storage.ErrMissingID)
	})

	t.Run("TablesAreIsolated", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		_, err := s.Put(ctx, syncURI, storage.Record{"wave": 1})
		require.NoError(t, err)
		_, err = s.Put(ctx, "other://db/TubeSync", storage.Record{"wave": 2})
		require.NoError(t, err)
		_, err = s.Put(ctx, "ns://db/TubeSyncExtra", storage.Record{"wave": 3})
		require.NoError(t, err)

		rows, err := s.Query(ctx, syncURI, nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(1), rows[0]["wave"])
	})

	t.Run("OrderDirectionLimit", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		for _, wave := range []int{3, 9, 1, 7} {
			_, err := s.Put(ctx, snapshotURI, storage.Record{"target": "ns://db/T", "wave": wave})
			require.NoError(t, err)
		}

		rows, err := s.Query(ctx, snapshotURI, storage.Params{
			"target":               "ns://db/T",
			storage.ParamOrder:     "wave",
			storage.ParamDirection: storage.DirectionDesc,
			storage.ParamLimit:     2,
		})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, int64(9), rows[0]["wave"])
		assert.Equal(t, int64(7), rows[1]["wave"])

		rows, err = s.Query(ctx, snapshotURI, storage.Params{"wave": 3})
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("NestedPayload", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		_, err := s.Put(ctx, snapshotURI, storage.Record{
			"wave": 4,
			"data": map[string]any{"name": "A", "count": 2},
		})
		require.NoError(t, err)

		rows, err := s.Query(ctx, snapshotURI, storage.Params{"wave": 4})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, map[string]any{"name": "A", "count": int64(2)}, rows[0]["data"])
	})

	t.Run("RowsAreNotShared", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		data := map[string]any{"v": "original"}
		put, err := s.Put(ctx, snapshotURI, storage.Record{"wave": 5, "data": data})
		require.NoError(t, err)

		// изменения входной, возвращенной и прочитанной записей не доходят до хранилища
		data["v"] = "input"
		put["data"].(map[string]any)["v"] = "put"

		rows, err := s.Query(ctx, snapshotURI, storage.Params{"wave": 5})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		rows[0]["data"].(map[string]any)["v"] = "mutated"
		rows[0]["wave"] = 6

		rows, err = s.Query(ctx, snapshotURI, storage.Params{"wave": 5})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, map[string]any{"v": "original"}, rows[0]["data"])
	})

	t.Run("InvalidURI", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Query(context.Background(), "not a uri", nil)
		assert.ErrorIs(t, err, storage.ErrInvalidURI)
	})

	t.Run("Save", func(t *testing.T) {
		s := newStorage(t)
		ok, err := s.Save(context.Background(), false, true)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
