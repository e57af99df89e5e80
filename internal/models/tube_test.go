package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tubewave/internal/storage"
)

func TestSyncRecord_RecordBoundary(t *testing.T) {
	rec := (&SyncRecord{Source: "ns://db/A", Target: "ns://db/T", Wave: 5}).ToRecord()
	_, hasID := rec[FieldID]
	assert.False(t, hasID, "empty id must not be stored")

	// значения из JSON приходят как float64
	rec[FieldID] = "sync-1"
	rec[FieldWave] = float64(5)

	got, err := SyncRecordFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, &SyncRecord{ID: "sync-1", Source: "ns://db/A", Target: "ns://db/T", Wave: 5}, got)
}

func TestSyncRecordFromRecord_InvalidWave(t *testing.T) {
	_, err := SyncRecordFromRecord(storage.Record{FieldWave: "not-a-wave"})
	assert.Error(t, err)
}

func TestWaveMarker_LabelsAreFlattened(t *testing.T) {
	marker := &WaveMarker{
		Target: "ns://db/T",
		Wave:   10,
		Labels: map[string]any{"kind": "stations"},
	}

	rec := marker.ToRecord()
	assert.Equal(t, "stations", rec["kind"])
	assert.Equal(t, "ns://db/T", rec[FieldTarget])

	rec[FieldID] = "m-1"
	back, err := WaveMarkerFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "m-1", back.ID)
	assert.Equal(t, int64(10), back.Wave)
	assert.Equal(t, map[string]any{"kind": "stations"}, back.Labels)
}

func TestSnapshotEntryFromRecord(t *testing.T) {
	entry, err := SnapshotEntryFromRecord(storage.Record{
		FieldID:     "s-1",
		FieldTarget: "ns://db/T",
		FieldWave:   int64(3),
		FieldData:   map[string]any{"temp": 21.5},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), entry.Wave)
	assert.Equal(t, 21.5, entry.Data["temp"])
}

func TestMetaEntry_RecordBoundary(t *testing.T) {
	meta := &MetaEntry{Tube: "ns://db/T", Meta: map[string]any{"owner": "etl"}}
	back := MetaEntryFromRecord(meta.ToRecord())
	assert.Equal(t, meta, back)
}
