package models

import (
	"fmt"

	"github.com/iudanet/tubewave/internal/storage"
)

// Field names used in stored tube records
const (
	FieldID     = storage.IDKey
	FieldSource = "source"
	FieldTarget = "target"
	FieldWave   = "wave"
	FieldData   = "data"
	FieldTube   = "tube"
	FieldMeta   = "meta"

	// FieldTargetURL ключ задачи, в котором передается URI целевого tube
	FieldTargetURL = "target_url"
)

// SyncRecord представляет последний wave источника, слитый в цель.
// Уникален для пары (Source, Target).
type SyncRecord struct {
	ID     string `json:"id"`     // ID идентификатор записи в storage
	Source string `json:"source"` // Source URI tube-источника
	Target string `json:"target"` // Target URI целевого tube
	Wave   int64  `json:"wave"`   // Wave последний синхронизированный wave
}

// WaveMarker отмечает одну пачку записи (wave) для цели.
// Labels содержат дополнительные поля задачи, по которым ищется последний wave.
type WaveMarker struct {
	Labels map[string]any `json:"labels,omitempty"`
	ID     string         `json:"id"`
	Target string         `json:"target"`
	Wave   int64          `json:"wave"`
}

// SnapshotEntry is one payload row written as part of a wave
type SnapshotEntry struct {
	Data   map[string]any `json:"data"`
	ID     string         `json:"id"`
	Target string         `json:"target"`
	Wave   int64          `json:"wave"`
}

// MetaEntry holds free-form metadata of a tube
type MetaEntry struct {
	Meta map[string]any `json:"meta"`
	ID   string         `json:"id"`
	Tube string         `json:"tube"`
}

// ToRecord converts the sync record into its storage representation
func (s *SyncRecord) ToRecord() storage.Record {
	rec := storage.Record{
		FieldSource: s.Source,
		FieldTarget: s.Target,
		FieldWave:   s.Wave,
	}
	if s.ID != "" {
		rec[FieldID] = s.ID
	}
	return rec
}

// SyncRecordFromRecord builds a SyncRecord from a stored row
func SyncRecordFromRecord(rec storage.Record) (*SyncRecord, error) {
	wave, err := waveOf(rec)
	if err != nil {
		return nil, err
	}
	return &SyncRecord{
		ID:     rec.ID(),
		Source: stringOf(rec, FieldSource),
		Target: stringOf(rec, FieldTarget),
		Wave:   wave,
	}, nil
}

// ToRecord converts the marker into its storage representation.
// Labels are flattened next to the marker fields so they can be used as query filters.
func (m *WaveMarker) ToRecord() storage.Record {
	rec := make(storage.Record, len(m.Labels)+3)
	for k, v := range m.Labels {
		rec[k] = v
	}
	rec[FieldTarget] = m.Target
	rec[FieldWave] = m.Wave
	if m.ID != "" {
		rec[FieldID] = m.ID
	}
	return rec
}

// WaveMarkerFromRecord builds a WaveMarker from a stored row
func WaveMarkerFromRecord(rec storage.Record) (*WaveMarker, error) {
	wave, err := waveOf(rec)
	if err != nil {
		return nil, err
	}
	marker := &WaveMarker{
		ID:     rec.ID(),
		Target: stringOf(rec, FieldTarget),
		Wave:   wave,
	}
	for k, v := range rec {
		switch k {
		case FieldID, FieldTarget, FieldWave:
			continue
		}
		if marker.Labels == nil {
			marker.Labels = make(map[string]any)
		}
		marker.Labels[k] = v
	}
	return marker, nil
}

// ToRecord converts the snapshot entry into its storage representation
func (e *SnapshotEntry) ToRecord() storage.Record {
	rec := storage.Record{
		FieldTarget: e.Target,
		FieldWave:   e.Wave,
		FieldData:   e.Data,
	}
	if e.ID != "" {
		rec[FieldID] = e.ID
	}
	return rec
}

// SnapshotEntryFromRecord builds a SnapshotEntry from a stored row
func SnapshotEntryFromRecord(rec storage.Record) (*SnapshotEntry, error) {
	wave, err := waveOf(rec)
	if err != nil {
		return nil, err
	}
	data, _ := rec[FieldData].(map[string]any)
	return &SnapshotEntry{
		ID:     rec.ID(),
		Target: stringOf(rec, FieldTarget),
		Wave:   wave,
		Data:   data,
	}, nil
}

// ToRecord converts the meta entry into its storage representation
func (m *MetaEntry) ToRecord() storage.Record {
	rec := storage.Record{
		FieldTube: m.Tube,
		FieldMeta: m.Meta,
	}
	if m.ID != "" {
		rec[FieldID] = m.ID
	}
	return rec
}

// MetaEntryFromRecord builds a MetaEntry from a stored row
func MetaEntryFromRecord(rec storage.Record) *MetaEntry {
	meta, _ := rec[FieldMeta].(map[string]any)
	return &MetaEntry{
		ID:   rec.ID(),
		Tube: stringOf(rec, FieldTube),
		Meta: meta,
	}
}

func waveOf(rec storage.Record) (int64, error) {
	raw, ok := rec[FieldWave]
	if !ok {
		return 0, nil
	}
	wave, ok := storage.Int64(raw)
	if !ok {
		return 0, fmt.Errorf("invalid wave value %v (%T) in record %q", raw, raw, rec.ID())
	}
	return wave, nil
}

func stringOf(rec storage.Record, key string) string {
	s, _ := rec[key].(string)
	return s
}
