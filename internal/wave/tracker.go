// Package wave tracks synchronization watermarks ("waves") between data tubes.
//
// A Tracker answers two questions for a target tube: which snapshot rows belong
// to its most recent wave, and up to which wave every source has been merged
// into it. All state lives in a storage.Storage; the tracker itself only owns a
// bounded change-detection cache and the clock new waves are allocated from.
//
// Every method that touches storage is a plain sequence of storage round trips
// without locks held in between. Concurrent UpdateSyncWave calls for the same
// (source, target) pair are last-write-wins.
package wave

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/iudanet/tubewave/internal/models"
	"github.com/iudanet/tubewave/internal/storage"
)

// NodeLabel is the bookkeeping label carrying the writer of a wave marker
const NodeLabel = "_node"

// Task describes a target tube plus arbitrary filter fields.
// The target is read from target_url, falling back to target.
type Task map[string]any

// Target returns the target tube URI of the task
func (t Task) Target() string {
	if s, ok := t[models.FieldTargetURL].(string); ok && s != "" {
		return s
	}
	s, _ := t[models.FieldTarget].(string)
	return s
}

// Labels returns the task fields used to tag and find wave markers.
// Bookkeeping fields (leading underscore), the wave, the target and the
// reserved query keys are left out.
func (t Task) Labels() map[string]any {
	labels := make(map[string]any, len(t))
	for k, v := range t {
		if strings.HasPrefix(k, "_") {
			continue
		}
		switch k {
		case models.FieldWave, models.FieldTarget, models.FieldTargetURL, models.FieldID,
			storage.ParamOrder, storage.ParamDirection, storage.ParamLimit:
			continue
		}
		labels[k] = v
	}
	return labels
}

// Tracker keeps per-(source, target) waves in storage
type Tracker struct {
	store           storage.Storage
	logger          *slog.Logger
	cache           *ChangeCache
	clock           *Clock
	strictMonotonic bool
}

// New creates a tracker over store
func New(store storage.Storage, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.cache == nil {
		t.cache = NewChangeCache(nil)
	}
	if t.clock == nil {
		t.clock = NewClock()
	}
	return t
}

// Clock returns the clock new waves are allocated from
func (t *Tracker) Clock() *Clock {
	return t.clock
}

// Cache returns the change-detection cache
func (t *Tracker) Cache() *ChangeCache {
	return t.cache
}

// LastWave returns the snapshot rows of the most recent wave written for the task.
// Several markers may share the last wave (it is a batch key, not a unique row),
// all snapshot rows of that wave are returned. Empty when no marker exists yet.
func (t *Tracker) LastWave(ctx context.Context, task Task) ([]models.SnapshotEntry, error) {
	target := task.Target()
	if target == "" {
		return nil, ErrMissingTarget
	}

	waves, err := t.lastMarkerWaves(ctx, target, task.Labels())
	if err != nil {
		return nil, err
	}

	entries := make([]models.SnapshotEntry, 0)
	if len(waves) == 0 {
		t.logger.Debug("No wave marker found", "target", target)
		return entries, nil
	}

	snapshotURI, err := storage.TableURI(target, storage.TableTubeSnapshot)
	if err != nil {
		return nil, err
	}

	for _, w := range waves {
		rows, err := t.store.Query(ctx, snapshotURI, storage.Params{
			models.FieldWave:   w,
			models.FieldTarget: target,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query snapshot of wave %d: %w", w, err)
		}

		for _, row := range rows {
			entry, err := models.SnapshotEntryFromRecord(row)
			if err != nil {
				return nil, err
			}
			entries = append(entries, *entry)
		}
		t.clock.Observe(w)
	}

	t.logger.Debug("Last wave loaded", "target", target, "waves", waves, "entries", len(entries))
	return entries, nil
}

// InitialWave returns the oldest snapshot entry of the last wave, or nil when
// the target has no wave yet. Used to seed a new task.
func (t *Tracker) InitialWave(ctx context.Context, task Task) (*models.SnapshotEntry, error) {
	entries, err := t.LastWave(ctx, task)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		t.logger.Warn("Can't find initial wave", "target", task.Target())
		return nil, nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Wave < entries[j].Wave
	})
	return &entries[0], nil
}

// RecordWave stores one snapshot entry per payload and the wave marker for the task.
// A zero wave is allocated from the tracker clock. The marker is written last so a
// reader never sees a marker whose snapshot rows are missing.
// Returns the wave that was written.
func (t *Tracker) RecordWave(ctx context.Context, task Task, wave int64, payloads []map[string]any) (int64, error) {
	target := task.Target()
	if target == "" {
		return 0, ErrMissingTarget
	}

	labels := task.Labels()

	if wave == 0 {
		// продвигаем часы до последнего записанного wave этой цели
		waves, err := t.lastMarkerWaves(ctx, target, nil)
		if err != nil {
			return 0, err
		}
		for _, w := range waves {
			t.clock.Observe(w)
		}
		wave = t.clock.Tick()
	} else {
		t.clock.Observe(wave)
	}

	snapshotURI, err := storage.TableURI(target, storage.TableTubeSnapshot)
	if err != nil {
		return 0, err
	}
	for _, payload := range payloads {
		entry := &models.SnapshotEntry{Target: target, Wave: wave, Data: payload}
		if _, err := t.store.Put(ctx, snapshotURI, entry.ToRecord()); err != nil {
			return 0, fmt.Errorf("failed to store snapshot entry: %w", err)
		}
	}

	labels[NodeLabel] = t.clock.NodeID()
	marker := &models.WaveMarker{Target: target, Wave: wave, Labels: labels}

	waveURI, err := storage.TableURI(target, storage.TableTubeWave)
	if err != nil {
		return 0, err
	}
	if _, err := t.store.Put(ctx, waveURI, marker.ToRecord()); err != nil {
		return 0, fmt.Errorf("failed to store wave marker: %w", err)
	}

	t.logger.Info("Wave recorded", "target", target, "wave", wave, "entries", len(payloads))
	return wave, nil
}

// UpdateSyncWave records that every source has been merged into target up to wave.
// Existing (source, target) records are updated in place, missing ones are created.
// Returns true iff every per-source write succeeded. A failing source does not stop
// the others and nothing is rolled back; all failures are returned together.
func (t *Tracker) UpdateSyncWave(ctx context.Context, prefix string, sources []string, target string, wave int64) (bool, error) {
	syncURI, err := storage.TableURI(prefix, storage.TableTubeSync)
	if err != nil {
		return false, err
	}

	ok := true
	var errs *multierror.Error

	for _, source := range sources {
		if err := t.upsertSync(ctx, syncURI, source, target, wave); err != nil {
			ok = false
			errs = multierror.Append(errs, fmt.Errorf("source %s: %w", source, err))
			continue
		}
	}
	t.clock.Observe(wave)

	if !ok {
		t.logger.Warn("Sync wave partially updated",
			"target", target,
			"wave", wave,
			"sources", len(sources),
			"failed", errs.Len())
		return false, errs.ErrorOrNil()
	}

	t.logger.Info("Sync wave updated", "target", target, "wave", wave, "sources", len(sources))
	return true, nil
}

func (t *Tracker) upsertSync(ctx context.Context, syncURI, source, target string, wave int64) error {
	rows, err := t.store.Query(ctx, syncURI, storage.Params{
		models.FieldSource: source,
		models.FieldTarget: target,
	})
	if err != nil {
		return fmt.Errorf("failed to query sync record: %w", err)
	}

	if len(rows) == 0 {
		record := &models.SyncRecord{Source: source, Target: target, Wave: wave}
		if _, err := t.store.Put(ctx, syncURI, record.ToRecord()); err != nil {
			return fmt.Errorf("failed to insert sync record: %w", err)
		}
		return nil
	}

	if len(rows) > 1 {
		t.logger.Warn("Duplicated sync records, updating the first one",
			"source", source,
			"target", target,
			"count", len(rows))
	}

	existing, err := models.SyncRecordFromRecord(rows[0])
	if err != nil {
		return err
	}
	if t.strictMonotonic && wave < existing.Wave {
		return fmt.Errorf("%w: stored %d, got %d", ErrWaveRegression, existing.Wave, wave)
	}

	rec := rows[0].Clone()
	rec[models.FieldWave] = wave
	if _, err := t.store.Update(ctx, syncURI, rec); err != nil {
		return fmt.Errorf("failed to update sync record: %w", err)
	}
	return nil
}

// LastWaves returns, for every source, the last wave merged into target.
// Sources never synced report 0. Storage errors are returned as is.
func (t *Tracker) LastWaves(ctx context.Context, prefix string, sources []string, target string) (map[string]int64, error) {
	syncURI, err := storage.TableURI(prefix, storage.TableTubeSync)
	if err != nil {
		return nil, err
	}

	waves := make(map[string]int64, len(sources))
	for _, source := range sources {
		rows, err := t.store.Query(ctx, syncURI, storage.Params{
			models.FieldSource: source,
			models.FieldTarget: target,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query sync record of %s: %w", source, err)
		}

		if len(rows) == 0 {
			waves[source] = 0
			continue
		}

		record, err := models.SyncRecordFromRecord(rows[0])
		if err != nil {
			return nil, err
		}
		waves[source] = record.Wave
		t.clock.Observe(record.Wave)
	}

	return waves, nil
}

// HasChange reports whether data differs from the payload last seen for the object uri.
// The cache path is the tube part of uri, the id comes from uri or from data["id"].
// Empty data is never a change and leaves the cache untouched.
func (t *Tracker) HasChange(uri string, data map[string]any) bool {
	if len(data) == 0 {
		return false
	}

	path, id := uri, ""
	if u, err := storage.ParseURI(uri); err == nil {
		path, id = u.Path(), u.ID
	}
	if id == "" {
		if v, ok := data[models.FieldID]; ok {
			id = fmt.Sprint(v)
		}
	}

	return t.cache.HasChange(path, id, data)
}

// UpdateMeta stores metadata of a tube, replacing the previous one
func (t *Tracker) UpdateMeta(ctx context.Context, tube string, meta map[string]any) (bool, error) {
	metaURI, err := storage.TableURI(tube, storage.TableTubeMeta)
	if err != nil {
		return false, err
	}

	rows, err := t.store.Query(ctx, metaURI, storage.Params{models.FieldTube: tube})
	if err != nil {
		return false, fmt.Errorf("failed to query meta: %w", err)
	}

	entry := &models.MetaEntry{Tube: tube, Meta: meta}
	if len(rows) > 0 {
		entry.ID = rows[0].ID()
		if _, err := t.store.Update(ctx, metaURI, entry.ToRecord()); err != nil {
			return false, fmt.Errorf("failed to update meta: %w", err)
		}
	} else if _, err := t.store.Put(ctx, metaURI, entry.ToRecord()); err != nil {
		return false, fmt.Errorf("failed to insert meta: %w", err)
	}

	t.logger.Info("Updating Meta", "tube", tube)
	return true, nil
}

// FindMeta returns the metadata entries of a tube matching params
func (t *Tracker) FindMeta(ctx context.Context, tube string, params storage.Params) ([]models.MetaEntry, error) {
	metaURI, err := storage.TableURI(tube, storage.TableTubeMeta)
	if err != nil {
		return nil, err
	}

	query := make(storage.Params, len(params)+1)
	for k, v := range params {
		query[k] = v
	}
	query[models.FieldTube] = tube

	rows, err := t.store.Query(ctx, metaURI, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}

	entries := make([]models.MetaEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *models.MetaEntryFromRecord(row))
	}
	return entries, nil
}

// Start starts the storage when it needs it
func (t *Tracker) Start(ctx context.Context) error {
	if lc, ok := t.store.(storage.Lifecycle); ok {
		return lc.Start(ctx)
	}
	return nil
}

// Stop stops the storage when it needs it
func (t *Tracker) Stop(ctx context.Context) error {
	if lc, ok := t.store.(storage.Lifecycle); ok {
		return lc.Stop(ctx)
	}
	return nil
}

// Save flushes the storage
func (t *Tracker) Save(ctx context.Context, nice, wait bool) (bool, error) {
	t.logger.Debug("Saving storage", "nice", nice, "wait", wait)

	ok, err := t.store.Save(ctx, nice, wait)
	if err != nil {
		return false, err
	}
	if !ok {
		t.logger.Error("Storage has NOT been saved")
	}
	return ok, nil
}

// lastMarkerWaves returns the distinct wave values of the most recent markers
// of target matching labels
func (t *Tracker) lastMarkerWaves(ctx context.Context, target string, labels map[string]any) ([]int64, error) {
	waveURI, err := storage.TableURI(target, storage.TableTubeWave)
	if err != nil {
		return nil, err
	}

	params := make(storage.Params, len(labels)+3)
	for k, v := range labels {
		params[k] = v
	}
	params[models.FieldTarget] = target
	params[storage.ParamOrder] = models.FieldWave
	params[storage.ParamDirection] = storage.DirectionDesc

	rows, err := t.store.Query(ctx, waveURI, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query wave markers: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var waves []int64
	for _, row := range rows {
		marker, err := models.WaveMarkerFromRecord(row)
		if err != nil {
			return nil, err
		}
		if len(waves) > 0 && marker.Wave < waves[0] {
			// строки отсортированы по убыванию, дальше только старые waves
			break
		}
		if len(waves) == 0 || marker.Wave != waves[len(waves)-1] {
			waves = append(waves, marker.Wave)
		}
	}
	return waves, nil
}
