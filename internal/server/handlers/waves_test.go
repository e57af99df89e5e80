package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tubewave/internal/storage"
	"github.com/iudanet/tubewave/internal/storage/memory"
	"github.com/iudanet/tubewave/internal/wave"
	"github.com/iudanet/tubewave/pkg/api"
)

const (
	testPrefix = "ns://db"
	testTarget = "ns://db/T"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, opts ...wave.Option) (*WavesHandler, *wave.Tracker) {
	t.Helper()
	tracker := wave.New(memory.New(), setupTestLogger(), opts...)
	return NewWavesHandler(setupTestLogger(), tracker), tracker
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestWavesHandler_RecordAndLastWave(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := jsonBody(t, api.RecordWaveRequest{
		Task:     map[string]any{"target_url": testTarget, "kind": "daily"},
		Wave:     7,
		Payloads: []map[string]any{{"v": 1}, {"v": 2}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/waves", body)
	w := httptest.NewRecorder()
	handler.RecordWave(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var recorded api.RecordWaveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&recorded))
	assert.Equal(t, int64(7), recorded.Wave)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/waves/last?target_url="+testTarget+"&kind=daily", nil)
	w = httptest.NewRecorder()
	handler.LastWave(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var last api.LastWaveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&last))
	require.Len(t, last.Snapshots, 2)
	for _, s := range last.Snapshots {
		assert.Equal(t, int64(7), s.Wave)
		assert.Equal(t, testTarget, s.Target)
	}

	// другая метка - нет волн
	req = httptest.NewRequest(http.MethodGet, "/api/v1/waves/last?target_url="+testTarget+"&kind=hourly", nil)
	w = httptest.NewRecorder()
	handler.LastWave(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	last = api.LastWaveResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&last))
	assert.Empty(t, last.Snapshots)
}

func TestWavesHandler_LastWave_TypedLabel(t *testing.T) {
	handler, tracker := newTestHandler(t)

	_, err := tracker.RecordWave(context.Background(),
		wave.Task{"target_url": testTarget, "shard": 2}, 5, []map[string]any{{"v": 1}})
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "number", query: "&shard=2", want: 1},
		{name: "quoted string", query: "&shard=%222%22", want: 0},
		{name: "other number", query: "&shard=3", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.LastWave(w, httptest.NewRequest(http.MethodGet, "/api/v1/waves/last?target_url="+testTarget+tt.query, nil))

			require.Equal(t, http.StatusOK, w.Code)
			var last api.LastWaveResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&last))
			assert.Len(t, last.Snapshots, tt.want)
		})
	}
}

func TestWavesHandler_LastWave_MissingTarget(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/waves/last", nil)
	w := httptest.NewRecorder()
	handler.LastWave(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWavesHandler_InitialWave(t *testing.T) {
	handler, tracker := newTestHandler(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/waves/initial?target_url="+testTarget, nil)
	w := httptest.NewRecorder()
	handler.InitialWave(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.InitialWaveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Nil(t, resp.Snapshot)

	_, err := tracker.RecordWave(ctx, wave.Task{"target_url": testTarget}, 3, []map[string]any{{"v": "x"}})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	handler.InitialWave(w, httptest.NewRequest(http.MethodGet, "/api/v1/waves/initial?target_url="+testTarget, nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp = api.InitialWaveResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, int64(3), resp.Snapshot.Wave)
	assert.Equal(t, "x", resp.Snapshot.Data["v"])
}

func TestWavesHandler_RecordWave_InvalidBody(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/waves", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	handler.RecordWave(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWavesHandler_UpdateSyncAndLastWaves(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := jsonBody(t, api.UpdateSyncRequest{
		Prefix:  testPrefix,
		Sources: []string{"ns://db/A", "ns://db/B"},
		Target:  testTarget,
		Wave:    12,
	})
	w := httptest.NewRecorder()
	handler.UpdateSync(w, httptest.NewRequest(http.MethodPut, "/api/v1/sync", body))

	require.Equal(t, http.StatusOK, w.Code)
	var updated api.UpdateSyncResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.True(t, updated.OK)
	assert.Empty(t, updated.Error)

	url := "/api/v1/sync?prefix=" + testPrefix + "&target=" + testTarget +
		"&source=ns://db/A&source=ns://db/B&source=ns://db/C"
	w = httptest.NewRecorder()
	handler.LastWaves(w, httptest.NewRequest(http.MethodGet, url, nil))

	require.Equal(t, http.StatusOK, w.Code)
	var waves api.SyncWavesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&waves))
	assert.Equal(t, map[string]int64{
		"ns://db/A": 12,
		"ns://db/B": 12,
		"ns://db/C": 0,
	}, waves.Waves)
}

func TestWavesHandler_UpdateSync_BadRequest(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		name string
		body io.Reader
	}{
		{name: "invalid json", body: bytes.NewBufferString("[")},
		{name: "missing target", body: jsonBody(t, api.UpdateSyncRequest{Sources: []string{"ns://db/A"}, Wave: 1})},
		{name: "missing sources", body: jsonBody(t, api.UpdateSyncRequest{Target: testTarget, Wave: 1})},
		{name: "empty prefix", body: jsonBody(t, api.UpdateSyncRequest{Sources: []string{"ns://db/A"}, Target: testTarget, Wave: 1})},
		{name: "invalid prefix", body: jsonBody(t, api.UpdateSyncRequest{Prefix: "not a uri", Sources: []string{"ns://db/A"}, Target: testTarget, Wave: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.UpdateSync(w, httptest.NewRequest(http.MethodPut, "/api/v1/sync", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestWavesHandler_UpdateSync_PartialFailure(t *testing.T) {
	backend := memory.New()
	failing := &storage.StorageMock{
		QueryFunc:  backend.Query,
		UpdateFunc: backend.Update,
		SaveFunc:   backend.Save,
		PutFunc: func(ctx context.Context, uri string, rec storage.Record) (storage.Record, error) {
			if rec["source"] == "ns://db/B" {
				return nil, errors.New("disk full")
			}
			return backend.Put(ctx, uri, rec)
		},
	}
	handler := NewWavesHandler(setupTestLogger(), wave.New(failing, setupTestLogger()))

	body := jsonBody(t, api.UpdateSyncRequest{
		Prefix:  testPrefix,
		Sources: []string{"ns://db/A", "ns://db/B"},
		Target:  testTarget,
		Wave:    4,
	})
	w := httptest.NewRecorder()
	handler.UpdateSync(w, httptest.NewRequest(http.MethodPut, "/api/v1/sync", body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp api.UpdateSyncResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "disk full")

	// источник A записан, откат не выполняется
	rows, err := backend.Query(context.Background(), testPrefix+"/TubeSync", storage.Params{"source": "ns://db/A"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWavesHandler_UpdateSync_Regression(t *testing.T) {
	handler, _ := newTestHandler(t, wave.WithStrictMonotonic(true))

	for _, tc := range []struct {
		wave   int64
		status int
	}{
		{wave: 10, status: http.StatusOK},
		{wave: 9, status: http.StatusConflict},
	} {
		body := jsonBody(t, api.UpdateSyncRequest{
			Prefix:  testPrefix,
			Sources: []string{"ns://db/A"},
			Target:  testTarget,
			Wave:    tc.wave,
		})
		w := httptest.NewRecorder()
		handler.UpdateSync(w, httptest.NewRequest(http.MethodPut, "/api/v1/sync", body))
		assert.Equal(t, tc.status, w.Code)
	}
}

func TestWavesHandler_LastWaves_BadRequest(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	handler.LastWaves(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync?target="+testTarget, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWavesHandler_Save(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	handler.Save(w, httptest.NewRequest(http.MethodPost, "/api/v1/save?wait=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.SaveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.OK)
}

func TestWavesHandler_StorageClosed(t *testing.T) {
	closed := &storage.StorageMock{
		QueryFunc: func(ctx context.Context, uri string, params storage.Params) ([]storage.Record, error) {
			return nil, storage.ErrStorageClosed
		},
	}
	handler := NewWavesHandler(setupTestLogger(), wave.New(closed, setupTestLogger()))

	w := httptest.NewRecorder()
	handler.LastWave(w, httptest.NewRequest(http.MethodGet, "/api/v1/waves/last?target_url="+testTarget, nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
