package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/tubewave/internal/models"
	"github.com/iudanet/tubewave/internal/storage"
	"github.com/iudanet/tubewave/internal/wave"
	"github.com/iudanet/tubewave/pkg/api"
)

// WaveService определяет операции трекера, доступные через HTTP
type WaveService interface {
	LastWave(ctx context.Context, task wave.Task) ([]models.SnapshotEntry, error)
	InitialWave(ctx context.Context, task wave.Task) (*models.SnapshotEntry, error)
	RecordWave(ctx context.Context, task wave.Task, w int64, payloads []map[string]any) (int64, error)
	LastWaves(ctx context.Context, prefix string, sources []string, target string) (map[string]int64, error)
	UpdateSyncWave(ctx context.Context, prefix string, sources []string, target string, w int64) (bool, error)
	Save(ctx context.Context, nice, wait bool) (bool, error)
}

// WavesHandler handles wave and sync requests
type WavesHandler struct {
	logger  *slog.Logger
	service WaveService
}

// NewWavesHandler creates a new waves handler
func NewWavesHandler(logger *slog.Logger, service WaveService) *WavesHandler {
	return &WavesHandler{
		logger:  logger,
		service: service,
	}
}

// LastWave обрабатывает GET /api/v1/waves/last?target_url=...&label=value
func (h *WavesHandler) LastWave(w http.ResponseWriter, r *http.Request) {
	task := taskFromQuery(r)

	entries, err := h.service.LastWave(r.Context(), task)
	if err != nil {
		h.writeTrackerError(w, "last wave", err)
		return
	}

	resp := api.LastWaveResponse{Snapshots: make([]api.Snapshot, 0, len(entries))}
	for i := range entries {
		resp.Snapshots = append(resp.Snapshots, toAPISnapshot(&entries[i]))
	}

	h.logger.Debug("Last wave served", "target", task.Target(), "snapshots", len(entries))
	h.writeJSON(w, http.StatusOK, resp)
}

// InitialWave обрабатывает GET /api/v1/waves/initial?target_url=...
func (h *WavesHandler) InitialWave(w http.ResponseWriter, r *http.Request) {
	task := taskFromQuery(r)

	entry, err := h.service.InitialWave(r.Context(), task)
	if err != nil {
		h.writeTrackerError(w, "initial wave", err)
		return
	}

	var resp api.InitialWaveResponse
	if entry != nil {
		s := toAPISnapshot(entry)
		resp.Snapshot = &s
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// RecordWave обрабатывает POST /api/v1/waves
func (h *WavesHandler) RecordWave(w http.ResponseWriter, r *http.Request) {
	var req api.RecordWaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode record request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	written, err := h.service.RecordWave(r.Context(), wave.Task(req.Task), req.Wave, req.Payloads)
	if err != nil {
		h.writeTrackerError(w, "record wave", err)
		return
	}

	h.logger.Info("Wave recorded", "wave", written, "payloads", len(req.Payloads))
	h.writeJSON(w, http.StatusCreated, api.RecordWaveResponse{Wave: written})
}

// LastWaves обрабатывает GET /api/v1/sync?prefix=..&target=..&source=..
func (h *WavesHandler) LastWaves(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	sources := q["source"]
	if target == "" || len(sources) == 0 {
		h.writeError(w, http.StatusBadRequest, "target and at least one source are required")
		return
	}

	waves, err := h.service.LastWaves(r.Context(), q.Get("prefix"), sources, target)
	if err != nil {
		h.writeTrackerError(w, "last waves", err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.SyncWavesResponse{Waves: waves})
}

// UpdateSync обрабатывает PUT /api/v1/sync.
// 200 только если записаны все источники; иначе ok=false и агрегированная ошибка.
func (h *WavesHandler) UpdateSync(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode sync request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" || len(req.Sources) == 0 {
		h.writeError(w, http.StatusBadRequest, "target and at least one source are required")
		return
	}

	ok, err := h.service.UpdateSyncWave(r.Context(), req.Prefix, req.Sources, req.Target, req.Wave)

	resp := api.UpdateSyncResponse{OK: ok && err == nil}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		switch {
		case errors.Is(err, storage.ErrInvalidURI), errors.Is(err, wave.ErrMissingTarget):
			status = http.StatusBadRequest
		case errors.Is(err, wave.ErrWaveRegression):
			status = http.StatusConflict
		default:
			status = http.StatusInternalServerError
		}
		h.logger.Warn("Sync wave update incomplete",
			"target", req.Target,
			"sources", len(req.Sources),
			"wave", req.Wave,
			"error", err)
	} else if !ok {
		status = http.StatusInternalServerError
	}

	h.writeJSON(w, status, resp)
}

// Save обрабатывает POST /api/v1/save?wait=true
func (h *WavesHandler) Save(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	nice, _ := strconv.ParseBool(r.URL.Query().Get("nice"))

	ok, err := h.service.Save(r.Context(), nice, wait)
	if err != nil {
		h.writeTrackerError(w, "save", err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.SaveResponse{OK: ok})
}

// taskFromQuery собирает задачу из query параметров; значения декодируются api.DecodeLabel
func taskFromQuery(r *http.Request) wave.Task {
	q := r.URL.Query()
	task := make(wave.Task, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			task[k] = api.DecodeLabel(vs[0])
		}
	}
	return task
}

func toAPISnapshot(e *models.SnapshotEntry) api.Snapshot {
	return api.Snapshot{
		ID:     e.ID,
		Target: e.Target,
		Wave:   e.Wave,
		Data:   e.Data,
	}
}

func (h *WavesHandler) writeTrackerError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, wave.ErrMissingTarget),
		errors.Is(err, storage.ErrInvalidURI),
		errors.Is(err, wave.ErrWaveRegression):
		h.logger.Warn("Rejected request", "op", op, "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrStorageClosed):
		h.logger.Error("Storage unavailable", "op", op, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.logger.Error("Tracker failure", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *WavesHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, api.ErrorResponse{Error: msg})
}

func (h *WavesHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
