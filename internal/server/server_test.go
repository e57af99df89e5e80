package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tubewave/internal/config"
	"github.com/iudanet/tubewave/internal/storage/memory"
	"github.com/iudanet/tubewave/internal/wave"
	"github.com/iudanet/tubewave/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg config.HTTPConfig) *httptest.Server {
	t.Helper()
	tracker := wave.New(memory.New(), testLogger())
	srv := New(cfg, tracker, testLogger(), "test")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_Routes(t *testing.T) {
	ts := newTestServer(t, config.Default().HTTP)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := json.Marshal(api.RecordWaveRequest{
		Task:     map[string]any{"target_url": "ns://db/T"},
		Payloads: []map[string]any{{"v": 1}},
	})
	require.NoError(t, err)
	resp, err = http.Post(ts.URL+"/api/v1/waves", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	var recorded api.RecordWaveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recorded))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Positive(t, recorded.Wave)

	resp, err = http.Get(ts.URL + "/api/v1/waves/last?target_url=ns://db/T")
	require.NoError(t, err)
	var last api.LastWaveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&last))
	_ = resp.Body.Close()
	require.Len(t, last.Snapshots, 1)
	assert.Equal(t, recorded.Wave, last.Snapshots[0].Wave)

	// неверный метод
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/sync", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_RateLimitOnWrites(t *testing.T) {
	cfg := config.Default().HTTP
	cfg.RateLimit = 1
	cfg.RateWindow = time.Hour
	ts := newTestServer(t, cfg)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.Post(ts.URL+"/api/v1/save", "application/json", nil)
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	// чтение не ограничено
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/v1/health")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestServer_CORS(t *testing.T) {
	cfg := config.Default().HTTP
	cfg.CORSOrigins = []string{"https://dash.example.com"}
	ts := newTestServer(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/sync", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "https://dash.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_RunShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := config.Default().HTTP
	cfg.Addr = addr
	srv := New(cfg, wave.New(memory.New(), testLogger()), testLogger(), "test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/v1/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
