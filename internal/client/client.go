// Package client talks to a waved server; it satisfies the same tracker
// interface wavectl uses for a local store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iudanet/tubewave/internal/models"
	"github.com/iudanet/tubewave/internal/wave"
	"github.com/iudanet/tubewave/pkg/api"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Client представляет HTTP клиент для waved
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LastWave запрашивает записи последней волны задачи
func (c *Client) LastWave(ctx context.Context, task wave.Task) ([]models.SnapshotEntry, error) {
	var resp api.LastWaveResponse
	query, err := taskQuery(task)
	if err != nil {
		return nil, err
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/waves/last?"+query, nil, &resp); err != nil {
		return nil, fmt.Errorf("last wave request failed: %w", err)
	}

	entries := make([]models.SnapshotEntry, 0, len(resp.Snapshots))
	for _, s := range resp.Snapshots {
		entries = append(entries, fromAPISnapshot(s))
	}
	return entries, nil
}

// InitialWave запрашивает первую запись последней волны, nil если волн нет
func (c *Client) InitialWave(ctx context.Context, task wave.Task) (*models.SnapshotEntry, error) {
	var resp api.InitialWaveResponse
	query, err := taskQuery(task)
	if err != nil {
		return nil, err
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/waves/initial?"+query, nil, &resp); err != nil {
		return nil, fmt.Errorf("initial wave request failed: %w", err)
	}
	if resp.Snapshot == nil {
		return nil, nil
	}
	entry := fromAPISnapshot(*resp.Snapshot)
	return &entry, nil
}

// RecordWave записывает волну на сервере и возвращает ее номер
func (c *Client) RecordWave(ctx context.Context, task wave.Task, w int64, payloads []map[string]any) (int64, error) {
	req := api.RecordWaveRequest{Task: task, Wave: w, Payloads: payloads}
	var resp api.RecordWaveResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/waves", req, &resp); err != nil {
		return 0, fmt.Errorf("record wave request failed: %w", err)
	}
	return resp.Wave, nil
}

// LastWaves запрашивает последний синхронизированный wave по каждому источнику
func (c *Client) LastWaves(ctx context.Context, prefix string, sources []string, target string) (map[string]int64, error) {
	q := url.Values{"prefix": {prefix}, "target": {target}, "source": sources}
	var resp api.SyncWavesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sync?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("last waves request failed: %w", err)
	}
	return resp.Waves, nil
}

// UpdateSyncWave обновляет sync записи; при частичной ошибке сервер отвечает ok=false
func (c *Client) UpdateSyncWave(ctx context.Context, prefix string, sources []string, target string, w int64) (bool, error) {
	req := api.UpdateSyncRequest{Prefix: prefix, Sources: sources, Target: target, Wave: w}
	var resp api.UpdateSyncResponse
	err := c.doRequest(ctx, http.MethodPut, "/api/v1/sync", req, &resp)

	var statusErr *StatusError
	if errors.As(err, &statusErr) && resp.Error != "" {
		return false, fmt.Errorf("server error (%d): %s", statusErr.StatusCode, resp.Error)
	}
	if err != nil {
		return false, fmt.Errorf("update sync request failed: %w", err)
	}
	return resp.OK, nil
}

// Save просит сервер сбросить данные на диск
func (c *Client) Save(ctx context.Context, nice, wait bool) (bool, error) {
	q := url.Values{"nice": {strconv.FormatBool(nice)}, "wait": {strconv.FormatBool(wait)}}
	var resp api.SaveResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/save?"+q.Encode(), nil, &resp); err != nil {
		return false, fmt.Errorf("save request failed: %w", err)
	}
	return resp.OK, nil
}

func taskQuery(task wave.Task) (string, error) {
	q := make(url.Values, len(task))
	for k, v := range task {
		raw, err := api.EncodeLabel(v)
		if err != nil {
			return "", fmt.Errorf("label %q: %w", k, err)
		}
		q.Set(k, raw)
	}
	return q.Encode(), nil
}

func fromAPISnapshot(s api.Snapshot) models.SnapshotEntry {
	return models.SnapshotEntry{ID: s.ID, Target: s.Target, Wave: s.Wave, Data: s.Data}
}

// doRequest выполняет HTTP запрос. Тело ответа декодируется в result и для
// ошибочных статусов, если оно является JSON; ошибка тогда *StatusError.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result != nil {
			_ = json.Unmarshal(respBody, result)
		}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
