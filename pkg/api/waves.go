package api

// Snapshot представляет одну запись волны
type Snapshot struct {
	Data   map[string]any `json:"data"`
	ID     string         `json:"id"`
	Target string         `json:"target"`
	Wave   int64          `json:"wave"`
}

// LastWaveResponse ответ на GET /api/v1/waves/last
type LastWaveResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// InitialWaveResponse ответ на GET /api/v1/waves/initial; Snapshot пуст, если волн нет
type InitialWaveResponse struct {
	Snapshot *Snapshot `json:"snapshot"`
}

// RecordWaveRequest запрос на запись новой волны
type RecordWaveRequest struct {
	Task     map[string]any   `json:"task"`
	Payloads []map[string]any `json:"payloads"`
	Wave     int64            `json:"wave"` // 0 - выделить из часов сервера
}

// RecordWaveResponse ответ с фактически записанной волной
type RecordWaveResponse struct {
	Wave int64 `json:"wave"`
}

// SyncWavesResponse ответ на GET /api/v1/sync
type SyncWavesResponse struct {
	Waves map[string]int64 `json:"waves"`
}

// UpdateSyncRequest запрос на PUT /api/v1/sync
type UpdateSyncRequest struct {
	Prefix  string   `json:"prefix"`
	Target  string   `json:"target"`
	Sources []string `json:"sources"`
	Wave    int64    `json:"wave"`
}

// UpdateSyncResponse результат обновления; Error содержит все ошибки по источникам
type UpdateSyncResponse struct {
	Error string `json:"error,omitempty"`
	OK    bool   `json:"ok"`
}

// SaveResponse ответ на POST /api/v1/save
type SaveResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse общий формат ошибки
type ErrorResponse struct {
	Error string `json:"error"`
}
