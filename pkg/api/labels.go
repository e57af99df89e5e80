package api

import "encoding/json"

// EncodeLabel переводит значение метки задачи в query параметр.
// Строки передаются как есть, если сами не являются JSON; остальное кодируется в JSON.
func EncodeLabel(v any) (string, error) {
	if s, ok := v.(string); ok && !json.Valid([]byte(s)) {
		return s, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeLabel обратна EncodeLabel: валидный JSON декодируется, иначе остается строкой
func DecodeLabel(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
