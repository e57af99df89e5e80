package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Normalize converts numbers to int64 (when integral) or float64 so that records
// decoded from JSON compare equal to records built in Go
func Normalize(v any) any {
	switch x := v.(type) {
	case Record:
		out := make(Record, len(x))
		for k, val := range x {
			out[k] = Normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Normalize(val)
		}
		return out
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return Normalize(f)
		}
		return x.String()
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case float32:
		return Normalize(float64(x))
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return v
	}
}

// NormalizeRecord applies Normalize to every field of rec
func NormalizeRecord(rec Record) Record {
	return Normalize(rec).(Record)
}

// Int64 extracts an integer field value. Strings holding integers are accepted.
func Int64(v any) (int64, bool) {
	switch x := Normalize(v).(type) {
	case int64:
		return x, true
	case float64:
		return int64(x), true
	case string:
		var i int64
		if _, err := fmt.Sscan(x, &i); err == nil {
			return i, true
		}
	}
	return 0, false
}

// SplitParams separates equality filters from the reserved keys
func SplitParams(params Params) (filters Params, order string, desc bool, limit int) {
	filters = make(Params, len(params))
	for k, v := range params {
		switch k {
		case ParamOrder:
			order, _ = v.(string)
		case ParamDirection:
			dir, _ := v.(string)
			desc = strings.EqualFold(dir, DirectionDesc)
		case ParamLimit:
			if l, ok := Int64(v); ok {
				limit = int(l)
			}
		default:
			filters[k] = v
		}
	}
	return filters, order, desc, limit
}

// Match reports whether rec satisfies every equality filter
func Match(rec Record, filters Params) bool {
	for k, want := range filters {
		got, ok := rec[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(Normalize(got), Normalize(want)) {
			return false
		}
	}
	return true
}

// Apply filters, orders and limits records according to params
func Apply(records []Record, params Params) []Record {
	filters, order, desc, limit := SplitParams(params)

	result := make([]Record, 0, len(records))
	for _, rec := range records {
		if Match(rec, filters) {
			result = append(result, rec)
		}
	}

	if order != "" {
		SortRecords(result, order, desc)
	}

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result
}

// SortRecords sorts records by field in place; records missing the field go first
func SortRecords(records []Record, field string, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		c := compareValues(records[i][field], records[j][field])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	af, aNum := toFloat(Normalize(a))
	bf, bNum := toFloat(Normalize(b))
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
