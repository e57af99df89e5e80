// Package storage defines the generic record storage consumed by the wave tracker.
//
// Records live in namespaced "tables" addressed by URIs of the form
// namespace://database/collection. Backends (memory, boltdb, sqlstore) only need
// to know how to keep maps of fields; filtering and ordering helpers are shared.
package storage

import "context"

//go:generate moq -out storage_mock.go . Storage

// Conceptual tables used by the wave tracker
const (
	TableTubeMeta     = "TubeMeta"
	TableTubeWave     = "TubeWave"
	TableTubeSync     = "TubeSync"
	TableTubeSnapshot = "TubeSnapshot"
)

// Reserved query parameters. Every other parameter is an equality filter.
const (
	ParamOrder     = "order"
	ParamDirection = "direction"
	ParamLimit     = "limit"

	DirectionAsc  = "ASC"
	DirectionDesc = "DESC"
)

// IDKey is the field holding the record identity
const IDKey = "id"

// Record is the generic representation of a stored row
type Record map[string]any

// Params holds filters plus the reserved order/direction/limit keys
type Params map[string]any

// Storage defines the generic query/put/update interface over tube tables
type Storage interface {
	// Query returns rows of the table addressed by uri that match params.
	// Returns an empty slice if nothing matches.
	Query(ctx context.Context, uri string, params Params) ([]Record, error)

	// Put inserts a new record and returns the stored representation.
	// A UUID id is generated when the record has none.
	Put(ctx context.Context, uri string, rec Record) (Record, error)

	// Update replaces an existing record matched by its id.
	// Returns ErrNotFound if the record doesn't exist.
	Update(ctx context.Context, uri string, rec Record) (Record, error)

	// Save flushes pending state. With wait the call blocks until data is durable.
	Save(ctx context.Context, nice, wait bool) (bool, error)
}

// Lifecycle is implemented by backends that need explicit start/stop
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ID returns the record id or an empty string
func (r Record) ID() string {
	id, _ := r[IDKey].(string)
	return id
}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
