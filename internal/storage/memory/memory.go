// Package memory keeps tube tables in an in-process btree.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zyedidia/generic"
	"github.com/zyedidia/generic/btree"

	"github.com/iudanet/tubewave/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

// Storage is a process-local Storage implementation
type Storage struct {
	records *btree.Tree[string, storage.Record]
	mu      sync.RWMutex
}

// New creates an empty in-memory storage
func New() *Storage {
	return &Storage{
		records: btree.New[string, storage.Record](generic.Less[string]),
	}
}

// Query returns deep copies of the matching rows of the table addressed by uri.
// Stored rows are never shared with callers, nested maps included.
func (s *Storage) Query(ctx context.Context, uri string, params storage.Params) ([]storage.Record, error) {
	table, err := tableKey(uri)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	rows := make([]storage.Record, 0)
	s.records.Each(func(key string, rec storage.Record) {
		if strings.HasPrefix(key, table) {
			rows = append(rows, storage.NormalizeRecord(rec))
		}
	})
	s.mu.RUnlock()

	return storage.Apply(rows, params), nil
}

// Put inserts rec, generating an id when missing
func (s *Storage) Put(ctx context.Context, uri string, rec storage.Record) (storage.Record, error) {
	table, err := tableKey(uri)
	if err != nil {
		return nil, err
	}

	stored := storage.NormalizeRecord(rec)
	if stored.ID() == "" {
		stored[storage.IDKey] = uuid.New().String()
	}

	key := table + stored.ID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records.Get(key); ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrAlreadyExists, stored.ID())
	}
	s.records.Put(key, stored)

	return storage.NormalizeRecord(stored), nil
}

// Update replaces the row with the same id
func (s *Storage) Update(ctx context.Context, uri string, rec storage.Record) (storage.Record, error) {
	table, err := tableKey(uri)
	if err != nil {
		return nil, err
	}
	if rec.ID() == "" {
		return nil, storage.ErrMissingID
	}

	stored := storage.NormalizeRecord(rec)
	key := table + stored.ID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records.Get(key); !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, stored.ID())
	}
	s.records.Put(key, stored)

	return storage.NormalizeRecord(stored), nil
}

// Save is a no-op, memory contents are never persisted
func (s *Storage) Save(ctx context.Context, nice, wait bool) (bool, error) {
	return true, nil
}

// Size returns the number of stored records across all tables
func (s *Storage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Size()
}

func tableKey(uri string) (string, error) {
	u, err := storage.ParseURI(uri)
	if err != nil {
		return "", err
	}
	if u.Collection == "" {
		return "", fmt.Errorf("%w: %q has no collection", storage.ErrInvalidURI, uri)
	}
	return u.Namespace + "/" + u.Database + "/" + u.Collection + "/", nil
}
