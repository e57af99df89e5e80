// Package boltdb stores tube tables in a BoltDB file, one bucket per table.
package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/tubewave/internal/storage"
)

var (
	_ storage.Storage   = (*Storage)(nil)
	_ storage.Lifecycle = (*Storage)(nil)
)

// Storage represents BoltDB storage implementation
type Storage struct {
	db *bbolt.DB
	mu sync.RWMutex
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	return &Storage{db: db}, nil
}

// Start checks that the database is open
func (s *Storage) Start(ctx context.Context) error {
	_, err := s.handle()
	return err
}

// Stop flushes and closes the database
func (s *Storage) Stop(ctx context.Context) error {
	return s.Close()
}

// Close closes the database connection. Closing twice is a no-op.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Query returns rows of the table addressed by uri matching params
func (s *Storage) Query(ctx context.Context, uri string, params storage.Params) ([]storage.Record, error) {
	bucketName, err := bucketFor(uri)
	if err != nil {
		return nil, err
	}
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows := make([]storage.Record, 0)
	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			// таблица еще не создана - пустой результат
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			rec, err := decode(v)
			if err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
			}
			rows = append(rows, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", uri, err)
	}

	return storage.Apply(rows, params), nil
}

// Put inserts rec into the table, generating an id when missing
func (s *Storage) Put(ctx context.Context, uri string, rec storage.Record) (storage.Record, error) {
	bucketName, err := bucketFor(uri)
	if err != nil {
		return nil, err
	}
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	stored := storage.NormalizeRecord(rec)
	if stored.ID() == "" {
		stored[storage.IDKey] = uuid.New().String()
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		if bucket.Get([]byte(stored.ID())) != nil {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, stored.ID())
		}
		if err := bucket.Put([]byte(stored.ID()), data); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transaction failed: %w", err)
	}

	return stored, nil
}

// Update replaces an existing record matched by id
func (s *Storage) Update(ctx context.Context, uri string, rec storage.Record) (storage.Record, error) {
	bucketName, err := bucketFor(uri)
	if err != nil {
		return nil, err
	}
	if rec.ID() == "" {
		return nil, storage.ErrMissingID
	}
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	stored := storage.NormalizeRecord(rec)
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil || bucket.Get([]byte(stored.ID())) == nil {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, stored.ID())
		}
		if err := bucket.Put([]byte(stored.ID()), data); err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update transaction failed: %w", err)
	}

	return stored, nil
}

// Save syncs the database file to disk when wait is set
func (s *Storage) Save(ctx context.Context, nice, wait bool) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}
	if !wait {
		// bbolt фиксирует каждую транзакцию, ждать нечего
		return true, nil
	}
	if err := db.Sync(); err != nil {
		return false, fmt.Errorf("failed to sync boltdb: %w", err)
	}
	return true, nil
}

func (s *Storage) handle() (*bbolt.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}
	return s.db, nil
}

func bucketFor(uri string) ([]byte, error) {
	u, err := storage.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if u.Collection == "" {
		return nil, fmt.Errorf("%w: %q has no collection", storage.ErrInvalidURI, uri)
	}
	return []byte(u.Namespace + "/" + u.Database + "/" + u.Collection), nil
}

func decode(data []byte) (storage.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec storage.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return storage.NormalizeRecord(rec), nil
}
