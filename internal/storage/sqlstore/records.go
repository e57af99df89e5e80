package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iudanet/tubewave/internal/storage"
)

var (
	_ storage.Storage   = (*Storage)(nil)
	_ storage.Lifecycle = (*Storage)(nil)
)

const waveField = "wave"

// Query returns rows of the table addressed by uri matching params.
// An equality filter on wave is evaluated by the database, the rest in Go.
func (s *Storage) Query(ctx context.Context, uri string, params storage.Params) ([]storage.Record, error) {
	u, err := tableOf(uri)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, body
		FROM tube_records
		WHERE namespace = ? AND db_name = ? AND collection = ?
	`
	args := []any{u.Namespace, u.Database, u.Collection}

	if raw, ok := params[waveField]; ok {
		if wave, ok := storage.Int64(raw); ok {
			query += " AND wave = ?"
			args = append(args, wave)
		}
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]storage.Record, 0)
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return storage.Apply(records, params), nil
}

// Put inserts a new record, generating an id when missing
func (s *Storage) Put(ctx context.Context, uri string, rec storage.Record) (storage.Record, error) {
	u, err := tableOf(uri)
	if err != nil {
		return nil, err
	}

	stored := storage.NormalizeRecord(rec)
	if stored.ID() == "" {
		stored[storage.IDKey] = uuid.New().String()
	}

	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO tube_records (namespace, db_name, collection, id, wave, body)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		u.Namespace,
		u.Database,
		u.Collection,
		stored.ID(),
		waveOf(stored),
		string(body),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrAlreadyExists, stored.ID())
		}
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	return stored, nil
}

// Update replaces an existing record matched by id
func (s *Storage) Update(ctx context.Context, uri string, rec storage.Record) (storage.Record, error) {
	u, err := tableOf(uri)
	if err != nil {
		return nil, err
	}
	if rec.ID() == "" {
		return nil, storage.ErrMissingID
	}

	stored := storage.NormalizeRecord(rec)
	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		UPDATE tube_records
		SET wave = ?, body = ?
		WHERE namespace = ? AND db_name = ? AND collection = ? AND id = ?
	`
	result, err := s.db.ExecContext(ctx, s.rebind(query),
		waveOf(stored),
		string(body),
		u.Namespace,
		u.Database,
		u.Collection,
		stored.ID(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, stored.ID())
	}

	return stored, nil
}

// Save checkpoints the SQLite WAL when wait is set.
// PostgreSQL commits are durable already.
func (s *Storage) Save(ctx context.Context, nice, wait bool) (bool, error) {
	if !wait || s.dialect != DialectSQLite {
		return true, nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return false, fmt.Errorf("failed to checkpoint wal: %w", err)
	}
	return true, nil
}

func tableOf(uri string) (*storage.URI, error) {
	u, err := storage.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if u.Collection == "" {
		return nil, fmt.Errorf("%w: %q has no collection", storage.ErrInvalidURI, uri)
	}
	return u, nil
}

func waveOf(rec storage.Record) sql.NullInt64 {
	wave, ok := storage.Int64(rec[waveField])
	return sql.NullInt64{Int64: wave, Valid: ok}
}

func decode(body string) (storage.Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()

	var rec storage.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return storage.NormalizeRecord(rec), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}

	return false
}
