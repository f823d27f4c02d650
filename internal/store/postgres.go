package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DefaultMaxAttempts bounds optimistic retries of a single Update.
const DefaultMaxAttempts = 5

// PostgresStore keeps every collection as one JSONB row of the collections
// table, versioned for optimistic concurrency. Each successful write also
// appends the snapshot to collection_history.
type PostgresStore struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
	// MaxAttempts is the number of optimistic cycles Update tries.
	MaxAttempts int

	timeout time.Duration
}

// NewPostgresStore creates a PostgresStore over db. The schema is created by
// db.InitPostgres.
func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PostgresStore{DB: db, MaxAttempts: DefaultMaxAttempts, timeout: timeout}
}

// Location names the row backing c.
func (s *PostgresStore) Location(c Collection) string {
	return "postgres:collections/" + string(c)
}

// Load decodes the current snapshot of c into v.
func (s *PostgresStore) Load(ctx context.Context, c Collection, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var data []byte
	err := s.DB.QueryRowContext(ctx, `SELECT data FROM collections WHERE name = $1`, string(c)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", c, err)
	}
	return decode(c, data, v)
}

// View is Load with a missing collection reported as the zero value.
// A single-row read is already consistent, so no lock is taken.
func (s *PostgresStore) View(ctx context.Context, c Collection, v any) error {
	if err := s.Load(ctx, c, v); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Save unconditionally replaces the snapshot of c with v.
func (s *PostgresStore) Save(ctx context.Context, c Collection, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrWriteFailure, c, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrWriteFailure, err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO collections (name, data, version) VALUES ($1, $2, 1)
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, version = collections.version + 1
		RETURNING version
	`, string(c), data).Scan(&version)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", ErrWriteFailure, c, err)
	}
	if err := appendHistory(ctx, tx, c, data, version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrWriteFailure, err)
	}
	return nil
}

// Update runs load-mutate-save with an optimistic version check. When a
// concurrent writer bumps the version first, the cycle starts over with the
// fresh snapshot, so fn may run more than once.
func (s *PostgresStore) Update(ctx context.Context, c Collection, v any, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	for i := 0; i < attempts; i++ {
		done, err := s.tryUpdate(ctx, c, v, fn)
		if err != nil {
			if isRetryable(err) {
				continue
			}
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrConflict, c, attempts)
}

func (s *PostgresStore) tryUpdate(ctx context.Context, c Collection, v any, fn func() error) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		data    []byte
		version int64
	)
	err = tx.QueryRowContext(ctx, `SELECT data, version FROM collections WHERE name = $1`, string(c)).Scan(&data, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		reset(v)
	case err != nil:
		return false, fmt.Errorf("load %s: %w", c, err)
	default:
		if err := decode(c, data, v); err != nil {
			return false, err
		}
	}

	if err := fn(); err != nil {
		return false, err
	}

	out, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("%w: encode %s: %w", ErrWriteFailure, c, err)
	}

	var res sql.Result
	if version == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO collections (name, data, version) VALUES ($1, $2, 1)
			ON CONFLICT (name) DO NOTHING
		`, string(c), out)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE collections SET data = $2, version = $3 + 1
			WHERE name = $1 AND version = $3
		`, string(c), out, version)
	}
	if err != nil {
		return false, fmt.Errorf("%w: write %s: %w", ErrWriteFailure, c, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, nil
	}

	if err := appendHistory(ctx, tx, c, out, version+1); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %w", ErrWriteFailure, err)
	}
	return true, nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, c Collection, data []byte, version int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO collection_history (name, data, version) VALUES ($1, $2, $3)
	`, string(c), data, version)
	if err != nil {
		return fmt.Errorf("%w: history %s: %w", ErrWriteFailure, c, err)
	}
	return nil
}

// isRetryable reports serialization failures and deadlocks.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
