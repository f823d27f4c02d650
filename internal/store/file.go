package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"golang.org/x/sync/semaphore"
)

// File names of the collections inside the data directory.
const (
	AccountsFile    = "account.json"
	EnrollmentsFile = "purchase.json"
)

// DefaultTimeout bounds lock acquisition and I/O of a single store call.
const DefaultTimeout = 5 * time.Second

// FileStore keeps every collection in its own indented JSON file.
// Writes replace the file through a rename, so a reader sees either the old
// or the new snapshot and never a partial one.
type FileStore struct {
	dir     string
	timeout time.Duration
	files   map[Collection]string
	locks   map[Collection]*semaphore.Weighted
}

// NewFileStore creates dir if needed and returns a store rooted there.
// timeout of 0 means DefaultTimeout.
func NewFileStore(dir string, timeout time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FileStore{
		dir:     abs,
		timeout: timeout,
		files: map[Collection]string{
			Accounts:    filepath.Join(abs, AccountsFile),
			Enrollments: filepath.Join(abs, EnrollmentsFile),
		},
		locks: map[Collection]*semaphore.Weighted{
			Accounts:    semaphore.NewWeighted(1),
			Enrollments: semaphore.NewWeighted(1),
		},
	}, nil
}

// Location returns the absolute path of the collection file.
func (s *FileStore) Location(c Collection) string {
	return s.files[c]
}

// Load decodes the current snapshot of c into v.
func (s *FileStore) Load(ctx context.Context, c Collection, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.load(c, v)
}

// Save replaces the snapshot of c with v.
func (s *FileStore) Save(ctx context.Context, c Collection, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.lock(ctx, c)
	if err != nil {
		return err
	}
	defer unlock()
	return s.save(ctx, c, v)
}

// View decodes c into v under the collection lock. A collection that was
// never saved leaves v at its zero value.
func (s *FileStore) View(ctx context.Context, c Collection, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.lock(ctx, c)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.load(c, v); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Update loads c into v, calls fn, and saves v if fn returns nil. The whole
// cycle holds the collection lock. A collection that was never saved is
// presented to fn as the zero value of v.
func (s *FileStore) Update(ctx context.Context, c Collection, v any, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.lock(ctx, c)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.load(c, v); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.save(ctx, c, v)
}

func (s *FileStore) lock(ctx context.Context, c Collection) (func(), error) {
	sem, ok := s.locks[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("lock %s: %w", c, err)
	}
	return func() { sem.Release(1) }, nil
}

func (s *FileStore) load(c Collection, v any) error {
	path, ok := s.files[c]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, c)
		}
		return fmt.Errorf("read %s: %w", c, err)
	}
	return decode(c, data, v)
}

func (s *FileStore) save(ctx context.Context, c Collection, v any) error {
	path, ok := s.files[c]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrWriteFailure, c, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailure, c, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailure, c, err)
	}
	return nil
}

// decode resets v and unmarshals data into it.
func decode(c Collection, data []byte, v any) error {
	reset(v)
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrCorrupt, c)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, c, err)
	}
	return nil
}

// reset sets the value behind the pointer v to its zero value, so decoding
// into a reused map does not merge with stale keys.
func reset(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
	}
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}

	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
