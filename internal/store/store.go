// Package store persists the accounts and enrollments collections.
//
// Each collection is read and written as a whole. Update runs the
// load-mutate-save cycle of one collection as a single serialized step, so
// concurrent writers of the same collection never lose each other's changes.
package store

import (
	"errors"
)

// Collection names a durable dataset.
type Collection string

const (
	// Accounts holds models.Accounts.
	Accounts Collection = "accounts"
	// Enrollments holds models.Enrollments.
	Enrollments Collection = "enrollments"
)

var (
	// ErrNotFound is returned by Load when the collection was never saved.
	ErrNotFound = errors.New("store: collection not found")
	// ErrCorrupt is returned when stored bytes do not decode into the collection shape.
	ErrCorrupt = errors.New("store: collection is corrupt")
	// ErrWriteFailure is returned when a collection could not be persisted.
	ErrWriteFailure = errors.New("store: write failed")
	// ErrConflict is returned when optimistic retries are exhausted.
	ErrConflict = errors.New("store: concurrent update conflict")
	// ErrUnknownCollection is returned for a collection the store does not manage.
	ErrUnknownCollection = errors.New("store: unknown collection")
)

// Collections lists every collection in a stable order.
func Collections() []Collection {
	return []Collection{Accounts, Enrollments}
}
