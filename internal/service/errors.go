package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a required field is empty.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateUsername is returned when the username is already registered.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEnrollment is returned when the course was already issued to the user.
	ErrDuplicateEnrollment = errors.New("course already assigned")
	// ErrAccountNotFound is returned when an enrollment targets an unknown username.
	ErrAccountNotFound = errors.New("account not found")
	// ErrStoreUnavailable wraps every storage-layer failure.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// storeErr passes business-rule errors through and marks everything else
// as a storage failure, keeping the original cause matchable.
func storeErr(err error) error {
	switch {
	case errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrDuplicateEnrollment),
		errors.Is(err, ErrAccountNotFound):
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
