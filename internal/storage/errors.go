// Package storage holds the sentinel errors shared by every Persistence Port
// implementation. Repositories return these so services never depend on a
// concrete driver's error types.
package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflicting concurrent update")
	ErrReferenced = errors.New("still referenced by loans")
	ErrFailure    = errors.New("storage failure")
)

// Failure wraps a driver error as an opaque storage failure.
func Failure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFailure, op, err)
}
