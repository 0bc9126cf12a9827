package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrStore             = errors.New("rate limit store failure")
	ErrInvalidLimit      = errors.New("limit must be positive")
	ErrEmptyToken        = errors.New("token is required")
)

// StoreError reports that the shared store could not run the check sequence.
// It matches ErrStore with errors.Is and unwraps to the underlying cause.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

func IsStoreError(err error) bool {
	return errors.Is(err, ErrStore)
}
