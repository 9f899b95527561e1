package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig signals an unrecoverable configuration problem (aborts the run).
	ErrConfig = errors.New("configuration error")
	// ErrMalformedRecord signals a log entry that could not be parsed.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrProvider signals an embedding or language-model provider failure.
	ErrProvider = errors.New("provider error")
	// ErrIndex signals a vector store failure.
	ErrIndex = errors.New("index error")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch signals a vector dimension mismatch against the collection.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Retryable reports whether err is transient and worth retrying with backoff.
// Provider and index faults are retryable; configuration errors are not.
func Retryable(err error) bool {
	if errors.Is(err, ErrConfig) || errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	return errors.Is(err, ErrProvider) || errors.Is(err, ErrIndex)
}

// DimensionMismatchError wraps ErrDimensionMismatch with both dimensions.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: collection expects %d, got %d", ErrDimensionMismatch.Error(), e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(want, got int) error {
	return &DimensionMismatchError{Want: want, Got: got}
}
