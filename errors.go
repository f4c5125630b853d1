package vecsim

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecsim/hnsw"
	"github.com/hupe1980/vecsim/persistence"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed index.
	ErrClosed = errors.New("index is closed")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrCapacityExceeded is returned when an insert would exceed the
	// capacity fixed at construction time.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrDuplicateID is returned when an id is inserted twice.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrSnapshotMismatch is returned when a stored snapshot does not
	// match the requested index shape.
	ErrSnapshotMismatch = errors.New("snapshot does not match index parameters")

	// ErrInternal wraps a panic recovered at the API boundary.
	ErrInternal = errors.New("internal error")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *hnsw.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	var ce *hnsw.ErrCapacityExceeded
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	}
	var dl *hnsw.ErrDuplicateLabel
	if errors.As(err, &dl) {
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	}

	// Snapshot shape and integrity normalization.
	if errors.Is(err, persistence.ErrInvalidMagic) ||
		errors.Is(err, persistence.ErrInvalidVersion) ||
		errors.Is(err, persistence.ErrChecksumMismatch) ||
		errors.Is(err, persistence.ErrTruncated) {
		return fmt.Errorf("%w: %w", ErrSnapshotMismatch, err)
	}

	return err
}
