package collection

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateItem  = errors.New("item already in collection")
	ErrNotFound       = errors.New("item not found")
	ErrPartialFailure = errors.New("operation partially applied")
	ErrTransientFetch = errors.New("fetch failed")
	ErrSameCollection = errors.New("source and target collection are the same")
)

// PartialFailureError reports a multi-step operation that stopped after some
// of its steps were applied. Nothing is rolled back.
type PartialFailureError struct {
	Op     string
	Done   int
	Failed int
	Err    error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: %d applied, %d failed: %v", e.Op, e.Done, e.Failed, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func (e *PartialFailureError) Is(target error) bool { return target == ErrPartialFailure }

// TransientError wraps a failed read of the backing store.
func TransientError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransientFetch, err)
}
