package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrValidation marks a malformed event rejected before it reaches the log.
	// The caller must fix the data; retrying the same payload will fail again.
	ErrValidation = stderrors.New("validation error")

	// ErrTransientStore marks a storage failure that is safe to retry at batch granularity.
	ErrTransientStore = stderrors.New("transient store error")
)

// ValidationError describes the first invalid field in a submitted batch.
// Index is the position of the offending event, or -1 for single-event submissions.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("event[%d]: %s %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransientStoreError wraps a storage error that may succeed on retry.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: transient store failure: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

func (e *TransientStoreError) Is(target error) bool {
	return target == ErrTransientStore
}

// Transient wraps err as a TransientStoreError. Nil stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientStoreError{Op: op, Err: err}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	return stderrors.Is(err, ErrTransientStore)
}

// SkippedUserWarning is reported when a user listed in the staleness index has
// no partial state left to merge. It is never fatal; the next cycle picks the
// user up again if new state lands.
type SkippedUserWarning struct {
	Segment string
	UserID  string
}

func (w SkippedUserWarning) Error() string {
	return fmt.Sprintf("segment %q: user %q has no partial state, skipped this cycle", w.Segment, w.UserID)
}
