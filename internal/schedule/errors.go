package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an appointment id does not exist.
var ErrNotFound = errors.New("schedule: appointment not found")

// ValidationError reports malformed input. It is never retried automatically.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schedule: invalid %s: %s", e.Field, e.Message)
}

// SlotConflictError is returned when a proposed interval overlaps existing
// appointments for the doctor. The caller may retry with another interval.
type SlotConflictError struct {
	Conflicts []ConflictSummary
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("schedule: slot conflict with appointments [%s]", strings.Join(e.ConflictingIDs(), ", "))
}

// ConflictingIDs returns the ids of the conflicting appointments.
func (e *SlotConflictError) ConflictingIDs() []string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, c.ID)
	}
	return ids
}

// TransitionError reports a status change not permitted from the current
// state. Op is set when a non-transition operation (reschedule) was gated by
// status instead.
type TransitionError struct {
	From Status
	To   Status
	Op   string
}

func (e *TransitionError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("schedule: %s not permitted while %s", e.Op, e.From)
	}
	return fmt.Sprintf("schedule: invalid transition from %s to %s", e.From, e.To)
}

// AlreadyFinalizedError reports a retry against a terminal state that differs
// from the requested target.
type AlreadyFinalizedError struct {
	Current   Status
	Requested Status
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("schedule: appointment already finalized as %s, cannot apply %s", e.Current, e.Requested)
}

// StorageError wraps an underlying persistence failure. The whole operation
// aborted, so a retry is safe.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("schedule: storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
