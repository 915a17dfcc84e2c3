package schedule

import "fmt"

// Status represents the lifecycle state of an appointment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// transitions is the closed set of legal status edges. Anything absent here
// fails with a TransitionError.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusInProgress: true,
		StatusCancelled:  true,
		StatusNoShow:     true,
	},
	StatusInProgress: {
		StatusCompleted: true,
	},
}

// allStatuses lists every valid status, used for parsing and exhaustive tests.
var allStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// ParseStatus converts a wire string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("schedule: unknown status %q", s)
}

// Valid reports whether the status is one of the closed enumeration.
func (s Status) Valid() bool {
	for _, st := range allStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Occupies reports whether an appointment in this status holds its time slot
// for conflict checking. Slot occupancy is derived from status only.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusInProgress
}

// CanTransition reports whether the edge from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// occupiedStatuses is the status set used in conflict queries.
var occupiedStatuses = []string{
	string(StatusPending),
	string(StatusConfirmed),
	string(StatusInProgress),
}
