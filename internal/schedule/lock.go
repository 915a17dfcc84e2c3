package schedule

import "sync"

// doctorLocks serializes scheduling writes per doctor. Requests for different
// doctors proceed in parallel; requests for the same doctor take turns, so the
// conflict check and the commit behave as one atomic unit.
type doctorLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDoctorLocks() *doctorLocks {
	return &doctorLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the doctor's mutex and returns the matching release func.
// Entries are never evicted; the map is bounded by the number of doctors.
func (l *doctorLocks) acquire(doctorID string) func() {
	l.mu.Lock()
	m, ok := l.locks[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doctorID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
