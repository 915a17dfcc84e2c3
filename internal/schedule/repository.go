package schedule

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the persistence surface for appointments.
type Repository interface {
	Insert(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, appt *Appointment) error
	FindConflicts(ctx context.Context, doctorID string, interval Interval, excludeID string) ([]ConflictSummary, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, int, error)
}

// InMemoryRepository keeps appointments in a map. Used in tests and local
// development without Postgres.
type InMemoryRepository struct {
	mu    sync.RWMutex
	appts map[string]*Appointment
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{appts: make(map[string]*Appointment)}
}

// Insert stores a new appointment.
func (r *InMemoryRepository) Insert(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appts[appt.ID] = appt.Clone()
	return nil
}

// Get returns the appointment with the given id.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return appt.Clone(), nil
}

// Update overwrites the stored appointment.
func (r *InMemoryRepository) Update(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[appt.ID]; !ok {
		return ErrNotFound
	}
	r.appts[appt.ID] = appt.Clone()
	return nil
}

// FindConflicts scans the doctor's slot-occupying appointments for overlaps.
func (r *InMemoryRepository) FindConflicts(_ context.Context, doctorID string, interval Interval, excludeID string) ([]ConflictSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conflicts []ConflictSummary
	for _, appt := range r.appts {
		if appt.DoctorID != doctorID || appt.ID == excludeID {
			continue
		}
		if !appt.Status.Occupies() {
			continue
		}
		if Overlaps(appt.Interval, interval) {
			conflicts = append(conflicts, ConflictSummary{
				ID:       appt.ID,
				Status:   appt.Status,
				Interval: appt.Interval,
			})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Interval.Start.Before(conflicts[j].Interval.Start)
	})
	return conflicts, nil
}

// List returns appointments matching the filter, sorted by start ascending,
// along with the total match count before pagination.
func (r *InMemoryRepository) List(_ context.Context, filter ListFilter) ([]*Appointment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Appointment
	for _, appt := range r.appts {
		if !matchesFilter(appt, filter) {
			continue
		}
		matched = append(matched, appt.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Interval.Start.Before(matched[j].Interval.Start)
	})

	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func matchesFilter(appt *Appointment, filter ListFilter) bool {
	if filter.DoctorID != "" && appt.DoctorID != filter.DoctorID {
		return false
	}
	if filter.PatientID != "" && appt.PatientID != filter.PatientID {
		return false
	}
	if filter.Status != "" && appt.Status != filter.Status {
		return false
	}
	if filter.Type != "" && appt.Type != filter.Type {
		return false
	}
	if !filter.From.IsZero() && appt.Interval.Start.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !appt.Interval.Start.Before(filter.To) {
		return false
	}
	return true
}
