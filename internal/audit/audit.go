// Package audit provides the append-only trail of scheduling mutations.
// Appointments are never physically deleted, and every write to one is
// recorded here for clinical accountability.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of scheduling mutation.
type Action string

const (
	ActionBooked        Action = "appointment.booked"
	ActionRescheduled   Action = "appointment.rescheduled"
	ActionStatusChanged Action = "appointment.status_changed"
	ActionNotesUpdated  Action = "appointment.notes_updated"
)

// Entry is one immutable audit record.
type Entry struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointmentId"`
	DoctorID      string    `json:"doctorId"`
	Action        Action    `json:"action"`
	FromStatus    string    `json:"fromStatus,omitempty"`
	ToStatus      string    `json:"toStatus,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Trail persists audit entries.
type Trail struct {
	db *sql.DB
}

// NewTrail creates an audit trail backed by the given database handle.
func NewTrail(db *sql.DB) *Trail {
	return &Trail{db: db}
}

// Record appends an entry. Failures are reported but must not abort the
// scheduling operation that already committed.
func (t *Trail) Record(ctx context.Context, entry Entry) error {
	if t == nil || t.db == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO appointment_audit (id, appointment_id, doctor_id, action, from_status, to_status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.db.ExecContext(ctx, query,
		entry.ID,
		entry.AppointmentID,
		entry.DoctorID,
		string(entry.Action),
		entry.FromStatus,
		entry.ToStatus,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// ListByAppointment returns the appointment's history, newest first.
func (t *Trail) ListByAppointment(ctx context.Context, appointmentID string, limit int) ([]Entry, error) {
	if t == nil || t.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, appointment_id, doctor_id, action, from_status, to_status, detail, created_at
		FROM appointment_audit
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := t.db.QueryContext(ctx, query, appointmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			action string
		)
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.DoctorID, &action, &e.FromStatus, &e.ToStatus, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}
	return entries, nil
}
