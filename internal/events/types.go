package events

import "time"

// AppointmentBookedV1 is emitted after a booking commits.
type AppointmentBookedV1 struct {
	EventID         string    `json:"event_id"`
	AppointmentID   string    `json:"appointment_id"`
	DoctorID        string    `json:"doctor_id"`
	PatientID       string    `json:"patient_id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"type"`
	Reason          string    `json:"reason"`
	MeetingLink     string    `json:"meeting_link,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// AppointmentRescheduledV1 is emitted after a pending appointment moves to a
// new interval.
type AppointmentRescheduledV1 struct {
	EventID         string    `json:"event_id"`
	AppointmentID   string    `json:"appointment_id"`
	DoctorID        string    `json:"doctor_id"`
	PatientID       string    `json:"patient_id"`
	OldStart        time.Time `json:"old_start"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// AppointmentStatusChangedV1 is emitted after a status transition commits.
// Cancellations carry the recorded reason.
type AppointmentStatusChangedV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	PatientID     string    `json:"patient_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Reason        string    `json:"reason,omitempty"`
	Start         time.Time `json:"start"`
	OccurredAt    time.Time `json:"occurred_at"`
}
