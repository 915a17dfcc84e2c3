package schedule

import (
	"strings"
	"time"
)

// AppointmentType determines how the visit is held.
type AppointmentType string

const (
	TypeInPerson  AppointmentType = "in_person"
	TypeVideoCall AppointmentType = "video_call"
	TypePhoneCall AppointmentType = "phone_call"
)

// Valid reports whether the type is recognized.
func (t AppointmentType) Valid() bool {
	switch t {
	case TypeInPerson, TypeVideoCall, TypePhoneCall:
		return true
	}
	return false
}

// RequiresMeetingLink reports whether the type needs a meeting link.
func (t AppointmentType) RequiresMeetingLink() bool {
	return t == TypeVideoCall
}

// Appointment is the central scheduling entity. It is never physically
// deleted; cancellation is a status transition, preserving audit history.
type Appointment struct {
	ID                 string          `json:"id"`
	DoctorID           string          `json:"doctorId"`
	PatientID          string          `json:"patientId"`
	Interval           Interval        `json:"interval"`
	Type               AppointmentType `json:"type"`
	Status             Status          `json:"status"`
	Reason             string          `json:"reason"`
	Notes              string          `json:"notes,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	MeetingLink        string          `json:"meetingLink,omitempty"`
	PatientName        string          `json:"patientName,omitempty"`
	DoctorName         string          `json:"doctorName,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Clone returns a copy safe to hand to callers.
func (a *Appointment) Clone() *Appointment {
	cp := *a
	return &cp
}

// ConflictSummary identifies an appointment blocking a proposed interval.
type ConflictSummary struct {
	ID       string   `json:"id"`
	Status   Status   `json:"status"`
	Interval Interval `json:"interval"`
}

// BookRequest is the input for booking a new appointment.
type BookRequest struct {
	DoctorID        string          `json:"doctorId"`
	PatientID       string          `json:"patientId"`
	Start           time.Time       `json:"start"`
	DurationMinutes int             `json:"durationMinutes"`
	Type            AppointmentType `json:"type"`
	Reason          string          `json:"reason"`
	Notes           string          `json:"notes,omitempty"`
	MeetingLink     string          `json:"meetingLink,omitempty"`
}

// Interval returns the requested slot as a normalized interval.
func (r *BookRequest) Interval() Interval {
	return NewInterval(r.Start, r.DurationMinutes)
}

// Validate checks the booking preconditions before admission.
func (r *BookRequest) Validate() error {
	if strings.TrimSpace(r.DoctorID) == "" {
		return &ValidationError{Field: "doctorId", Message: "doctorId is required"}
	}
	if strings.TrimSpace(r.PatientID) == "" {
		return &ValidationError{Field: "patientId", Message: "patientId is required"}
	}
	if err := r.Interval().Validate(); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return &ValidationError{Field: "type", Message: "type must be in_person, video_call or phone_call"}
	}
	if strings.TrimSpace(r.Reason) == "" {
		return &ValidationError{Field: "reason", Message: "reason is required"}
	}
	if r.Type.RequiresMeetingLink() && strings.TrimSpace(r.MeetingLink) == "" {
		return &ValidationError{Field: "meetingLink", Message: "meetingLink is required for video_call appointments"}
	}
	if !r.Type.RequiresMeetingLink() && strings.TrimSpace(r.MeetingLink) != "" {
		return &ValidationError{Field: "meetingLink", Message: "meetingLink is only allowed for video_call appointments"}
	}
	return nil
}

// ListFilter narrows and paginates appointment listings.
type ListFilter struct {
	DoctorID  string
	PatientID string
	Status    Status
	Type      AppointmentType
	From      time.Time // inclusive lower bound on interval start
	To        time.Time // exclusive upper bound on interval start
	Limit     int
	Offset    int
}
