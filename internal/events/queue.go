package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue moves serialized appointment events between the API process and the
// notification worker.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is a single queue delivery.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Kind discriminates the payload envelope.
type Kind string

const (
	KindBooked        Kind = "appointment_booked.v1"
	KindRescheduled   Kind = "appointment_rescheduled.v1"
	KindStatusChanged Kind = "appointment_status_changed.v1"
)

// Envelope wraps one event for transport.
type Envelope struct {
	ID            string                      `json:"id"`
	Kind          Kind                        `json:"kind"`
	Booked        *AppointmentBookedV1        `json:"booked,omitempty"`
	Rescheduled   *AppointmentRescheduledV1   `json:"rescheduled,omitempty"`
	StatusChanged *AppointmentStatusChangedV1 `json:"status_changed,omitempty"`
}

// Encode serializes the envelope, assigning an id when missing.
func (e Envelope) Encode() (Envelope, string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("events: encode envelope: %w", err)
	}
	return e, string(body), nil
}

// DecodeEnvelope parses a queue message body.
func DecodeEnvelope(body string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return Envelope{}, fmt.Errorf("events: decode envelope: %w", err)
	}
	return env, nil
}
