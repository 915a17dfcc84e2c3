package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medivuno/scheduler/internal/clinic"
	"github.com/medivuno/scheduler/internal/directory"
	"github.com/medivuno/scheduler/internal/events"
	"github.com/medivuno/scheduler/pkg/logging"
)

// SettingsStore retrieves per-doctor notification preferences.
type SettingsStore interface {
	Get(ctx context.Context, doctorID string) (*clinic.Settings, error)
}

// DeliveryRecorder persists notification delivery attempts.
type DeliveryRecorder interface {
	Record(ctx context.Context, d *Delivery) error
}

// Service turns appointment events into doctor-facing emails.
type Service struct {
	email      EmailSender
	settings   SettingsStore
	lookup     directory.Lookup
	deliveries DeliveryRecorder
	logger     *logging.Logger
}

// NewService creates a notification service. Settings, lookup and delivery
// log are optional.
func NewService(email EmailSender, settings SettingsStore, lookup directory.Lookup, deliveries DeliveryRecorder, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		settings:   settings,
		lookup:     lookup,
		deliveries: deliveries,
		logger:     logger,
	}
}

// NotifyBooked emails the doctor when a new appointment is booked.
func (s *Service) NotifyBooked(ctx context.Context, evt events.AppointmentBookedV1) error {
	prefs, ok, err := s.emailPrefs(ctx, evt.DoctorID, func(n clinic.NotificationPrefs) bool { return n.NotifyOnBooking })
	if err != nil || !ok {
		return err
	}

	patientName := s.patientName(ctx, evt.PatientID)
	end := evt.Start.Add(time.Duration(evt.DurationMinutes) * time.Minute)

	subject := fmt.Sprintf("New appointment: %s", patientName)
	body := fmt.Sprintf(`%s booked a %s appointment.

When: %s - %s
Duration: %d minutes
Reason: %s
`,
		patientName, evt.Type,
		evt.Start.Format("Monday, January 2 at 3:04 PM"), end.Format("3:04 PM"),
		evt.DurationMinutes, orDash(evt.Reason))
	if evt.MeetingLink != "" {
		body += fmt.Sprintf("Meeting link: %s\n", evt.MeetingLink)
	}

	return s.deliver(ctx, evt.EventID, evt.AppointmentID, prefs, subject, body)
}

// NotifyRescheduled emails the doctor when an appointment moves.
func (s *Service) NotifyRescheduled(ctx context.Context, evt events.AppointmentRescheduledV1) error {
	prefs, ok, err := s.emailPrefs(ctx, evt.DoctorID, func(n clinic.NotificationPrefs) bool { return n.NotifyOnReschedule })
	if err != nil || !ok {
		return err
	}

	patientName := s.patientName(ctx, evt.PatientID)
	subject := fmt.Sprintf("Appointment rescheduled: %s", patientName)
	body := fmt.Sprintf(`The appointment with %s has moved.

Was: %s
Now: %s
Duration: %d minutes
`,
		patientName,
		evt.OldStart.Format("Monday, January 2 at 3:04 PM"),
		evt.Start.Format("Monday, January 2 at 3:04 PM"),
		evt.DurationMinutes)

	return s.deliver(ctx, evt.EventID, evt.AppointmentID, prefs, subject, body)
}

// NotifyStatusChanged emails the doctor when an appointment changes status.
func (s *Service) NotifyStatusChanged(ctx context.Context, evt events.AppointmentStatusChangedV1) error {
	prefs, ok, err := s.emailPrefs(ctx, evt.DoctorID, func(n clinic.NotificationPrefs) bool { return n.NotifyOnStatusChange })
	if err != nil || !ok {
		return err
	}

	patientName := s.patientName(ctx, evt.PatientID)
	subject := fmt.Sprintf("Appointment %s: %s", evt.To, patientName)
	body := fmt.Sprintf(`The appointment with %s on %s changed from %s to %s.
`,
		patientName, evt.Start.Format("Monday, January 2 at 3:04 PM"), evt.From, evt.To)
	if evt.Reason != "" {
		body += fmt.Sprintf("Reason: %s\n", evt.Reason)
	}

	return s.deliver(ctx, evt.EventID, evt.AppointmentID, prefs, subject, body)
}

// emailPrefs loads the doctor's settings and reports whether email should go
// out for this kind of event.
func (s *Service) emailPrefs(ctx context.Context, doctorID string, wants func(clinic.NotificationPrefs) bool) (clinic.NotificationPrefs, bool, error) {
	if s.settings == nil || s.email == nil {
		s.logger.Debug("notify: email not configured, skipping", "doctor_id", doctorID)
		return clinic.NotificationPrefs{}, false, nil
	}

	settings, err := s.settings.Get(ctx, doctorID)
	if err != nil {
		s.logger.Error("notify: failed to load doctor settings", "error", err, "doctor_id", doctorID)
		return clinic.NotificationPrefs{}, false, fmt.Errorf("notify: get settings: %w", err)
	}

	prefs := settings.Notifications
	if !prefs.EmailEnabled || !wants(prefs) || len(prefs.GetEmailRecipients()) == 0 {
		s.logger.Debug("notify: email disabled for event", "doctor_id", doctorID)
		return clinic.NotificationPrefs{}, false, nil
	}
	return prefs, true, nil
}

// deliver fans the email out to every recipient and records each attempt.
// One failed recipient does not stop the rest.
func (s *Service) deliver(ctx context.Context, eventID, appointmentID string, prefs clinic.NotificationPrefs, subject, body string) error {
	var errs []error
	for _, recipient := range prefs.GetEmailRecipients() {
		sendErr := s.email.Send(ctx, EmailMessage{
			To:      recipient,
			Subject: subject,
			Body:    body,
		})
		if sendErr != nil {
			s.logger.Error("notify: email delivery failed", "error", sendErr, "to", recipient, "appointment_id", appointmentID)
			errs = append(errs, sendErr)
		}
		s.recordDelivery(ctx, eventID, appointmentID, recipient, subject, sendErr)
	}
	return errors.Join(errs...)
}

func (s *Service) recordDelivery(ctx context.Context, eventID, appointmentID, recipient, subject string, sendErr error) {
	if s.deliveries == nil {
		return
	}
	d := &Delivery{
		EventID:       eventID,
		AppointmentID: appointmentID,
		Channel:       "email",
		Recipient:     recipient,
		Subject:       subject,
		Status:        DeliverySent,
	}
	if sendErr != nil {
		d.Status = DeliveryFailed
		d.ErrorMessage = sendErr.Error()
	}
	if err := s.deliveries.Record(ctx, d); err != nil {
		s.logger.Error("notify: failed to record delivery", "error", err, "appointment_id", appointmentID)
	}
}

func (s *Service) patientName(ctx context.Context, patientID string) string {
	if s.lookup != nil {
		if p, err := s.lookup.Patient(ctx, patientID); err == nil && p.Name != "" {
			return p.Name
		}
	}
	return "A patient"
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
