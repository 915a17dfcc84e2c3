package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medivuno/scheduler/internal/audit"
	"github.com/medivuno/scheduler/internal/events"
	"github.com/medivuno/scheduler/internal/observability/metrics"
	"github.com/medivuno/scheduler/pkg/logging"
)

var scheduleTracer = otel.Tracer("scheduler.internal.schedule")

// EventPublisher dispatches events after a commit. It is invoked outside the
// per-doctor critical section and its failures never fail the operation.
type EventPublisher interface {
	PublishBooked(ctx context.Context, evt events.AppointmentBookedV1) error
	PublishRescheduled(ctx context.Context, evt events.AppointmentRescheduledV1) error
	PublishStatusChanged(ctx context.Context, evt events.AppointmentStatusChangedV1) error
}

// AuditRecorder appends scheduling mutations to the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// DayBoundsProvider resolves a doctor's local day window for "today" queries.
type DayBoundsProvider interface {
	DayBounds(ctx context.Context, doctorID string, now time.Time) (time.Time, time.Time, error)
}

// ServiceConfig wires the scheduler service dependencies.
type ServiceConfig struct {
	Repo      Repository
	Logger    *logging.Logger
	Metrics   *metrics.SchedulerMetrics
	Publisher EventPublisher
	Audit     AuditRecorder
	DayBounds DayBoundsProvider
	Clock     func() time.Time
}

// Service is the public scheduling surface: book, reschedule, transition,
// cancel and the read-side queries. Writes to one doctor's appointment set are
// serialized; the conflict check and the commit form one atomic unit.
type Service struct {
	repo      Repository
	locks     *doctorLocks
	logger    *logging.Logger
	metrics   *metrics.SchedulerMetrics
	publisher EventPublisher
	audit     AuditRecorder
	dayBounds DayBoundsProvider
	now       func() time.Time
}

// NewService constructs a scheduler service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Repo == nil {
		panic("schedule: repository required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:      cfg.Repo,
		locks:     newDoctorLocks(),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		publisher: cfg.Publisher,
		audit:     cfg.Audit,
		dayBounds: cfg.DayBounds,
		now:       cfg.Clock,
	}
}

// Book admits and persists a new pending appointment. Conflicting bookings
// fail with SlotConflictError listing the blocking appointment ids.
func (s *Service) Book(ctx context.Context, req *BookRequest) (*Appointment, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.book")
	defer span.End()

	if err := req.Validate(); err != nil {
		s.metrics.ObserveBooking("invalid")
		return nil, err
	}
	span.SetAttributes(attribute.String("scheduler.doctor_id", req.DoctorID))

	now := s.now()
	appt := &Appointment{
		ID:          uuid.NewString(),
		DoctorID:    req.DoctorID,
		PatientID:   req.PatientID,
		Interval:    req.Interval(),
		Type:        req.Type,
		Status:      StatusPending,
		Reason:      req.Reason,
		Notes:       req.Notes,
		MeetingLink: req.MeetingLink,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	admissionStart := time.Now()
	err := s.withDoctorLock(req.DoctorID, func() error {
		conflicts, err := s.repo.FindConflicts(ctx, req.DoctorID, appt.Interval, "")
		if err != nil {
			return &StorageError{Op: "conflict check", Err: err}
		}
		if len(conflicts) > 0 {
			return &SlotConflictError{Conflicts: conflicts}
		}
		if err := s.repo.Insert(ctx, appt); err != nil {
			return &StorageError{Op: "insert", Err: err}
		}
		return nil
	})
	s.metrics.ObserveAdmissionLatency(time.Since(admissionStart).Seconds())

	if err != nil {
		if conflict, ok := err.(*SlotConflictError); ok {
			s.metrics.ObserveBooking("conflict")
			s.metrics.ObserveConflict()
			s.logger.Info("booking rejected with slot conflict",
				"doctor_id", req.DoctorID, "conflicts", conflict.ConflictingIDs())
			return nil, err
		}
		span.RecordError(err)
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	s.metrics.ObserveBooking("booked")
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID, "doctor_id", appt.DoctorID, "start", appt.Interval.Start)

	s.recordAudit(ctx, audit.Entry{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		Action:        audit.ActionBooked,
		ToStatus:      string(appt.Status),
		Detail:        appt.Reason,
	})
	s.publishBooked(ctx, appt)
	return appt.Clone(), nil
}

// Reschedule moves a pending appointment to a new interval after re-running
// conflict admission against it, excluding the appointment itself.
func (s *Service) Reschedule(ctx context.Context, id string, newInterval Interval) (*Appointment, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.reschedule")
	defer span.End()

	if err := newInterval.Validate(); err != nil {
		return nil, err
	}
	newInterval = NewInterval(newInterval.Start, newInterval.DurationMinutes)

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapGet(err)
	}
	span.SetAttributes(attribute.String("scheduler.doctor_id", existing.DoctorID))

	var (
		appt     *Appointment
		oldStart time.Time
	)
	err = s.withDoctorLock(existing.DoctorID, func() error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return wrapGet(err)
		}
		if current.Status != StatusPending {
			return &TransitionError{From: current.Status, Op: "reschedule"}
		}
		conflicts, err := s.repo.FindConflicts(ctx, current.DoctorID, newInterval, current.ID)
		if err != nil {
			return &StorageError{Op: "conflict check", Err: err}
		}
		if len(conflicts) > 0 {
			return &SlotConflictError{Conflicts: conflicts}
		}
		oldStart = current.Interval.Start
		current.Interval = newInterval
		current.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, current); err != nil {
			return &StorageError{Op: "update", Err: err}
		}
		appt = current
		return nil
	})
	if err != nil {
		if _, ok := err.(*SlotConflictError); ok {
			s.metrics.ObserveConflict()
			return nil, err
		}
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("appointment rescheduled",
		"appointment_id", appt.ID, "doctor_id", appt.DoctorID, "start", appt.Interval.Start)

	s.recordAudit(ctx, audit.Entry{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		Action:        audit.ActionRescheduled,
		Detail:        "moved from " + oldStart.Format(time.RFC3339),
	})
	if s.publisher != nil {
		evt := events.AppointmentRescheduledV1{
			EventID:         uuid.NewString(),
			AppointmentID:   appt.ID,
			DoctorID:        appt.DoctorID,
			PatientID:       appt.PatientID,
			OldStart:        oldStart,
			Start:           appt.Interval.Start,
			DurationMinutes: appt.Interval.DurationMinutes,
			OccurredAt:      s.now(),
		}
		if err := s.publisher.PublishRescheduled(ctx, evt); err != nil {
			s.logger.Error("failed to publish reschedule event", "error", err, "appointment_id", appt.ID)
		}
	}
	return appt.Clone(), nil
}

// TransitionStatus applies a table-validated status change. Repeating a
// transition the appointment already holds is a no-op; a retry against a
// different terminal state fails with AlreadyFinalizedError.
func (s *Service) TransitionStatus(ctx context.Context, id string, target Status, reason string) (*Appointment, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.transition")
	defer span.End()

	if !target.Valid() {
		return nil, &ValidationError{Field: "targetStatus", Message: "unknown status"}
	}
	return s.transition(ctx, span, id, target, reason, false)
}

// Cancel transitions to cancelled from any non-terminal state, recording the
// cancellation reason. It is never blocked by being confirmed versus pending.
func (s *Service) Cancel(ctx context.Context, id string, reason string) (*Appointment, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.cancel")
	defer span.End()

	return s.transition(ctx, span, id, StatusCancelled, reason, true)
}

// UpdateNotes rewrites the doctor-facing notes. Notes stay mutable in every
// status, terminal ones included.
func (s *Service) UpdateNotes(ctx context.Context, id string, notes string) (*Appointment, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapGet(err)
	}

	var appt *Appointment
	err = s.withDoctorLock(existing.DoctorID, func() error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return wrapGet(err)
		}
		current.Notes = notes
		current.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, current); err != nil {
			return &StorageError{Op: "update", Err: err}
		}
		appt = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Entry{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		Action:        audit.ActionNotesUpdated,
	})
	return appt.Clone(), nil
}

// Get returns a single appointment.
func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapGet(err)
	}
	return appt, nil
}

// List returns filtered appointments sorted by start ascending plus the total
// match count. Reads may observe slightly stale snapshots; they never block
// writers.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, &StorageError{Op: "list", Err: err}
	}
	return appts, total, nil
}

// ListToday returns the doctor's appointments whose start falls inside the
// doctor's configured local day. Without a configured time zone the UTC day
// is used.
func (s *Service) ListToday(ctx context.Context, doctorID string) ([]*Appointment, error) {
	now := s.now()
	from, to := now.Truncate(24*time.Hour), now.Truncate(24*time.Hour).Add(24*time.Hour)
	if s.dayBounds != nil {
		var err error
		from, to, err = s.dayBounds.DayBounds(ctx, doctorID, now)
		if err != nil {
			s.logger.Warn("falling back to UTC day bounds", "error", err, "doctor_id", doctorID)
			from, to = now.Truncate(24*time.Hour), now.Truncate(24*time.Hour).Add(24*time.Hour)
		}
	}

	appts, _, err := s.repo.List(ctx, ListFilter{
		DoctorID: doctorID,
		From:     from,
		To:       to,
		Limit:    100,
	})
	if err != nil {
		return nil, &StorageError{Op: "list today", Err: err}
	}
	return appts, nil
}

func (s *Service) transition(ctx context.Context, span trace.Span, id string, target Status, reason string, force bool) (*Appointment, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapGet(err)
	}
	span.SetAttributes(attribute.String("scheduler.doctor_id", existing.DoctorID))

	var (
		appt    *Appointment
		from    Status
		applied bool
	)
	err = s.withDoctorLock(existing.DoctorID, func() error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return wrapGet(err)
		}
		if current.Status == target {
			// Idempotent retry: same final state, no error the second time.
			appt = current
			return nil
		}
		if current.Status.Terminal() {
			return &AlreadyFinalizedError{Current: current.Status, Requested: target}
		}
		if !force && !CanTransition(current.Status, target) {
			return &TransitionError{From: current.Status, To: target}
		}

		from = current.Status
		current.Status = target
		current.UpdatedAt = s.now()
		if target == StatusCancelled {
			current.CancellationReason = reason
			// meetingLink is present iff type is video_call and not cancelled.
			current.MeetingLink = ""
		}
		if err := s.repo.Update(ctx, current); err != nil {
			return &StorageError{Op: "update", Err: err}
		}
		appt = current
		applied = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !applied {
		return appt.Clone(), nil
	}

	s.metrics.ObserveTransition(string(from), string(target))
	s.logger.Info("appointment status changed",
		"appointment_id", appt.ID, "doctor_id", appt.DoctorID, "from", from, "to", target)

	s.recordAudit(ctx, audit.Entry{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		Action:        audit.ActionStatusChanged,
		FromStatus:    string(from),
		ToStatus:      string(target),
		Detail:        reason,
	})
	if s.publisher != nil {
		evt := events.AppointmentStatusChangedV1{
			EventID:       uuid.NewString(),
			AppointmentID: appt.ID,
			DoctorID:      appt.DoctorID,
			PatientID:     appt.PatientID,
			From:          string(from),
			To:            string(target),
			Reason:        reason,
			Start:         appt.Interval.Start,
			OccurredAt:    s.now(),
		}
		if err := s.publisher.PublishStatusChanged(ctx, evt); err != nil {
			s.logger.Error("failed to publish status event", "error", err, "appointment_id", appt.ID)
		}
	}
	return appt.Clone(), nil
}

// withDoctorLock runs fn inside the doctor's critical section. Collaborator
// I/O must stay outside fn.
func (s *Service) withDoctorLock(doctorID string, fn func() error) error {
	unlock := s.locks.acquire(doctorID)
	defer unlock()
	return fn()
}

func (s *Service) publishBooked(ctx context.Context, appt *Appointment) {
	if s.publisher == nil {
		return
	}
	evt := events.AppointmentBookedV1{
		EventID:         uuid.NewString(),
		AppointmentID:   appt.ID,
		DoctorID:        appt.DoctorID,
		PatientID:       appt.PatientID,
		Start:           appt.Interval.Start,
		DurationMinutes: appt.Interval.DurationMinutes,
		Type:            string(appt.Type),
		Reason:          appt.Reason,
		MeetingLink:     appt.MeetingLink,
		OccurredAt:      s.now(),
	}
	if err := s.publisher.PublishBooked(ctx, evt); err != nil {
		s.logger.Error("failed to publish booking event", "error", err, "appointment_id", appt.ID)
	}
}

func (s *Service) recordAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("failed to record audit entry", "error", err, "appointment_id", entry.AppointmentID)
	}
}

func wrapGet(err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return &StorageError{Op: "get", Err: err}
}
