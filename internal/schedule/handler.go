package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medivuno/scheduler/internal/audit"
	"github.com/medivuno/scheduler/internal/directory"
	httpmiddleware "github.com/medivuno/scheduler/internal/http/middleware"
	"github.com/medivuno/scheduler/pkg/logging"
)

// HistoryLister reads the audit history of an appointment.
type HistoryLister interface {
	ListByAppointment(ctx context.Context, appointmentID string, limit int) ([]audit.Entry, error)
}

// Handler handles HTTP requests for appointments.
type Handler struct {
	svc    *Service
	stats  *StatsRepository
	trail  HistoryLister
	lookup directory.Lookup
	logger *logging.Logger
}

// NewHandler creates an appointments handler. Stats, trail and lookup are
// optional; the matching endpoints degrade when absent.
func NewHandler(svc *Service, stats *StatsRepository, trail HistoryLister, lookup directory.Lookup, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("schedule: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		svc:    svc,
		stats:  stats,
		trail:  trail,
		lookup: lookup,
		logger: logger,
	}
}

// Routes mounts the appointment endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateAppointment)
	r.Get("/", h.ListAppointments)
	r.Get("/today", h.TodayAppointments)
	r.Get("/stats", h.AppointmentStats)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetAppointment)
		r.Patch("/status", h.UpdateStatus)
		r.Patch("/reschedule", h.RescheduleAppointment)
		r.Patch("/notes", h.UpdateNotes)
		r.Get("/history", h.AppointmentHistory)
	})
	return r
}

// CreateAppointment handles POST /appointments.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode booking request", "error", err)
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.DoctorID == "" {
		if doctorID, ok := httpmiddleware.DoctorIDFromContext(r.Context()); ok {
			req.DoctorID = doctorID
		}
	}

	appt, err := h.svc.Book(r.Context(), &req)
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}
	h.attachNames(r, appt)

	writeJSON(w, http.StatusCreated, appt)
}

// GetAppointment handles GET /appointments/{id}.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}
	h.attachNames(r, appt)
	writeJSON(w, http.StatusOK, appt)
}

type updateStatusRequest struct {
	TargetStatus string `json:"targetStatus"`
	Reason       string `json:"reason,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// UpdateStatus handles PATCH /appointments/{id}/status. Cancellation goes
// through the convenience path so it is never blocked by being confirmed
// versus pending.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	target, err := ParseStatus(req.TargetStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "unknown targetStatus", nil)
		return
	}

	var appt *Appointment
	if target == StatusCancelled {
		appt, err = h.svc.Cancel(r.Context(), id, req.Reason)
	} else {
		appt, err = h.svc.TransitionStatus(r.Context(), id, target, req.Reason)
	}
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}

	if req.Notes != "" {
		appt, err = h.svc.UpdateNotes(r.Context(), id, req.Notes)
		if err != nil {
			h.writeScheduleError(w, err)
			return
		}
	}

	h.attachNames(r, appt)
	writeJSON(w, http.StatusOK, appt)
}

type rescheduleRequest struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"durationMinutes"`
}

// RescheduleAppointment handles PATCH /appointments/{id}/reschedule.
func (h *Handler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), chi.URLParam(r, "id"), NewInterval(req.Start, req.DurationMinutes))
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}
	h.attachNames(r, appt)
	writeJSON(w, http.StatusOK, appt)
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

// UpdateNotes handles PATCH /appointments/{id}/notes.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req updateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	appt, err := h.svc.UpdateNotes(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// ListAppointmentsResponse is the response for listing appointments.
type ListAppointmentsResponse struct {
	Appointments []*Appointment `json:"appointments"`
	Total        int            `json:"total"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}

// ListAppointments handles GET /appointments with filters and pagination.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	appts, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}
	h.attachNames(r, appts...)

	writeJSON(w, http.StatusOK, ListAppointmentsResponse{
		Appointments: appts,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
}

// TodayAppointments handles GET /appointments/today.
func (h *Handler) TodayAppointments(w http.ResponseWriter, r *http.Request) {
	doctorID := h.doctorID(r)
	if doctorID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "doctorId is required", nil)
		return
	}

	appts, err := h.svc.ListToday(r.Context(), doctorID)
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}
	h.attachNames(r, appts...)
	writeJSON(w, http.StatusOK, appts)
}

// AppointmentStats handles GET /appointments/stats.
func (h *Handler) AppointmentStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats_unavailable", "stats require database storage", nil)
		return
	}
	doctorID := h.doctorID(r)
	if doctorID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "doctorId is required", nil)
		return
	}

	now := h.svc.now()
	from, to := now.Truncate(24*time.Hour), now.Truncate(24*time.Hour).Add(24*time.Hour)
	if h.svc.dayBounds != nil {
		if f, t, err := h.svc.dayBounds.DayBounds(r.Context(), doctorID, now); err == nil {
			from, to = f, t
		}
	}

	stats, err := h.stats.GetStats(r.Context(), doctorID, from, to)
	if err != nil {
		h.logger.Error("failed to load stats", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to load stats", nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AppointmentHistory handles GET /appointments/{id}/history.
func (h *Handler) AppointmentHistory(w http.ResponseWriter, r *http.Request) {
	if h.trail == nil {
		writeError(w, http.StatusServiceUnavailable, "history_unavailable", "history requires database storage", nil)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		h.writeScheduleError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.trail.ListByAppointment(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to load history", "error", err, "appointment_id", id)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to load history", nil)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		DoctorID:  q.Get("doctorId"),
		PatientID: q.Get("patientId"),
	}
	if filter.DoctorID == "" {
		filter.DoctorID = h.doctorID(r)
	}

	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return ListFilter{}, errors.New("unknown status filter")
		}
		filter.Status = status
	}
	if raw := q.Get("type"); raw != "" {
		t := AppointmentType(raw)
		if !t.Valid() {
			return ListFilter{}, errors.New("unknown type filter")
		}
		filter.Type = t
	}
	var err error
	if filter.From, err = parseTimeParam(q.Get("dateFrom")); err != nil {
		return ListFilter{}, errors.New("dateFrom must be RFC3339 or YYYY-MM-DD")
	}
	if filter.To, err = parseTimeParam(q.Get("dateTo")); err != nil {
		return ListFilter{}, errors.New("dateTo must be RFC3339 or YYYY-MM-DD")
	}

	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Offset = v
		}
	}
	return filter, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// doctorID resolves the acting doctor from the query or the auth token.
func (h *Handler) doctorID(r *http.Request) string {
	if id := r.URL.Query().Get("doctorId"); id != "" {
		return id
	}
	if id, ok := httpmiddleware.DoctorIDFromContext(r.Context()); ok {
		return id
	}
	return ""
}

// attachNames decorates appointments with display names from the directory.
// Lookup failures only cost the decoration, never the response.
func (h *Handler) attachNames(r *http.Request, appts ...*Appointment) {
	if h.lookup == nil {
		return
	}
	ctx := r.Context()
	for _, appt := range appts {
		if appt == nil {
			continue
		}
		if p, err := h.lookup.Patient(ctx, appt.PatientID); err == nil {
			appt.PatientName = p.Name
		}
		if d, err := h.lookup.Doctor(ctx, appt.DoctorID); err == nil {
			appt.DoctorName = d.Name
		}
	}
}

func (h *Handler) writeScheduleError(w http.ResponseWriter, err error) {
	var (
		validation *ValidationError
		conflict   *SlotConflictError
		transition *TransitionError
		finalized  *AlreadyFinalizedError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_error", validation.Error(), nil)
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "slot_conflict", conflict.Error(), map[string]any{
			"conflictingIds": conflict.ConflictingIDs(),
		})
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid_transition", transition.Error(), nil)
	case errors.As(err, &finalized):
		writeError(w, http.StatusConflict, "already_finalized", finalized.Error(), nil)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "appointment not found", nil)
	default:
		h.logger.Error("scheduling operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "operation aborted, safe to retry", nil)
	}
}

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, errorResponse{Error: code, Message: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
