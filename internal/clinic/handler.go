package clinic

import (
	"encoding/json"
	"net/http"
	"time"

	httpmiddleware "github.com/medivuno/scheduler/internal/http/middleware"
	"github.com/medivuno/scheduler/pkg/logging"
)

// Handler exposes doctor settings over HTTP.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a settings handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// GetSettings handles GET /settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	doctorID := h.doctorID(r)
	if doctorID == "" {
		http.Error(w, "doctorId is required", http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to load settings", "error", err, "doctor_id", doctorID)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	doctorID := h.doctorID(r)
	if doctorID == "" {
		http.Error(w, "doctorId is required", http.StatusBadRequest)
		return
	}

	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	settings.DoctorID = doctorID

	if settings.Timezone != "" {
		if _, err := time.LoadLocation(settings.Timezone); err != nil {
			http.Error(w, "unknown timezone", http.StatusBadRequest)
			return
		}
	}

	if err := h.store.Set(r.Context(), &settings); err != nil {
		h.logger.Error("failed to save settings", "error", err, "doctor_id", doctorID)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) doctorID(r *http.Request) string {
	if id := r.URL.Query().Get("doctorId"); id != "" {
		return id
	}
	if id, ok := httpmiddleware.DoctorIDFromContext(r.Context()); ok {
		return id
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
