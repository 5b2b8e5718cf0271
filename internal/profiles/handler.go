package profiles

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/therapistbooster/booking-platform/internal/apperr"
	"github.com/therapistbooster/booking-platform/internal/timeslot"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

// Handler handles profile registration requests.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a profiles handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// RegisterTherapistRequest is the POST /therapists payload. Timeslots are
// "HH:mm" wall-clock strings in the therapist's own zone.
type RegisterTherapistRequest struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Timezone  string   `json:"timezone"`
	Amount    float64  `json:"amount"`
	Timeslots []string `json:"timeslots"`
}

// RegisterClientRequest is the POST /clients payload.
type RegisterClientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

// RegisterTherapist handles POST /therapists.
func (h *Handler) RegisterTherapist(w http.ResponseWriter, r *http.Request) {
	var req RegisterTherapistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Email == "" {
		apperr.WriteJSON(w, apperr.Validation("name and email are required"))
		return
	}
	zone, err := timeslot.ParseZone(req.Timezone)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if len(req.Timeslots) == 0 {
		apperr.WriteJSON(w, apperr.Validation("at least one timeslot is required"))
		return
	}

	starts := make([]time.Time, 0, len(req.Timeslots))
	for _, raw := range req.Timeslots {
		start, err := timeslot.ParseWallClock(raw, zone)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		starts = append(starts, start)
	}

	therapist := &Therapist{
		Name:     req.Name,
		Email:    req.Email,
		Timezone: req.Timezone,
		Amount:   req.Amount,
	}
	if err := h.store.CreateTherapist(r.Context(), therapist, starts); err != nil {
		h.logger.Error("failed to register therapist", "error", err, "email", req.Email)
		apperr.WriteJSON(w, err)
		return
	}

	h.logger.Info("therapist registered", "id", therapist.ID, "slots", len(starts))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(therapist)
}

// RegisterClient handles POST /clients.
func (h *Handler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req RegisterClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Email == "" {
		apperr.WriteJSON(w, apperr.Validation("name and email are required"))
		return
	}
	if _, err := timeslot.ParseZone(req.Timezone); err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	client := &Client{
		Name:     req.Name,
		Email:    req.Email,
		Timezone: req.Timezone,
	}
	if err := h.store.CreateClient(r.Context(), client); err != nil {
		h.logger.Error("failed to register client", "error", err, "email", req.Email)
		apperr.WriteJSON(w, err)
		return
	}

	h.logger.Info("client registered", "id", client.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(client)
}
