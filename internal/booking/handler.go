package booking

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/therapistbooster/booking-platform/internal/apperr"
	"github.com/therapistbooster/booking-platform/internal/timeslot"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

// Handler exposes the booking lifecycle over HTTP.
type Handler struct {
	coordinator  *Coordinator
	manager      *Manager
	availability *timeslot.Availability
	logger       *logging.Logger
}

// NewHandler creates the booking handler.
func NewHandler(coordinator *Coordinator, manager *Manager, availability *timeslot.Availability, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		coordinator:  coordinator,
		manager:      manager,
		availability: availability,
		logger:       logger,
	}
}

// ListAvailability handles GET /timeslots/{therapistID}?clientId=&date=.
func (h *Handler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	therapistID, err := strconv.ParseInt(chi.URLParam(r, "therapistID"), 10, 64)
	if err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid therapist id"))
		return
	}
	clientID, err := strconv.ParseInt(r.URL.Query().Get("clientId"), 10, 64)
	if err != nil {
		apperr.WriteJSON(w, apperr.Validation("clientId query parameter is required"))
		return
	}
	date := r.URL.Query().Get("date")

	views, err := h.availability.ForDay(r.Context(), therapistID, clientID, date)
	if err != nil {
		h.logger.Error("availability lookup failed", "error", err, "therapist_id", therapistID)
		apperr.WriteJSON(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// Reserve handles POST /bookings.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.coordinator.Reserve(r.Context(), req)
	if err != nil {
		h.logger.Error("reserve failed", "error", err, "time_slot_id", req.TimeSlotID, "client_id", req.ClientID)
		apperr.WriteJSON(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// Reschedule handles PUT /bookings/{bookingID}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	bookingID, err := strconv.ParseInt(chi.URLParam(r, "bookingID"), 10, 64)
	if err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid booking id"))
		return
	}
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	b, err := h.manager.Reschedule(r.Context(), bookingID, req)
	if err != nil {
		h.logger.Error("reschedule failed", "error", err, "booking_id", bookingID)
		apperr.WriteJSON(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"bookingId":    b.ID,
		"timeSlotId":   b.TimeSlotID,
		"sessionStart": b.SessionStartTime,
	})
}

// Cancel handles DELETE /bookings/{bookingID}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	bookingID, err := strconv.ParseInt(chi.URLParam(r, "bookingID"), 10, 64)
	if err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid booking id"))
		return
	}

	if err := h.manager.Cancel(r.Context(), bookingID); err != nil {
		h.logger.Error("cancel failed", "error", err, "booking_id", bookingID)
		apperr.WriteJSON(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
