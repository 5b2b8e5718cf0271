package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/therapistbooster/booking-platform/internal/booking"
	"github.com/therapistbooster/booking-platform/internal/payments"
	"github.com/therapistbooster/booking-platform/internal/profiles"
)

// Config holds router dependencies.
type Config struct {
	BookingHandler  *booking.Handler
	ProfilesHandler *profiles.Handler
	StripeWebhook   *payments.StripeWebhookHandler
	MetricsHandler  http.Handler
}

// New builds the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Webhooks verify their own signatures.
	if cfg.StripeWebhook != nil {
		r.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
	}

	if cfg.ProfilesHandler != nil {
		r.Post("/therapists", cfg.ProfilesHandler.RegisterTherapist)
		r.Post("/clients", cfg.ProfilesHandler.RegisterClient)
	}

	if cfg.BookingHandler != nil {
		r.Get("/timeslots/{therapistID}", cfg.BookingHandler.ListAvailability)
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", cfg.BookingHandler.Reserve)
			r.Put("/{bookingID}/reschedule", cfg.BookingHandler.Reschedule)
			r.Delete("/{bookingID}", cfg.BookingHandler.Cancel)
		})
	}

	return r
}
