package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/therapistbooster/booking-platform/internal/booking"
	"github.com/therapistbooster/booking-platform/internal/events"
	"github.com/therapistbooster/booking-platform/internal/observability/metrics"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

// Checkout session event types Stripe sends for the booking lifecycle.
// Anything else is acknowledged and dropped.
var eventStatus = map[string]booking.PaymentStatus{
	"checkout.session.completed":               booking.StatusCompleted,
	"checkout.session.async_payment_succeeded": booking.StatusCompleted,
	"checkout.session.expired":                 booking.StatusExpired,
	"checkout.session.async_payment_failed":    booking.StatusFailure,
}

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type outboxWriter interface {
	Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error)
}

// StripeWebhookHandler verifies and enqueues Stripe webhook events. It does
// no lifecycle work itself: after the signature checks out the event goes to
// the outbox and the response is 200, keeping the endpoint fast and letting
// the deliverer absorb downstream failures.
type StripeWebhookHandler struct {
	webhookSecret string
	processed     processedTracker
	outbox        outboxWriter
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
}

// NewStripeWebhookHandler creates the webhook endpoint handler.
func NewStripeWebhookHandler(webhookSecret string, processed processedTracker, outbox outboxWriter, m *metrics.BookingMetrics, logger *logging.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		processed:     processed,
		outbox:        outbox,
		metrics:       m,
		logger:        logger,
	}
}

// Handle processes POST /webhooks/stripe.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if !verifyStripeSignature(h.webhookSecret, payload, sigHeader) {
		h.metrics.ObserveWebhook("unknown", "rejected")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt stripeWebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	if _, relevant := eventStatus[evt.Type]; !relevant {
		h.metrics.ObserveWebhook(evt.Type, "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	if seen, err := h.processed.AlreadyProcessed(r.Context(), "stripe", evt.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err, "event_id", evt.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if seen {
		h.metrics.ObserveWebhook(evt.Type, "duplicate")
		w.WriteHeader(http.StatusOK)
		return
	}

	session := evt.Data.Object
	if session.ID == "" {
		h.logger.Warn("stripe event missing session id", "event_id", evt.ID, "type", evt.Type)
		// Acknowledge; retrying cannot add the missing field.
		w.WriteHeader(http.StatusOK)
		return
	}

	event := events.PaymentEvent{
		Provider:        "stripe",
		EventID:         evt.ID,
		EventType:       evt.Type,
		StripeSessionID: session.ID,
		PaymentIntentID: session.PaymentIntent,
	}
	if _, err := h.outbox.Insert(r.Context(), events.TypePaymentEvent, event); err != nil {
		h.logger.Error("failed to enqueue payment event", "error", err, "event_id", evt.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if _, err := h.processed.MarkProcessed(r.Context(), "stripe", evt.ID); err != nil {
		h.logger.Error("failed to record processed event", "error", err, "event_id", evt.ID)
	}

	h.metrics.ObserveWebhook(evt.Type, "accepted")
	h.logger.Info("stripe event accepted", "event_id", evt.ID, "type", evt.Type, "stripe_session_id", session.ID)
	w.WriteHeader(http.StatusOK)
}

// stripeWebhookEvent is the Stripe event envelope.
type stripeWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeSessionObject `json:"object"`
	} `json:"data"`
}

// stripeSessionObject is the checkout.session object inside the event.
type stripeSessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
	Status        string            `json:"status"`
}

// verifyStripeSignature checks the Stripe-Signature header
// (t=<timestamp>,v1=<signature>[,v1=...]) against HMAC-SHA256 of
// "timestamp.payload" with a 5 minute timestamp tolerance. An empty secret
// bypasses verification for development.
func verifyStripeSignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
