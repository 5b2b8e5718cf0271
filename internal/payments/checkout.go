package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therapistbooster/booking-platform/internal/booking"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

var stripeTracer = otel.Tracer("booking.internal.payments.stripe")

// CheckoutService creates Stripe Checkout Sessions for slot reservations. The
// session metadata carries everything webhook processing needs to confirm the
// booking without extra lookups.
type CheckoutService struct {
	secretKey  string
	successURL string
	cancelURL  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
	dryRun     bool
}

// NewCheckoutService creates a Stripe checkout service.
func NewCheckoutService(secretKey, successURL, cancelURL string, logger *logging.Logger) *CheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutService{
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *CheckoutService) WithBaseURL(baseURL string) *CheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun returns fake session URLs without calling Stripe.
func (s *CheckoutService) WithDryRun(enabled bool) *CheckoutService {
	s.dryRun = enabled
	return s
}

// CreateSession implements booking.CheckoutStarter.
func (s *CheckoutService) CreateSession(ctx context.Context, p booking.CheckoutParams) (string, string, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("booking.booking_id", p.BookingID),
		attribute.String("booking.currency", p.Currency),
	)

	if s.dryRun {
		fakeID := "cs_dryrun_" + uuid.New().String()[:8]
		s.logger.Info("stripe dry run: skipping checkout session creation", "booking_id", p.BookingID)
		return fakeID, "https://checkout.stripe.com/dry-run/" + fakeID, nil
	}

	amountCents := int64(math.Round(p.Amount * 100))

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(p.Currency))
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", amountCents))
	form.Set("line_items[0][price_data][product_data][name]", p.ProductName)
	form.Set("line_items[0][quantity]", fmt.Sprintf("%d", p.Quantity))
	if s.successURL != "" {
		form.Set("success_url", s.successURL)
	}
	if s.cancelURL != "" {
		form.Set("cancel_url", s.cancelURL)
	}
	form.Set("customer_email", p.ClientEmail)

	// Metadata for webhook processing and support tooling.
	form.Set("metadata[bookingId]", fmt.Sprintf("%d", p.BookingID))
	form.Set("metadata[therapistEmail]", p.TherapistEmail)
	form.Set("metadata[therapistName]", p.TherapistName)
	form.Set("metadata[therapistTimezone]", p.TherapistTimezone)
	form.Set("metadata[clientEmail]", p.ClientEmail)
	form.Set("metadata[clientName]", p.ClientName)
	form.Set("metadata[clientTimezone]", p.ClientTimezone)
	form.Set("metadata[sessionStart]", p.SessionStart.UTC().Format(time.RFC3339))
	form.Set("metadata[sessionEnd]", p.SessionEnd.UTC().Format(time.RFC3339))

	apiURL := s.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("payments: stripe decode: %w", err)
	}
	if parsed.URL == "" {
		return "", "", fmt.Errorf("payments: stripe response missing checkout url")
	}

	return parsed.ID, parsed.URL, nil
}

// stripeCheckoutSession is the subset of Stripe's Checkout Session we need.
type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
