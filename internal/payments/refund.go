package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/therapistbooster/booking-platform/pkg/logging"
)

// RefundService issues full refunds against a payment intent. Cancellation
// does not call this today; it exists for support-driven refunds.
type RefundService struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRefundService creates a Stripe refund service.
func NewRefundService(secretKey string, logger *logging.Logger) *RefundService {
	if logger == nil {
		logger = logging.Default()
	}
	return &RefundService{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *RefundService) WithBaseURL(baseURL string) *RefundService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// Refund refunds the full payment intent and returns the refund id.
func (s *RefundService) Refund(ctx context.Context, paymentIntentID string) (string, error) {
	if paymentIntentID == "" {
		return "", fmt.Errorf("payments: refund requires a payment intent id")
	}

	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/refunds", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("payments: stripe refund request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payments: stripe refund http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("payments: stripe refund status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("payments: stripe refund decode: %w", err)
	}

	s.logger.Info("stripe refund issued", "refund_id", parsed.ID, "payment_intent", paymentIntentID, "status", parsed.Status)
	return parsed.ID, nil
}
