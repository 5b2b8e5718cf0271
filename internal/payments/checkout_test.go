package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therapistbooster/booking-platform/internal/booking"
)

func checkoutParams() booking.CheckoutParams {
	return booking.CheckoutParams{
		BookingID:         42,
		Amount:            119.99,
		Currency:          "CAD",
		ProductName:       "Therapy Session with Dana",
		Quantity:          1,
		TherapistEmail:    "dana@example.com",
		TherapistName:     "Dana",
		TherapistTimezone: "America/Toronto",
		ClientEmail:       "sam@example.com",
		ClientName:        "Sam",
		ClientTimezone:    "Europe/London",
		SessionStart:      time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		SessionEnd:        time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC),
	}
}

func TestCreateSession(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		var err error
		form, err = url.ParseQuery(string(body))
		require.NoError(t, err)

		json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_test_abc",
			"url": "https://checkout.stripe.com/c/pay/cs_test_abc",
		})
	}))
	defer srv.Close()

	svc := NewCheckoutService("sk_test_123", "https://example.com/ok", "https://example.com/back", nil).
		WithBaseURL(srv.URL)

	sessionID, checkoutURL, err := svc.CreateSession(context.Background(), checkoutParams())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", sessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_abc", checkoutURL)

	// 119.99 rounds to 11999 cents, never truncates.
	assert.Equal(t, "11999", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "cad", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "Therapy Session with Dana", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "42", form.Get("metadata[bookingId]"))
	assert.Equal(t, "2025-06-10T14:00:00Z", form.Get("metadata[sessionStart]"))
	assert.Equal(t, "2025-06-10T15:00:00Z", form.Get("metadata[sessionEnd]"))
	assert.Equal(t, "America/Toronto", form.Get("metadata[therapistTimezone]"))
	assert.Equal(t, "sam@example.com", form.Get("customer_email"))
	assert.Equal(t, "https://example.com/ok", form.Get("success_url"))
}

func TestCreateSessionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"No such price"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewCheckoutService("sk_test_123", "", "", nil).WithBaseURL(srv.URL)
	_, _, err := svc.CreateSession(context.Background(), checkoutParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestCreateSessionDryRun(t *testing.T) {
	svc := NewCheckoutService("", "", "", nil).WithDryRun(true)
	sessionID, checkoutURL, err := svc.CreateSession(context.Background(), checkoutParams())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sessionID, "cs_dryrun_"))
	assert.Contains(t, checkoutURL, sessionID)
}
