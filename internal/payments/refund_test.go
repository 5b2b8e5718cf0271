package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pi_123", r.PostForm.Get("payment_intent"))

		json.NewEncoder(w).Encode(map[string]string{"id": "re_456", "status": "succeeded"})
	}))
	defer srv.Close()

	svc := NewRefundService("sk_test_123", nil).WithBaseURL(srv.URL)
	refundID, err := svc.Refund(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "re_456", refundID)
}

func TestRefundRequiresIntent(t *testing.T) {
	svc := NewRefundService("sk_test_123", nil)
	_, err := svc.Refund(context.Background(), "")
	assert.Error(t, err)
}

func TestRefundAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Charge already refunded"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewRefundService("sk_test_123", nil).WithBaseURL(srv.URL)
	_, err := svc.Refund(context.Background(), "pi_123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
