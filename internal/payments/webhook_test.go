package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func signPayload(secret, payload string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type fakeProcessed struct {
	seen   map[string]bool
	marked []string
}

func (f *fakeProcessed) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeProcessed) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	f.marked = append(f.marked, eventID)
	return true, nil
}

type fakeOutbox struct {
	inserted []any
	err      error
}

func (f *fakeOutbox) Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.inserted = append(f.inserted, payload)
	return uuid.New(), nil
}

func postEvent(t *testing.T, h *StripeWebhookHandler, payload string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	if sign {
		req.Header.Set("Stripe-Signature", signPayload(testSecret, payload, time.Now().Unix()))
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func completedEvent(id, session string) string {
	return fmt.Sprintf(`{
		"id": "%s",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "%s", "payment_intent": "pi_123"}}
	}`, id, session)
}

func TestWebhookAcceptsSignedEvent(t *testing.T) {
	processed := &fakeProcessed{seen: map[string]bool{}}
	outbox := &fakeOutbox{}
	h := NewStripeWebhookHandler(testSecret, processed, outbox, nil, nil)

	rec := postEvent(t, h, completedEvent("evt_1", "cs_1"), true)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, outbox.inserted, 1)
	assert.Equal(t, []string{"evt_1"}, processed.marked)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := NewStripeWebhookHandler(testSecret, &fakeProcessed{seen: map[string]bool{}}, &fakeOutbox{}, nil, nil)

	payload := completedEvent("evt_1", "cs_1")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h := NewStripeWebhookHandler(testSecret, &fakeProcessed{seen: map[string]bool{}}, &fakeOutbox{}, nil, nil)
	rec := postEvent(t, h, completedEvent("evt_1", "cs_1"), false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookRejectsStaleTimestamp(t *testing.T) {
	h := NewStripeWebhookHandler(testSecret, &fakeProcessed{seen: map[string]bool{}}, &fakeOutbox{}, nil, nil)

	payload := completedEvent("evt_1", "cs_1")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signPayload(testSecret, payload, time.Now().Add(-10*time.Minute).Unix()))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookIgnoresIrrelevantTypes(t *testing.T) {
	outbox := &fakeOutbox{}
	h := NewStripeWebhookHandler(testSecret, &fakeProcessed{seen: map[string]bool{}}, outbox, nil, nil)

	payload := `{"id": "evt_1", "type": "invoice.paid", "data": {"object": {"id": "in_1"}}}`
	rec := postEvent(t, h, payload, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, outbox.inserted)
}

func TestWebhookDropsDuplicates(t *testing.T) {
	processed := &fakeProcessed{seen: map[string]bool{"evt_1": true}}
	outbox := &fakeOutbox{}
	h := NewStripeWebhookHandler(testSecret, processed, outbox, nil, nil)

	rec := postEvent(t, h, completedEvent("evt_1", "cs_1"), true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, outbox.inserted)
	assert.Empty(t, processed.marked)
}

func TestWebhookOutboxFailureTriggersRetry(t *testing.T) {
	outbox := &fakeOutbox{err: fmt.Errorf("db down")}
	h := NewStripeWebhookHandler(testSecret, &fakeProcessed{seen: map[string]bool{}}, outbox, nil, nil)

	rec := postEvent(t, h, completedEvent("evt_1", "cs_1"), true)

	// Not acknowledged: the provider must redeliver.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookEmptySecretBypassesVerification(t *testing.T) {
	outbox := &fakeOutbox{}
	h := NewStripeWebhookHandler("", &fakeProcessed{seen: map[string]bool{}}, outbox, nil, nil)

	rec := postEvent(t, h, completedEvent("evt_1", "cs_1"), false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, outbox.inserted, 1)
}

func TestWebhookExpiredEventMapped(t *testing.T) {
	outbox := &fakeOutbox{}
	h := NewStripeWebhookHandler(testSecret, &fakeProcessed{seen: map[string]bool{}}, outbox, nil, nil)

	payload := `{"id": "evt_2", "type": "checkout.session.expired", "data": {"object": {"id": "cs_2"}}}`
	rec := postEvent(t, h, payload, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, outbox.inserted, 1)
}
