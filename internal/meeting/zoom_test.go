package meeting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newZoomFixture(t *testing.T, meetingHandler http.HandlerFunc) *ZoomClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-abc", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/users/me/meetings", meetingHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens := NewTokenSource("acc", "id", "secret", nil, nil).WithBaseURL(srv.URL)
	return NewZoomClient(tokens, nil).WithBaseURL(srv.URL)
}

func TestCreateMeeting(t *testing.T) {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	client := newZoomFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "TherapistBooster Session", payload["topic"])
		assert.Equal(t, float64(2), payload["type"])
		assert.Equal(t, float64(60), payload["duration"])
		assert.Equal(t, "2025-06-10T14:00:00Z", payload["start_time"])

		json.NewEncoder(w).Encode(map[string]any{
			"start_url": "https://zoom.us/s/host123",
			"join_url":  "https://zoom.us/j/join123",
		})
	})

	links, err := client.CreateMeeting(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, "https://zoom.us/s/host123", links.StartURL)
	assert.Equal(t, "https://zoom.us/j/join123", links.JoinURL)
}

func TestCreateMeetingAPIError(t *testing.T) {
	client := newZoomFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":124,"message":"invalid token"}`, http.StatusUnauthorized)
	})

	_, err := client.CreateMeeting(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestCreateMeetingMissingJoinURL(t *testing.T) {
	client := newZoomFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"start_url": "https://zoom.us/s/host123"})
	})

	_, err := client.CreateMeeting(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing join_url")
}
