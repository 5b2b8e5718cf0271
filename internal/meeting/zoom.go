package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therapistbooster/booking-platform/pkg/logging"
)

var zoomTracer = otel.Tracer("booking.internal.meeting.zoom")

const meetingTopic = "TherapistBooster Session"

// ZoomClient creates meetings through the Zoom REST API using a
// server-to-server OAuth token source.
type ZoomClient struct {
	baseURL    string
	tokens     *TokenSource
	httpClient *http.Client
	logger     *logging.Logger
}

// NewZoomClient creates a Zoom API client.
func NewZoomClient(tokens *TokenSource, logger *logging.Logger) *ZoomClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &ZoomClient{
		baseURL:    "https://api.zoom.us",
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Zoom API base URL (for testing).
func (c *ZoomClient) WithBaseURL(baseURL string) *ZoomClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// CreateMeeting schedules a 60 minute meeting starting at the given instant
// and returns the host and participant links.
func (c *ZoomClient) CreateMeeting(ctx context.Context, start time.Time) (*Links, error) {
	ctx, span := zoomTracer.Start(ctx, "zoom.create_meeting")
	defer span.End()
	span.SetAttributes(attribute.String("booking.session_start", start.UTC().Format(time.RFC3339)))

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"topic":      meetingTopic,
		"type":       2, // scheduled meeting
		"start_time": start.UTC().Format(time.RFC3339),
		"duration":   60,
		"timezone":   "UTC",
		"settings": map[string]any{
			"join_before_host": false,
			"waiting_room":     true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("meeting: marshal zoom payload: %w", err)
	}

	endpoint := c.baseURL + "/v2/users/me/meetings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("meeting: zoom request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meeting: zoom http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("meeting: zoom api status %d: %s", resp.StatusCode, string(errBody))
	}

	var parsed struct {
		StartURL string `json:"start_url"`
		JoinURL  string `json:"join_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("meeting: zoom decode: %w", err)
	}
	if parsed.JoinURL == "" {
		return nil, fmt.Errorf("meeting: zoom response missing join_url")
	}

	c.logger.Info("zoom meeting created", "start", start.UTC())
	return &Links{StartURL: parsed.StartURL, JoinURL: parsed.JoinURL}, nil
}
