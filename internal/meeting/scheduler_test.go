package meeting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therapistbooster/booking-platform/internal/notify"
)

type fakeAPI struct {
	links *Links
	err   error
}

func (f *fakeAPI) CreateMeeting(ctx context.Context, start time.Time) (*Links, error) {
	return f.links, f.err
}

type recordingSender struct {
	sent []notify.EmailMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg notify.EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func sessionRequest() Request {
	return Request{
		Start:             time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		TherapistEmail:    "dana@example.com",
		TherapistName:     "Dana",
		TherapistTimezone: "America/Toronto",
		ClientEmail:       "sam@example.com",
		ClientName:        "Sam",
		ClientTimezone:    "Europe/London",
	}
}

func TestScheduleSendsBothEmails(t *testing.T) {
	api := &fakeAPI{links: &Links{StartURL: "https://zoom.us/s/host", JoinURL: "https://zoom.us/j/join"}}
	sender := &recordingSender{}
	s := NewScheduler(api, sender, nil, nil)

	links, err := s.Schedule(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://zoom.us/j/join", links.JoinURL)

	require.Len(t, sender.sent, 2)

	therapistMsg := sender.sent[0]
	assert.Equal(t, "dana@example.com", therapistMsg.To)
	assert.Equal(t, "New session booked", therapistMsg.Subject)
	assert.Contains(t, therapistMsg.Body, "https://zoom.us/s/host")
	assert.NotContains(t, therapistMsg.Body, "https://zoom.us/j/join")
	// 14:00 UTC is 10:00 in Toronto during EDT.
	assert.Contains(t, therapistMsg.Body, "10:00")

	clientMsg := sender.sent[1]
	assert.Equal(t, "sam@example.com", clientMsg.To)
	assert.Equal(t, "Your session is confirmed", clientMsg.Subject)
	assert.Contains(t, clientMsg.Body, "https://zoom.us/j/join")
	// The host link never reaches the client.
	assert.NotContains(t, clientMsg.Body, "https://zoom.us/s/host")
	// 14:00 UTC is 15:00 in London during BST.
	assert.Contains(t, clientMsg.Body, "15:00")
}

func TestScheduleRescheduleCopy(t *testing.T) {
	api := &fakeAPI{links: &Links{StartURL: "https://zoom.us/s/host", JoinURL: "https://zoom.us/j/join"}}
	sender := &recordingSender{}
	s := NewScheduler(api, sender, nil, nil)

	req := sessionRequest()
	previous := req.Start.Add(-48 * time.Hour)
	req.PreviousStart = &previous

	_, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Your session has been rescheduled", sender.sent[0].Subject)
	assert.Equal(t, "Your session has been rescheduled", sender.sent[1].Subject)
	assert.Contains(t, sender.sent[1].Body, "has moved from")
}

func TestScheduleMeetingFailure(t *testing.T) {
	api := &fakeAPI{err: errors.New("zoom down")}
	sender := &recordingSender{}
	s := NewScheduler(api, sender, nil, nil)

	_, err := s.Schedule(context.Background(), sessionRequest())
	require.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestScheduleEmailFailureDoesNotFail(t *testing.T) {
	api := &fakeAPI{links: &Links{StartURL: "s", JoinURL: "j"}}
	sender := &recordingSender{err: errors.New("sendgrid down")}
	s := NewScheduler(api, sender, nil, nil)

	links, err := s.Schedule(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.NotNil(t, links)
}

func TestCalendarLink(t *testing.T) {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	link := CalendarLink(start)
	assert.Contains(t, link, "https://calendar.google.com/calendar/render?")
	assert.Contains(t, link, "20250610T140000Z%2F20250610T150000Z")
	assert.Contains(t, link, "action=TEMPLATE")
}
