package meeting

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/therapistbooster/booking-platform/internal/notify"
	"github.com/therapistbooster/booking-platform/internal/observability/metrics"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

const calendarStampLayout = "20060102T150405Z"

// MeetingAPI creates a meeting for a session start.
type MeetingAPI interface {
	CreateMeeting(ctx context.Context, start time.Time) (*Links, error)
}

// Scheduler creates the video meeting for a session and emails both parties
// their links, each rendered in their own time zone.
type Scheduler struct {
	api     MeetingAPI
	emails  notify.EmailSender
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewScheduler wires meeting creation and notification.
func NewScheduler(api MeetingAPI, emails notify.EmailSender, m *metrics.BookingMetrics, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{api: api, emails: emails, metrics: m, logger: logger}
}

// Schedule creates the meeting and sends the session emails. Email failures
// are logged but never fail the schedule; the links are already persisted by
// the caller and resendable.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (*Links, error) {
	links, err := s.api.CreateMeeting(ctx, req.Start)
	if err != nil {
		s.metrics.ObserveMeeting("failed")
		return nil, err
	}
	s.metrics.ObserveMeeting("created")

	s.notifyTherapist(ctx, req, links)
	s.notifyClient(ctx, req, links)
	return links, nil
}

func (s *Scheduler) notifyTherapist(ctx context.Context, req Request, links *Links) {
	if s.emails == nil {
		return
	}

	when := localTime(req.Start, req.TherapistTimezone)
	var subject, body string
	if req.PreviousStart != nil {
		subject = "Your session has been rescheduled"
		body = fmt.Sprintf(
			"Hi %s,\n\nYour session with %s has moved from %s to %s.\n\nStart your session (host link):\n%s\n\nAdd to calendar:\n%s\n\nThe TherapistBooster Team",
			req.TherapistName, req.ClientName,
			localTime(*req.PreviousStart, req.TherapistTimezone), when,
			links.StartURL, CalendarLink(req.Start))
	} else {
		subject = "New session booked"
		body = fmt.Sprintf(
			"Hi %s,\n\nA new session with %s is confirmed for %s.\n\nStart your session (host link):\n%s\n\nAdd to calendar:\n%s\n\nThe TherapistBooster Team",
			req.TherapistName, req.ClientName, when,
			links.StartURL, CalendarLink(req.Start))
	}

	if err := s.emails.Send(ctx, notify.EmailMessage{
		To:      req.TherapistEmail,
		ToName:  req.TherapistName,
		Subject: subject,
		Body:    body,
	}); err != nil {
		s.logger.Error("failed to send therapist session email", "error", err, "to", req.TherapistEmail)
	}
}

func (s *Scheduler) notifyClient(ctx context.Context, req Request, links *Links) {
	if s.emails == nil {
		return
	}

	when := localTime(req.Start, req.ClientTimezone)
	var subject, body string
	if req.PreviousStart != nil {
		subject = "Your session has been rescheduled"
		body = fmt.Sprintf(
			"Hi %s,\n\nYour therapy session with %s has moved from %s to %s.\n\nJoin your session:\n%s\n\nAdd to calendar:\n%s\n\nThe TherapistBooster Team",
			req.ClientName, req.TherapistName,
			localTime(*req.PreviousStart, req.ClientTimezone), when,
			links.JoinURL, CalendarLink(req.Start))
	} else {
		subject = "Your session is confirmed"
		body = fmt.Sprintf(
			"Hi %s,\n\nYour therapy session with %s is confirmed for %s.\n\nJoin your session:\n%s\n\nAdd to calendar:\n%s\n\nThe TherapistBooster Team",
			req.ClientName, req.TherapistName, when,
			links.JoinURL, CalendarLink(req.Start))
	}

	if err := s.emails.Send(ctx, notify.EmailMessage{
		To:      req.ClientEmail,
		ToName:  req.ClientName,
		Subject: subject,
		Body:    body,
	}); err != nil {
		s.logger.Error("failed to send client session email", "error", err, "to", req.ClientEmail)
	}
}

// CalendarLink builds a Google Calendar template URL for the one hour session.
func CalendarLink(start time.Time) string {
	startStamp := start.UTC().Format(calendarStampLayout)
	endStamp := start.Add(time.Hour).UTC().Format(calendarStampLayout)

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", meetingTopic)
	q.Set("dates", startStamp+"/"+endStamp)
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

func localTime(t time.Time, zoneName string) string {
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Monday, January 2, 2006 at 15:04 (MST)")
}
