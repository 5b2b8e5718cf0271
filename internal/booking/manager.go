package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/therapistbooster/booking-platform/internal/apperr"
	"github.com/therapistbooster/booking-platform/internal/meeting"
	"github.com/therapistbooster/booking-platform/internal/notify"
	"github.com/therapistbooster/booking-platform/internal/timeslot"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

// ManagerStore is the slice of the booking store reschedule and cancel need.
type ManagerStore interface {
	GetByID(ctx context.Context, id int64) (*Booking, error)
	UpdateSchedule(ctx context.Context, id, slotID int64, start time.Time, therapistLink, clientLink string) error
	Delete(ctx context.Context, id int64) error
}

// MeetingScheduler creates (or recreates) the video meeting for a session and
// notifies both parties.
type MeetingScheduler interface {
	Schedule(ctx context.Context, req meeting.Request) (*meeting.Links, error)
}

// RescheduleRequest moves a confirmed booking to a new slot and date.
type RescheduleRequest struct {
	NewTimeSlotID int64  `json:"newTimeSlotId"`
	Date          string `json:"date"`
}

// Manager handles post-payment lifecycle changes: reschedule and cancel.
type Manager struct {
	store     ManagerStore
	slots     SlotCatalog
	profiles  ProfileCatalog
	scheduler MeetingScheduler
	emails    notify.EmailSender
	logger    *logging.Logger
	now       func() time.Time
}

// NewManager wires the reschedule and cancel flows.
func NewManager(store ManagerStore, slots SlotCatalog, profileCatalog ProfileCatalog, scheduler MeetingScheduler, emails notify.EmailSender, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		store:     store,
		slots:     slots,
		profiles:  profileCatalog,
		scheduler: scheduler,
		emails:    emails,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock (for tests).
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Reschedule moves a paid booking to a new slot on a new date, recreates the
// meeting and stores the fresh links. The new session keeps the original
// payment; no conflict re-check happens here.
func (m *Manager) Reschedule(ctx context.Context, bookingID int64, req RescheduleRequest) (*Booking, error) {
	b, err := m.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus != StatusCompleted {
		return nil, apperr.Conflict("only completed bookings can be rescheduled")
	}

	slot, err := m.slots.GetByID(ctx, req.NewTimeSlotID)
	if err != nil {
		return nil, err
	}
	if slot.TherapistID != b.TherapistID {
		return nil, apperr.Validation("time slot does not belong to therapist")
	}

	zone, err := timeslot.ParseZone(b.ClientTimezone)
	if err != nil {
		return nil, err
	}
	date, err := timeslot.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	newStart := timeslot.ResolveToInstant(slot.TimeStart, date, zone)
	if newStart.Before(m.now()) {
		return nil, apperr.Validation("cannot book a session in the past")
	}

	therapist, err := m.profiles.GetTherapist(ctx, b.TherapistID)
	if err != nil {
		return nil, err
	}
	client, err := m.profiles.GetClient(ctx, b.ClientID)
	if err != nil {
		return nil, err
	}

	previous := b.SessionStartTime
	links, err := m.scheduler.Schedule(ctx, meeting.Request{
		Start:             newStart,
		PreviousStart:     &previous,
		TherapistEmail:    therapist.Email,
		TherapistName:     therapist.Name,
		TherapistTimezone: therapist.Timezone,
		ClientEmail:       client.Email,
		ClientName:        client.Name,
		ClientTimezone:    b.ClientTimezone,
	})
	if err != nil {
		return nil, apperr.Internal("failed to reschedule meeting", err)
	}

	if err := m.store.UpdateSchedule(ctx, b.ID, slot.ID, newStart, links.StartURL, links.JoinURL); err != nil {
		return nil, apperr.Internal("failed to reschedule booking", err)
	}

	m.logger.Info("booking rescheduled",
		"booking_id", b.ID,
		"old_start", previous,
		"new_start", newStart,
		"time_slot_id", slot.ID,
	)

	b.TimeSlotID = slot.ID
	b.SessionStartTime = newStart
	b.TherapistMeetLink = &links.StartURL
	b.ClientMeetLink = &links.JoinURL
	return b, nil
}

// Cancel notifies both parties and deletes the booking, opening the slot up
// again. Payments are never refunded here.
func (m *Manager) Cancel(ctx context.Context, bookingID int64) error {
	b, err := m.store.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	therapist, err := m.profiles.GetTherapist(ctx, b.TherapistID)
	if err != nil {
		return err
	}
	client, err := m.profiles.GetClient(ctx, b.ClientID)
	if err != nil {
		return err
	}

	m.sendCancellationEmails(ctx, b, therapist.Name, therapist.Email, therapist.Timezone, client.Name, client.Email)

	if err := m.store.Delete(ctx, b.ID); err != nil {
		return err
	}
	m.logger.Info("booking cancelled", "booking_id", b.ID, "session_start", b.SessionStartTime)
	return nil
}

// Email failures never block a cancellation.
func (m *Manager) sendCancellationEmails(ctx context.Context, b *Booking, therapistName, therapistEmail, therapistZone, clientName, clientEmail string) {
	if m.emails == nil {
		return
	}

	clientBody := fmt.Sprintf(
		"Hi %s,\n\nYour therapy session with %s on %s has been cancelled.\n\nIf this was a mistake, you can book a new session anytime.\n\nThe TherapistBooster Team",
		clientName, therapistName, formatSessionTime(b.SessionStartTime, b.ClientTimezone))
	if err := m.emails.Send(ctx, notify.EmailMessage{
		To:      clientEmail,
		ToName:  clientName,
		Subject: "Your TherapistBooster session has been cancelled",
		Body:    clientBody,
	}); err != nil {
		m.logger.Error("failed to send client cancellation email", "error", err, "booking_id", b.ID)
	}

	therapistBody := fmt.Sprintf(
		"Hi %s,\n\nYour session with %s on %s has been cancelled by the client. The slot is open again.\n\nThe TherapistBooster Team",
		therapistName, clientName, formatSessionTime(b.SessionStartTime, therapistZone))
	if err := m.emails.Send(ctx, notify.EmailMessage{
		To:      therapistEmail,
		ToName:  therapistName,
		Subject: "A session has been cancelled",
		Body:    therapistBody,
	}); err != nil {
		m.logger.Error("failed to send therapist cancellation email", "error", err, "booking_id", b.ID)
	}
}

func formatSessionTime(t time.Time, zoneName string) string {
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Monday, January 2, 2006 at 15:04 (MST)")
}
