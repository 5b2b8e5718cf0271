package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/therapistbooster/booking-platform/internal/apperr"
	"github.com/therapistbooster/booking-platform/internal/booking"
	"github.com/therapistbooster/booking-platform/internal/events"
	"github.com/therapistbooster/booking-platform/internal/meeting"
	"github.com/therapistbooster/booking-platform/internal/profiles"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

// LifecycleStore is the slice of the booking store payment processing needs.
type LifecycleStore interface {
	GetByStripeSessionID(ctx context.Context, sessionID string) (*booking.Booking, error)
	MarkCompleted(ctx context.Context, id int64, paymentIntentID string) error
	UpdateStatus(ctx context.Context, id int64, status booking.PaymentStatus) error
	SaveMeetingLinks(ctx context.Context, id int64, therapistLink, clientLink string, createdAt time.Time) error
}

// PartyCatalog loads both parties for meeting notifications.
type PartyCatalog interface {
	GetTherapist(ctx context.Context, id int64) (*profiles.Therapist, error)
	GetClient(ctx context.Context, id int64) (*profiles.Client, error)
}

// MeetingScheduler creates the session meeting and notifies both parties.
type MeetingScheduler interface {
	Schedule(ctx context.Context, req meeting.Request) (*meeting.Links, error)
}

// Processor applies verified payment events pulled off the outbox: it moves
// the booking to its new lifecycle state and, on completion, creates the
// session meeting exactly once.
type Processor struct {
	store     LifecycleStore
	profiles  PartyCatalog
	scheduler MeetingScheduler
	logger    *logging.Logger
	now       func() time.Time
}

// NewProcessor wires payment event processing.
func NewProcessor(store LifecycleStore, partyCatalog PartyCatalog, scheduler MeetingScheduler, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		store:     store,
		profiles:  partyCatalog,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock (for tests).
func (p *Processor) WithNow(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Handle implements events.DeliveryHandler. A returned error keeps the entry
// pending so the deliverer retries it; permanently unprocessable events are
// logged and dropped.
func (p *Processor) Handle(ctx context.Context, entry events.OutboxEntry) error {
	if entry.Type != events.TypePaymentEvent {
		p.logger.Warn("skipping unknown outbox entry type", "type", entry.Type, "event_id", entry.ID)
		return nil
	}
	var event events.PaymentEvent
	if err := json.Unmarshal(entry.Payload, &event); err != nil {
		p.logger.Error("undecodable payment event payload", "error", err, "event_id", entry.ID)
		return nil
	}
	return p.Apply(ctx, event)
}

// Apply moves the booking referenced by the event to its new state.
func (p *Processor) Apply(ctx context.Context, event events.PaymentEvent) error {
	status, ok := eventStatus[event.EventType]
	if !ok {
		p.logger.Warn("payment event with unmapped type", "event_type", event.EventType, "event_id", event.EventID)
		return nil
	}

	b, err := p.store.GetByStripeSessionID(ctx, event.StripeSessionID)
	if err != nil {
		return fmt.Errorf("payments: lookup booking for session %s: %w", event.StripeSessionID, err)
	}
	if b == nil {
		p.logger.Warn("payment event for unknown checkout session, dropping",
			"stripe_session_id", event.StripeSessionID, "event_id", event.EventID)
		return nil
	}

	if status != booking.StatusCompleted {
		if b.PaymentStatus.Terminal() {
			p.logger.Info("booking already terminal, dropping event",
				"booking_id", b.ID, "status", b.PaymentStatus, "event_type", event.EventType)
			return nil
		}
		if err := p.store.UpdateStatus(ctx, b.ID, status); err != nil {
			return fmt.Errorf("payments: update booking %d to %s: %w", b.ID, status, err)
		}
		p.logger.Info("booking status updated", "booking_id", b.ID, "status", status, "event_id", event.EventID)
		return nil
	}

	if b.PaymentStatus != booking.StatusCompleted {
		if err := p.store.MarkCompleted(ctx, b.ID, event.PaymentIntentID); err != nil {
			// The hold lapsed and another client took the key before this
			// completion arrived. Retrying can never succeed, so mark the
			// booking FAILURE for reconciliation and drop the event.
			if apperr.IsKind(err, apperr.KindConflict) {
				p.logger.Warn("slot rebooked before payment completed, marking failure",
					"booking_id", b.ID, "event_id", event.EventID)
				if uerr := p.store.UpdateStatus(ctx, b.ID, booking.StatusFailure); uerr != nil {
					return fmt.Errorf("payments: mark booking %d failure after lost slot: %w", b.ID, uerr)
				}
				return nil
			}
			return fmt.Errorf("payments: mark booking %d completed: %w", b.ID, err)
		}
		p.logger.Info("booking completed", "booking_id", b.ID, "payment_intent", event.PaymentIntentID)
	}

	// A redelivered completion after the meeting exists is a no-op.
	if b.MeetingCreated() {
		p.logger.Info("meeting already created, skipping", "booking_id", b.ID)
		return nil
	}

	therapist, err := p.profiles.GetTherapist(ctx, b.TherapistID)
	if err != nil {
		return fmt.Errorf("payments: load therapist for booking %d: %w", b.ID, err)
	}
	client, err := p.profiles.GetClient(ctx, b.ClientID)
	if err != nil {
		return fmt.Errorf("payments: load client for booking %d: %w", b.ID, err)
	}

	links, err := p.scheduler.Schedule(ctx, meeting.Request{
		Start:             b.SessionStartTime,
		TherapistEmail:    therapist.Email,
		TherapistName:     therapist.Name,
		TherapistTimezone: therapist.Timezone,
		ClientEmail:       client.Email,
		ClientName:        client.Name,
		ClientTimezone:    b.ClientTimezone,
	})
	if err != nil {
		return fmt.Errorf("payments: schedule meeting for booking %d: %w", b.ID, err)
	}

	if err := p.store.SaveMeetingLinks(ctx, b.ID, links.StartURL, links.JoinURL, p.now()); err != nil {
		return fmt.Errorf("payments: save meeting links for booking %d: %w", b.ID, err)
	}
	p.logger.Info("meeting attached to booking", "booking_id", b.ID)
	return nil
}
