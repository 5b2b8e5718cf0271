package timeslot

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therapistbooster/booking-platform/internal/apperr"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

var availabilityTracer = otel.Tracer("booking.internal.timeslot")

// sessionLength is the fixed width of one therapy session.
const sessionLength = time.Hour

// BookingDirectory answers which of a therapist's slots are taken by a
// COMPLETED booking inside a UTC window.
type BookingDirectory interface {
	CompletedSlotIDs(ctx context.Context, therapistID int64, from, to time.Time) (map[int64]struct{}, error)
}

// ProfileDirectory resolves the profile facts availability needs.
type ProfileDirectory interface {
	TherapistExists(ctx context.Context, id int64) (bool, error)
	ClientTimeZone(ctx context.Context, id int64) (string, error)
}

// Availability renders a therapist's slots for one calendar day as seen from
// the requesting client's time zone.
type Availability struct {
	slots    *Store
	bookings BookingDirectory
	profiles ProfileDirectory
	logger   *logging.Logger
	now      func() time.Time
}

// NewAvailability constructs the resolver.
func NewAvailability(slots *Store, bookings BookingDirectory, profiles ProfileDirectory, logger *logging.Logger) *Availability {
	if logger == nil {
		logger = logging.Default()
	}
	return &Availability{
		slots:    slots,
		bookings: bookings,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock (for tests).
func (a *Availability) WithNow(now func() time.Time) *Availability {
	a.now = now
	return a
}

// ForDay returns every slot of the therapist annotated AVAILABLE, OCCUPIED or
// NOT_AVAILABLE for the given yyyy-mm-dd date, in the client's zone.
func (a *Availability) ForDay(ctx context.Context, therapistID, clientID int64, dateStr string) ([]SlotView, error) {
	ctx, span := availabilityTracer.Start(ctx, "timeslot.availability")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("booking.therapist_id", therapistID),
		attribute.Int64("booking.client_id", clientID),
		attribute.String("booking.date", dateStr),
	)

	exists, err := a.profiles.TherapistExists(ctx, therapistID)
	if err != nil {
		return nil, apperr.Internal("error fetching time slots for therapist", err)
	}
	if !exists {
		return nil, apperr.NotFound("no therapists available")
	}

	zoneName, err := a.profiles.ClientTimeZone(ctx, clientID)
	if err != nil {
		return nil, err
	}
	zone, err := ParseZone(zoneName)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	slots, err := a.slots.ListByTherapist(ctx, therapistID)
	if err != nil {
		return nil, apperr.Internal("error fetching time slots for therapist", err)
	}
	if len(slots) == 0 {
		return nil, apperr.NotFound("no time slots available for this therapist")
	}

	windowStart, windowEnd := DayWindow(date, zone)
	occupied, err := a.bookings.CompletedSlotIDs(ctx, therapistID, windowStart, windowEnd)
	if err != nil {
		return nil, apperr.Internal("error fetching time slots for therapist", err)
	}

	now := a.now().In(zone)
	views := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		start := ResolveToInstant(slot.TimeStart, date, zone)

		status := StatusAvailable
		if _, taken := occupied[slot.ID]; taken {
			status = StatusOccupied
		} else if start.Before(now) {
			status = StatusNotAvailable
		}

		views = append(views, SlotView{
			ID:        slot.ID,
			TimeStart: FormatWallClock(start, zone),
			TimeEnd:   FormatWallClock(start.Add(sessionLength), zone),
			Status:    status,
		})
	}

	a.logger.Debug("availability resolved",
		"therapist_id", therapistID,
		"client_id", clientID,
		"date", dateStr,
		"slots", len(views),
	)
	return views, nil
}

// SessionWindow returns the [start, end) interval of a session beginning at
// the given instant.
func SessionWindow(start time.Time) (time.Time, time.Time) {
	return start, start.Add(sessionLength)
}

// String implements fmt.Stringer for debugging slot views.
func (v SlotView) String() string {
	return fmt.Sprintf("%d %s-%s %s", v.ID, v.TimeStart, v.TimeEnd, v.Status)
}
