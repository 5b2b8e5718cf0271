package booking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therapistbooster/booking-platform/internal/apperr"
	"github.com/therapistbooster/booking-platform/internal/observability/metrics"
	"github.com/therapistbooster/booking-platform/internal/profiles"
	"github.com/therapistbooster/booking-platform/internal/timeslot"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

var tracer = otel.Tracer("booking.internal.booking")

// SlotCatalog loads the slot being reserved.
type SlotCatalog interface {
	GetByID(ctx context.Context, id int64) (*timeslot.Slot, error)
}

// ProfileCatalog loads the two parties of a reservation.
type ProfileCatalog interface {
	GetTherapist(ctx context.Context, id int64) (*profiles.Therapist, error)
	GetClient(ctx context.Context, id int64) (*profiles.Client, error)
}

// ReservationStore is the slice of the booking store Reserve needs.
type ReservationStore interface {
	FindActiveBySlotAndStart(ctx context.Context, slotID int64, start time.Time) (*Booking, error)
	FindByClientInWindow(ctx context.Context, clientID int64, from, to time.Time) ([]Booking, error)
	InsertHold(ctx context.Context, b *Booking, ttl time.Duration) error
	SetStripeSession(ctx context.Context, id int64, sessionID string) error
	UpdateStatus(ctx context.Context, id int64, status PaymentStatus) error
}

// CheckoutParams carries everything the payment provider needs to build a
// checkout session for one reservation.
type CheckoutParams struct {
	BookingID         int64
	Amount            float64
	Currency          string
	ProductName       string
	Quantity          int
	TherapistEmail    string
	TherapistName     string
	TherapistTimezone string
	ClientEmail       string
	ClientName        string
	ClientTimezone    string
	SessionStart      time.Time
	SessionEnd        time.Time
}

// CheckoutStarter opens a hosted checkout session and returns its id and URL.
type CheckoutStarter interface {
	CreateSession(ctx context.Context, p CheckoutParams) (sessionID, url string, err error)
}

// ReserveRequest is one client's attempt to book a slot on a calendar date.
type ReserveRequest struct {
	TherapistID   int64  `json:"therapistId"`
	ClientID      int64  `json:"clientId"`
	TimeSlotID    int64  `json:"timeSlotId"`
	Date          string `json:"date"`
	ConnectMethod string `json:"connectMethod"`
}

// ReserveResult is a successful hold plus the checkout URL to pay within the
// hold TTL.
type ReserveResult struct {
	BookingID    int64     `json:"bookingId"`
	SessionStart time.Time `json:"sessionStart"`
	SessionEnd   time.Time `json:"sessionEnd"`
	HoldExpires  time.Time `json:"holdExpires"`
	CheckoutURL  string    `json:"checkoutUrl"`
}

// Coordinator runs the reserve flow: conflict checks, hold placement and
// checkout session creation.
type Coordinator struct {
	store    ReservationStore
	slots    SlotCatalog
	profiles ProfileCatalog
	checkout CheckoutStarter
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger

	holdTTL  time.Duration
	currency string
	now      func() time.Time
}

// NewCoordinator wires the reserve flow.
func NewCoordinator(store ReservationStore, slots SlotCatalog, profileCatalog ProfileCatalog, checkout CheckoutStarter, m *metrics.BookingMetrics, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		store:    store,
		slots:    slots,
		profiles: profileCatalog,
		checkout: checkout,
		metrics:  m,
		logger:   logger,
		holdTTL:  15 * time.Minute,
		currency: "CAD",
		now:      time.Now,
	}
}

// WithHoldTTL overrides how long a hold blocks the slot before payment.
func (c *Coordinator) WithHoldTTL(ttl time.Duration) *Coordinator {
	if ttl > 0 {
		c.holdTTL = ttl
	}
	return c
}

// WithCurrency overrides the checkout currency.
func (c *Coordinator) WithCurrency(currency string) *Coordinator {
	if currency != "" {
		c.currency = currency
	}
	return c
}

// WithNow overrides the clock (for tests).
func (c *Coordinator) WithNow(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Reserve validates the request, checks both conflict rules, places a HOLD and
// opens a checkout session. The hold is only authoritative through the storage
// unique index; the pre-checks exist to give precise error messages.
func (c *Coordinator) Reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	ctx, span := tracer.Start(ctx, "booking.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("booking.therapist_id", req.TherapistID),
		attribute.Int64("booking.client_id", req.ClientID),
		attribute.Int64("booking.time_slot_id", req.TimeSlotID),
	)

	slot, err := c.slots.GetByID(ctx, req.TimeSlotID)
	if err != nil {
		c.metrics.ObserveReservation("invalid")
		return nil, err
	}
	if slot.TherapistID != req.TherapistID {
		c.metrics.ObserveReservation("invalid")
		return nil, apperr.Validation("time slot does not belong to therapist")
	}

	therapist, err := c.profiles.GetTherapist(ctx, req.TherapistID)
	if err != nil {
		c.metrics.ObserveReservation("invalid")
		return nil, err
	}
	client, err := c.profiles.GetClient(ctx, req.ClientID)
	if err != nil {
		c.metrics.ObserveReservation("invalid")
		return nil, err
	}

	zone, err := timeslot.ParseZone(client.Timezone)
	if err != nil {
		c.metrics.ObserveReservation("invalid")
		return nil, err
	}
	date, err := timeslot.ParseDate(req.Date)
	if err != nil {
		c.metrics.ObserveReservation("invalid")
		return nil, err
	}

	now := c.now()
	start := timeslot.ResolveToInstant(slot.TimeStart, date, zone)
	if start.Before(now) {
		c.metrics.ObserveReservation("invalid")
		return nil, apperr.Validation("cannot book a session in the past")
	}
	start, end := timeslot.SessionWindow(start)

	if err := c.checkConflicts(ctx, req.ClientID, slot.ID, start, date, zone, now); err != nil {
		c.metrics.ObserveReservation("conflict")
		return nil, err
	}

	holdStart := now
	b := &Booking{
		TherapistID:      req.TherapistID,
		ClientID:         req.ClientID,
		TimeSlotID:       slot.ID,
		ClientTimezone:   client.Timezone,
		SessionStartTime: start,
		HoldStartTime:    &holdStart,
		Amount:           therapist.Amount,
		Currency:         c.currency,
		Quantity:         1,
		ProductName:      "Therapy Session with " + therapist.Name,
		Category:         "therapy",
		ConnectMethod:    connectMethodOrDefault(req.ConnectMethod),
	}
	if err := c.store.InsertHold(ctx, b, c.holdTTL); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			c.metrics.ObserveReservation("conflict")
			return nil, err
		}
		c.metrics.ObserveReservation("error")
		return nil, apperr.Internal("failed to reserve slot", err)
	}

	checkoutStarted := time.Now()
	sessionID, checkoutURL, err := c.checkout.CreateSession(ctx, CheckoutParams{
		BookingID:         b.ID,
		Amount:            b.Amount,
		Currency:          b.Currency,
		ProductName:       b.ProductName,
		Quantity:          b.Quantity,
		TherapistEmail:    therapist.Email,
		TherapistName:     therapist.Name,
		TherapistTimezone: therapist.Timezone,
		ClientEmail:       client.Email,
		ClientName:        client.Name,
		ClientTimezone:    client.Timezone,
		SessionStart:      start,
		SessionEnd:        end,
	})
	c.metrics.ObserveCheckoutLatency(time.Since(checkoutStarted).Seconds())
	if err != nil {
		c.logger.Error("checkout session creation failed", "error", err, "booking_id", b.ID)
		if uerr := c.store.UpdateStatus(ctx, b.ID, StatusFailure); uerr != nil {
			c.logger.Error("failed to mark booking FAILURE", "error", uerr, "booking_id", b.ID)
		}
		c.metrics.ObserveReservation("error")
		return nil, apperr.Internal("failed to create checkout session", err)
	}
	if err := c.store.SetStripeSession(ctx, b.ID, sessionID); err != nil {
		c.metrics.ObserveReservation("error")
		return nil, apperr.Internal("failed to reserve slot", err)
	}

	c.metrics.ObserveReservation("held")
	c.logger.Info("hold placed",
		"booking_id", b.ID,
		"time_slot_id", slot.ID,
		"session_start", start,
		"stripe_session_id", sessionID,
	)

	return &ReserveResult{
		BookingID:    b.ID,
		SessionStart: start,
		SessionEnd:   end,
		HoldExpires:  holdStart.Add(c.holdTTL),
		CheckoutURL:  checkoutURL,
	}, nil
}

// checkConflicts enforces both reservation rules: the exact-session rule on
// the slot and the client's cross-therapist overlap rule for the day.
func (c *Coordinator) checkConflicts(ctx context.Context, clientID, slotID int64, start time.Time, date time.Time, zone *time.Location, now time.Time) error {
	existing, err := c.store.FindActiveBySlotAndStart(ctx, slotID, start)
	if err != nil {
		return apperr.Internal("failed to reserve slot", err)
	}
	if existing != nil {
		if existing.PaymentStatus == StatusCompleted {
			return apperr.Conflict("slot already booked")
		}
		if !existing.HoldLapsed(now, c.holdTTL) {
			return apperr.Conflict("slot temporarily held")
		}
		// Lapsed hold: InsertHold expires it inside the same transaction.
	}

	from, to := timeslot.DayWindow(date, zone)
	others, err := c.store.FindByClientInWindow(ctx, clientID, from, to)
	if err != nil {
		return apperr.Internal("failed to reserve slot", err)
	}
	_, end := timeslot.SessionWindow(start)
	for _, other := range others {
		if other.PaymentStatus == StatusHold && other.HoldLapsed(now, c.holdTTL) {
			continue
		}
		otherStart, otherEnd := timeslot.SessionWindow(other.SessionStartTime)
		if start.Before(otherEnd) && otherStart.Before(end) {
			return apperr.Conflict("overlaps with existing booked slot")
		}
	}
	return nil
}

func connectMethodOrDefault(m string) string {
	if m == "" {
		return "zoom"
	}
	return m
}
