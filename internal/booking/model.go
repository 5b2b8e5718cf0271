package booking

import "time"

// PaymentStatus is the lifecycle state of a booking. HOLD is the only
// non-terminal state.
type PaymentStatus string

const (
	StatusHold      PaymentStatus = "HOLD"
	StatusCompleted PaymentStatus = "COMPLETED"
	StatusExpired   PaymentStatus = "EXPIRED"
	StatusFailure   PaymentStatus = "FAILURE"
)

// Terminal reports whether the status admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusFailure
}

// Booking ties a client, therapist and slot to one absolute session start.
// SessionStartTime is the canonical UTC instant; ClientTimezone records the
// zone the client booked in so later emails and reschedules render correctly.
type Booking struct {
	ID                    int64
	TherapistID           int64
	ClientID              int64
	TimeSlotID            int64
	ClientTimezone        string
	SessionStartTime      time.Time
	HoldStartTime         *time.Time
	PaymentStatus         PaymentStatus
	StripeSessionID       *string
	StripePaymentIntentID *string
	StripeRefundID        *string
	TherapistMeetLink     *string
	ClientMeetLink        *string
	MeetingCreatedAt      *time.Time
	Amount                float64
	Currency              string
	Quantity              int
	ProductName           string
	Category              string
	ConnectMethod         string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HoldLapsed reports whether a HOLD has outlived the TTL. Only meaningful for
// bookings in HOLD state.
func (b *Booking) HoldLapsed(now time.Time, ttl time.Duration) bool {
	if b.PaymentStatus != StatusHold || b.HoldStartTime == nil {
		return false
	}
	return now.Sub(*b.HoldStartTime) >= ttl
}

// MeetingCreated reports whether a Zoom meeting has already been attached.
// Used to keep webhook-driven meeting creation idempotent across redeliveries.
func (b *Booking) MeetingCreated() bool {
	return b.MeetingCreatedAt != nil
}
