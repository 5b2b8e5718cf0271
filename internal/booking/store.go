package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/therapistbooster/booking-platform/internal/apperr"
)

// DB abstracts the pgx pool interface, including transactions for the
// hold-insert path.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists bookings.
type Store struct {
	db DB
}

// NewStore creates a booking store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const bookingColumns = `
	id, therapist_id, client_id, time_slot_id, client_timezone,
	session_start_time, hold_start_time, payment_status,
	stripe_session_id, stripe_payment_intent_id, stripe_refund_id,
	therapist_meet_link, client_meet_link, meeting_created_at,
	amount, currency, quantity, product_name, category, connect_method,
	created_at, updated_at`

// GetByID loads one booking.
func (s *Store) GetByID(ctx context.Context, id int64) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("booking not found with id %d", id)
		}
		return nil, fmt.Errorf("booking: get by id: %w", err)
	}
	return b, nil
}

// GetByStripeSessionID looks a booking up by its checkout session. Returns
// (nil, nil) when no booking references the session; webhook processing treats
// that as an event to drop, not an error.
func (s *Store) GetByStripeSessionID(ctx context.Context, sessionID string) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE stripe_session_id = $1`, sessionID)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("booking: get by stripe session: %w", err)
	}
	return b, nil
}

// FindActiveBySlotAndStart returns the booking holding or occupying the exact
// (slot, session start) key, or nil. At most one can exist while the partial
// unique index is in place.
func (s *Store) FindActiveBySlotAndStart(ctx context.Context, slotID int64, start time.Time) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE time_slot_id = $1 AND session_start_time = $2
		  AND payment_status IN ('HOLD', 'COMPLETED')`, slotID, start)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("booking: find by slot and start: %w", err)
	}
	return b, nil
}

// FindByClientInWindow returns a client's held or completed bookings with a
// session start inside [from, to), across all therapists.
func (s *Store) FindByClientInWindow(ctx context.Context, clientID int64, from, to time.Time) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE client_id = $1
		  AND session_start_time >= $2 AND session_start_time < $3
		  AND payment_status IN ('HOLD', 'COMPLETED')`, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("booking: find by client in window: %w", err)
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan client booking: %w", err)
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// CompletedSlotIDs returns the slot ids a therapist has COMPLETED bookings for
// inside [from, to). Feeds the availability OCCUPIED marking.
func (s *Store) CompletedSlotIDs(ctx context.Context, therapistID int64, from, to time.Time) (map[int64]struct{}, error) {
	rows, err := s.db.Query(ctx, `
		SELECT time_slot_id
		FROM bookings
		WHERE therapist_id = $1
		  AND session_start_time >= $2 AND session_start_time < $3
		  AND payment_status = 'COMPLETED'`, therapistID, from, to)
	if err != nil {
		return nil, fmt.Errorf("booking: completed slot ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("booking: scan slot id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// InsertHold places a HOLD on (slot, session start) atomically. Inside one
// transaction it first expires any lapsed HOLD on the same key, then inserts.
// The partial unique index turns a lost race into a unique violation, which
// surfaces as the same conflict a sequential caller would have seen.
func (s *Store) InsertHold(ctx context.Context, b *Booking, ttl time.Duration) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin insert hold: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE bookings
		SET payment_status = 'EXPIRED', updated_at = now()
		WHERE time_slot_id = $1 AND session_start_time = $2
		  AND payment_status = 'HOLD' AND hold_start_time < $3`,
		b.TimeSlotID, b.SessionStartTime, time.Now().Add(-ttl)); err != nil {
		return fmt.Errorf("booking: expire stale hold: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO bookings (
			therapist_id, client_id, time_slot_id, client_timezone,
			session_start_time, hold_start_time, payment_status,
			amount, currency, quantity, product_name, category, connect_method
		) VALUES ($1, $2, $3, $4, $5, $6, 'HOLD', $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		b.TherapistID, b.ClientID, b.TimeSlotID, b.ClientTimezone,
		b.SessionStartTime, b.HoldStartTime,
		b.Amount, b.Currency, b.Quantity, b.ProductName, b.Category, b.ConnectMethod)
	if err := row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Conflict("slot temporarily held")
		}
		return fmt.Errorf("booking: insert hold: %w", err)
	}
	b.PaymentStatus = StatusHold

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit insert hold: %w", err)
	}
	return nil
}

// ExpireStaleHolds flips every HOLD older than the cutoff to EXPIRED and
// returns how many it released. The reaper's sweep.
func (s *Store) ExpireStaleHolds(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET payment_status = 'EXPIRED', updated_at = now()
		WHERE payment_status = 'HOLD' AND hold_start_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("booking: expire stale holds: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetStripeSession attaches the checkout session id to a fresh hold.
func (s *Store) SetStripeSession(ctx context.Context, id int64, sessionID string) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE bookings SET stripe_session_id = $2, updated_at = now()
		WHERE id = $1`, id, sessionID); err != nil {
		return fmt.Errorf("booking: set stripe session: %w", err)
	}
	return nil
}

// UpdateStatus moves a booking to the given lifecycle state.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status PaymentStatus) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE bookings SET payment_status = $2, updated_at = now()
		WHERE id = $1`, id, string(status)); err != nil {
		return fmt.Errorf("booking: update status: %w", err)
	}
	return nil
}

// MarkCompleted confirms payment: status COMPLETED plus the payment intent id
// for later refund lookups. When the hold lapsed and another booking took the
// (slot, session start) key in the meantime, the unique index rejects the
// transition and a conflict is returned instead of a retryable error.
func (s *Store) MarkCompleted(ctx context.Context, id int64, paymentIntentID string) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET payment_status = 'COMPLETED', stripe_payment_intent_id = $2, updated_at = now()
		WHERE id = $1`, id, paymentIntentID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Conflict("slot was rebooked before payment completed")
		}
		return fmt.Errorf("booking: mark completed: %w", err)
	}
	return nil
}

// SaveMeetingLinks records the created meeting and stamps meeting_created_at,
// the idempotence marker that keeps webhook redeliveries from creating a
// second meeting.
func (s *Store) SaveMeetingLinks(ctx context.Context, id int64, therapistLink, clientLink string, createdAt time.Time) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET therapist_meet_link = $2, client_meet_link = $3, meeting_created_at = $4, updated_at = now()
		WHERE id = $1`, id, therapistLink, clientLink, createdAt); err != nil {
		return fmt.Errorf("booking: save meeting links: %w", err)
	}
	return nil
}

// SetRefund records a refund id issued for the booking's payment intent.
func (s *Store) SetRefund(ctx context.Context, id int64, refundID string) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE bookings SET stripe_refund_id = $2, updated_at = now()
		WHERE id = $1`, id, refundID); err != nil {
		return fmt.Errorf("booking: set refund: %w", err)
	}
	return nil
}

// UpdateSchedule moves a booking to a new slot and session start with fresh
// meeting links. Used by reschedule.
func (s *Store) UpdateSchedule(ctx context.Context, id, slotID int64, start time.Time, therapistLink, clientLink string) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET time_slot_id = $2, session_start_time = $3,
		    therapist_meet_link = $4, client_meet_link = $5, updated_at = now()
		WHERE id = $1`, id, slotID, start, therapistLink, clientLink); err != nil {
		return fmt.Errorf("booking: update schedule: %w", err)
	}
	return nil
}

// Delete removes a booking outright. Cancellation is a hard delete so the
// slot opens up again immediately.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("booking: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("booking not found with id %d", id)
	}
	return nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status string
	if err := row.Scan(
		&b.ID, &b.TherapistID, &b.ClientID, &b.TimeSlotID, &b.ClientTimezone,
		&b.SessionStartTime, &b.HoldStartTime, &status,
		&b.StripeSessionID, &b.StripePaymentIntentID, &b.StripeRefundID,
		&b.TherapistMeetLink, &b.ClientMeetLink, &b.MeetingCreatedAt,
		&b.Amount, &b.Currency, &b.Quantity, &b.ProductName, &b.Category, &b.ConnectMethod,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.PaymentStatus = PaymentStatus(status)
	return &b, nil
}
