package timeslot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/therapistbooster/booking-platform/internal/apperr"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads a therapist's recurring slots. Writes happen through therapist
// registration, which owns the slot rows (cascade on therapist delete).
type Store struct {
	db DB
}

// NewStore creates a slot store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// GetByID loads one slot.
func (s *Store) GetByID(ctx context.Context, id int64) (*Slot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, therapist_id, time_start, created_at
		FROM time_slots
		WHERE id = $1`, id)

	var slot Slot
	if err := row.Scan(&slot.ID, &slot.TherapistID, &slot.TimeStart, &slot.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("time slot not found with id %d", id)
		}
		return nil, fmt.Errorf("timeslot: get by id: %w", err)
	}
	return &slot, nil
}

// ListByTherapist returns all slots a therapist offers, earliest first.
func (s *Store) ListByTherapist(ctx context.Context, therapistID int64) ([]Slot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, therapist_id, time_start, created_at
		FROM time_slots
		WHERE therapist_id = $1
		ORDER BY time_start ASC`, therapistID)
	if err != nil {
		return nil, fmt.Errorf("timeslot: list by therapist: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

func scanSlots(rows pgx.Rows) ([]Slot, error) {
	var result []Slot
	for rows.Next() {
		var slot Slot
		if err := rows.Scan(&slot.ID, &slot.TherapistID, &slot.TimeStart, &slot.CreatedAt); err != nil {
			return nil, fmt.Errorf("timeslot: scan slot: %w", err)
		}
		result = append(result, slot)
	}
	return result, rows.Err()
}
