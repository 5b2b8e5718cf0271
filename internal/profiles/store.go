package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/therapistbooster/booking-platform/internal/apperr"
)

// DB abstracts the pgx pool interface, including transactions for therapist
// registration which writes profile and slots atomically.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists therapist and client profiles.
type Store struct {
	db DB
}

// NewStore creates a profile store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

// CreateTherapist inserts the profile and its recurring slots in one
// transaction. slotStarts carry only a meaningful time-of-day.
func (s *Store) CreateTherapist(ctx context.Context, t *Therapist, slotStarts []time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("profiles: begin create therapist: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO therapists (name, email, timezone, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		t.Name, t.Email, t.Timezone, t.Amount)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("email already registered")
		}
		return fmt.Errorf("profiles: insert therapist: %w", err)
	}

	for _, start := range slotStarts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO time_slots (therapist_id, time_start)
			VALUES ($1, $2)`, t.ID, start); err != nil {
			return fmt.Errorf("profiles: insert time slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("profiles: commit create therapist: %w", err)
	}
	return nil
}

// CreateClient inserts a client profile.
func (s *Store) CreateClient(ctx context.Context, c *Client) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO clients (name, email, timezone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		c.Name, c.Email, c.Timezone)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("email already registered")
		}
		return fmt.Errorf("profiles: insert client: %w", err)
	}
	return nil
}

// GetTherapist loads one therapist profile.
func (s *Store) GetTherapist(ctx context.Context, id int64) (*Therapist, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, email, timezone, amount, created_at
		FROM therapists
		WHERE id = $1`, id)

	var t Therapist
	if err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Timezone, &t.Amount, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("therapist not found with id %d", id)
		}
		return nil, fmt.Errorf("profiles: get therapist: %w", err)
	}
	return &t, nil
}

// GetClient loads one client profile.
func (s *Store) GetClient(ctx context.Context, id int64) (*Client, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, email, timezone, created_at
		FROM clients
		WHERE id = $1`, id)

	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Timezone, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("client not found with id %d", id)
		}
		return nil, fmt.Errorf("profiles: get client: %w", err)
	}
	return &c, nil
}

// TherapistExists reports whether the therapist id is registered.
func (s *Store) TherapistExists(ctx context.Context, id int64) (bool, error) {
	row := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM therapists WHERE id = $1)`, id)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("profiles: therapist exists: %w", err)
	}
	return exists, nil
}

// ClientTimeZone returns the IANA zone name a client registered with.
func (s *Store) ClientTimeZone(ctx context.Context, id int64) (string, error) {
	row := s.db.QueryRow(ctx, `SELECT timezone FROM clients WHERE id = $1`, id)
	var zone string
	if err := row.Scan(&zone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("client not found with id %d", id)
		}
		return "", fmt.Errorf("profiles: client time zone: %w", err)
	}
	return zone, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
