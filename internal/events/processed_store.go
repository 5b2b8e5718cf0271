package events

import (
	"context"
	"fmt"
)

// ProcessedStore records provider event ids so redelivered webhooks are
// dropped before they reach the outbox.
type ProcessedStore struct {
	db DB
}

// NewProcessedStore creates a processed-event store.
func NewProcessedStore(db DB) *ProcessedStore {
	return &ProcessedStore{db: db}
}

// AlreadyProcessed reports whether an event id has been seen before.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2
		)`, provider, eventID)
	var seen bool
	if err := row.Scan(&seen); err != nil {
		return false, fmt.Errorf("events: already processed: %w", err)
	}
	return seen, nil
}

// MarkProcessed claims an event id. Returns true when this is the first time
// the event was seen; false means a duplicate delivery.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ct, err := s.db.Exec(ctx, `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT (provider, event_id) DO NOTHING`, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
