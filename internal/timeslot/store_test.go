package timeslot

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therapistbooster/booking-platform/internal/apperr"
)

func TestGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT id, therapist_id, time_start, created_at").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "therapist_id", "time_start", "created_at"}).
			AddRow(int64(5), int64(1), now, now))

	store := NewStore(mock)
	slot, err := store.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), slot.ID)
	assert.Equal(t, int64(1), slot.TherapistID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, therapist_id, time_start, created_at").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "therapist_id", "time_start", "created_at"}))

	store := NewStore(mock)
	_, err = store.GetByID(context.Background(), 42)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.EqualError(t, err, "time slot not found with id 42")
}

func TestListByTherapistOrdersByStart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("ORDER BY time_start ASC").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "therapist_id", "time_start", "created_at"}).
			AddRow(int64(1), int64(1), now, now).
			AddRow(int64(2), int64(1), now.Add(time.Hour), now))

	store := NewStore(mock)
	slots, err := store.ListByTherapist(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, int64(1), slots[0].ID)
	assert.Equal(t, int64(2), slots[1].ID)
}
