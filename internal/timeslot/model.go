package timeslot

import "time"

// Slot is a therapist's recurring daily offering. TimeStart is stored as a UTC
// instant on an arbitrary reference date; only its time-of-day is meaningful.
// A slot means "10:00 therapist-local time, every day", never a fixed instant.
type Slot struct {
	ID          int64
	TherapistID int64
	TimeStart   time.Time
	CreatedAt   time.Time
}

// Slot availability statuses from the client's point of view.
const (
	StatusAvailable    = "AVAILABLE"
	StatusOccupied     = "OCCUPIED"
	StatusNotAvailable = "NOT_AVAILABLE"
)

// SlotView is one row of a therapist's day as rendered for a client: the
// slot's start/end wall-clock in the client's zone plus its status.
type SlotView struct {
	ID        int64  `json:"id"`
	TimeStart string `json:"timeStart"`
	TimeEnd   string `json:"timeEnd"`
	Status    string `json:"status"`
}
