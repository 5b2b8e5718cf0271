package timeslot

import (
	"time"

	"github.com/therapistbooster/booking-platform/internal/apperr"
)

const wallClockLayout = "15:04"

// referenceDate anchors wall-clock-only values when a slot is first stored.
// The date component is never read back.
func referenceDate(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// ParseZone resolves an IANA zone name, classifying failures as validation
// errors so they surface to callers verbatim.
func ParseZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, apperr.Validation("time zone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperr.Validation("invalid time zone")
	}
	return loc, nil
}

// ParseDate parses a yyyy-mm-dd calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be yyyy-mm-dd format")
	}
	return d, nil
}

// ParseWallClock converts a "HH:mm" slot string in the given zone into the
// stored UTC representation. Used at therapist registration.
func ParseWallClock(s string, loc *time.Location) (time.Time, error) {
	clock, err := time.Parse(wallClockLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid time in timeslots: %s", s)
	}
	ref := referenceDate(loc)
	local := time.Date(ref.Year(), ref.Month(), ref.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	return local.UTC(), nil
}

// ResolveToInstant reinterprets a slot's stored time-of-day in the given zone
// and combines it with the calendar date, yielding the absolute session start.
// Every cross-zone slot comparison must go through this; comparing stored
// instants directly would pin the slot to one calendar day.
func ResolveToInstant(slotStart time.Time, date time.Time, loc *time.Location) time.Time {
	local := slotStart.In(loc)
	return time.Date(date.Year(), date.Month(), date.Day(), local.Hour(), local.Minute(), 0, 0, loc)
}

// DayWindow returns the UTC half-open interval covering the calendar date in
// the given zone: [startOfDay, startOfDay+24h).
func DayWindow(date time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// FormatWallClock renders an instant's time-of-day in the given zone.
func FormatWallClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(wallClockLayout)
}
