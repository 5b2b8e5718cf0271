package meeting

import "time"

// Request describes the session a meeting is needed for. PreviousStart is set
// when the session moved; it switches the notification copy to the reschedule
// variant.
type Request struct {
	Start             time.Time
	PreviousStart     *time.Time
	TherapistEmail    string
	TherapistName     string
	TherapistTimezone string
	ClientEmail       string
	ClientName        string
	ClientTimezone    string
}

// Links are the two sides of a created meeting. The start URL is the host
// link and must only ever reach the therapist.
type Links struct {
	StartURL string
	JoinURL  string
}
