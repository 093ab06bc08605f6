package shared

import "time"

// StatusChange is one append-only audit trail entry recording a lifecycle
// transition or an audited edit (charge edits, receipt reports).
type StatusChange struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Notes  string    `json:"notes,omitempty"`
}

// Clock returns the current time. Aggregates take it as a field so that tests
// can pin timestamps.
type Clock func() time.Time

// SystemClock returns time.Now in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}
