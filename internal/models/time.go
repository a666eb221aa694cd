package models

import "time"

// TimeLayout is the fixed-width RFC3339 layout used for every client-side
// timestamp. The constant fraction width keeps lexicographic string
// comparison equivalent to chronological comparison, which the
// updated-since queries rely on.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// EpochCursor is the cursor value that forces a full re-pull.
const EpochCursor = "1970-01-01T00:00:00.000000Z"

// Now returns the current UTC time in TimeLayout.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}
