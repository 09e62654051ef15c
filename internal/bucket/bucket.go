// Package bucket maps block timestamps onto the calendar keys used to
// scope time-windowed aggregates.
package bucket

import (
	"fmt"
	"time"
)

// Buckets holds the three calendar keys for one timestamp.
type Buckets struct {
	Day   string // YYYY-MM-DD
	Week  string // YYYY-Www, ISO-8601 week numbering
	Month string // YYYY-MM
}

// For derives the calendar buckets for a unix timestamp (seconds, UTC).
// The week key uses the ISO week-year, which near year boundaries can
// differ from the calendar year of the timestamp itself.
func For(ts int64) Buckets {
	t := time.Unix(ts, 0).UTC()
	year, week := t.ISOWeek()
	return Buckets{
		Day:   t.Format("2006-01-02"),
		Week:  fmt.Sprintf("%04d-W%02d", year, week),
		Month: t.Format("2006-01"),
	}
}
