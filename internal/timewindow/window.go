// Package timewindow computes the reporting interval for a run.
//
// DESIGN: The report always covers the previous calendar month in the
// configured zone. The window is closed on both ends: End is the last
// second of the previous month (one second before the first instant of
// the current month), matching the bounds the alerts API expects.
package timewindow

import (
	"fmt"
	"time"
)

// Window is an immutable reporting interval. Both bounds carry the zone
// they were resolved in; Start is never after End.
type Window struct {
	Start time.Time
	End   time.Time
}

// PreviousMonth returns the window covering the whole calendar month
// before the one containing now. Pure function of its input.
func PreviousMonth(now time.Time) Window {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := firstOfThisMonth.Add(-time.Second)
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	return Window{Start: start, End: end}
}

// FromUnix returns the lower bound in unix seconds.
func (w Window) FromUnix() int64 { return w.Start.Unix() }

// ToUnix returns the upper bound in unix seconds.
func (w Window) ToUnix() int64 { return w.End.Unix() }

// String formats the window for logging.
func (w Window) String() string {
	return fmt.Sprintf("%s to %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
