// Package reminder nudges the guard when no report has been generated for a
// while during the active hours.
package reminder

import (
	"time"

	"github.com/joelkehle/patrol-report/internal/statestore"
)

const (
	// Interval is how often the scheduler re-evaluates the policy.
	Interval = time.Minute
	// Quiet is the time since the last report after which a reminder is due.
	Quiet = 2 * time.Hour

	windowStartHour = 17
	windowEndHour   = 6
)

const (
	Title = "Safety Report Reminder"
	Body  = "It has been 2 hours since your last report. Please submit the latest status."
)

// Due reports whether a reminder should go out at now. lastReport and sentFor
// are the raw stored stamps; an empty or unparseable lastReport is never due.
// now is read in its own location.
func Due(now time.Time, lastReport, sentFor string) bool {
	if lastReport == "" || lastReport == sentFor {
		return false
	}
	last, ok := statestore.ParseStamp(lastReport)
	if !ok {
		return false
	}
	if now.Sub(last) < Quiet {
		return false
	}
	return InActiveWindow(now)
}

// InActiveWindow is true all of Sunday and from 17:00 until 06:00 on other
// days.
func InActiveWindow(now time.Time) bool {
	if now.Weekday() == time.Sunday {
		return true
	}
	h := now.Hour()
	return h >= windowStartHour || h < windowEndHour
}
