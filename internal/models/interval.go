package models

import (
	"fmt"
	"time"

	appErrors "github.com/schnillerman/care-contracts-api/pkg/errors"
)

// Interval is a date range with an optional open end. A nil End means the
// interval extends indefinitely into the future; no sentinel date is ever
// compared in application logic.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// NewInterval builds an interval, rejecting ranges whose end precedes the start.
func NewInterval(start time.Time, end *time.Time) (Interval, error) {
	if end != nil && end.Before(start) {
		return Interval{}, appErrors.Clone(appErrors.ErrInvalidRange,
			fmt.Sprintf("end date %s is before start date %s", end.Format(time.DateOnly), start.Format(time.DateOnly)))
	}
	return Interval{Start: start, End: end}, nil
}

// Open reports whether the interval has no defined end.
func (i Interval) Open() bool {
	return i.End == nil
}

// Overlaps reports whether two intervals share at least one day. Boundaries
// are inclusive: a period ending on a given day conflicts with one starting
// that same day. Callers relying on back-to-back periods must leave a gap of
// at least one day.
func (i Interval) Overlaps(o Interval) bool {
	return !i.endsBefore(o.Start) && !o.endsBefore(i.Start)
}

func (i Interval) endsBefore(day time.Time) bool {
	return i.End != nil && i.End.Before(day)
}

// String renders the interval for log and conflict messages.
func (i Interval) String() string {
	if i.End == nil {
		return fmt.Sprintf("%s - open", i.Start.Format(time.DateOnly))
	}
	return fmt.Sprintf("%s - %s", i.Start.Format(time.DateOnly), i.End.Format(time.DateOnly))
}
