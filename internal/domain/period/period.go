// internal/domain/period/period.go
package period

import (
	"fmt"
	"strings"
	"time"
)

// Tick is the gap between the inclusive end of a range and the begin of the next one.
const Tick = 100 * time.Nanosecond

// Interval is how often a form expects a new data file.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Intervals lists every interval in the order period batches are built.
var Intervals = []Interval{IntervalDaily, IntervalWeekly, IntervalMonthly}

var ErrUnknownInterval = fmt.Errorf("unknown upload interval")

func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.ToLower(strings.TrimSpace(s)))
	switch iv {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return iv, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInterval, s)
}

// DateRange is an inclusive [Begin, End] range where End is one Tick before the next period begins.
type DateRange struct {
	Begin time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Begin) && !t.After(r.End)
}

// EndExclusive is the first instant after the range, for half-open comparisons.
func (r DateRange) EndExclusive() time.Time {
	return r.End.Add(Tick)
}

func (r DateRange) String() string {
	if sameDay(r.Begin, r.End) {
		return r.Begin.Format("2006-01-02")
	}
	return fmt.Sprintf("%s ~ %s", r.Begin.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

// RangeForInterval resolves the range the interval covers around ref.
func RangeForInterval(iv Interval, ref time.Time, anchor time.Weekday) (DateRange, error) {
	switch iv {
	case IntervalDaily:
		return dayRange(ref), nil
	case IntervalWeekly:
		return WeekWindowContaining(ref, anchor).DateRange, nil
	case IntervalMonthly:
		return monthRange(ref), nil
	}
	return DateRange{}, fmt.Errorf("%w: %q", ErrUnknownInterval, string(iv))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func dayRange(t time.Time) DateRange {
	begin := startOfDay(t)
	return DateRange{Begin: begin, End: begin.AddDate(0, 0, 1).Add(-Tick)}
}

func monthRange(t time.Time) DateRange {
	begin := startOfMonth(t)
	return DateRange{Begin: begin, End: begin.AddDate(0, 1, 0).Add(-Tick)}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// addMonths shifts t by n months, clamping to the last day of the target month
// instead of overflowing into the month after.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}
