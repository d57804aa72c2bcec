// internal/domain/period/week.go
package period

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Window is a DateRange tagged with the period it represents.
type Window struct {
	DateRange
	Year       int
	Month      time.Month
	Week       int
	SourceDate time.Time
	Interval   Interval
	IsCurrent  bool
}

func (w Window) LogFields() logrus.Fields {
	return logrus.Fields{
		"interval":     w.Interval,
		"period_begin": w.Begin,
		"period_end":   w.End,
		"year":         w.Year,
		"month":        int(w.Month),
		"week":         w.Week,
		"source_date":  w.SourceDate.Format("2006-01-02"),
		"is_current":   w.IsCurrent,
	}
}

// WeekWindowsOfMonth splits the month of t into Monday-started weeks.
//
// Days before the first Monday form week 1 when they include anchor. Otherwise they
// belong to the last week of the previous month, numbered by the count of anchor
// days in this month, and the window covers the whole Monday week around them.
func WeekWindowsOfMonth(t time.Time, anchor time.Weekday) []Window {
	start := startOfMonth(t)
	firstMonday := start
	for firstMonday.Weekday() != time.Monday {
		firstMonday = firstMonday.AddDate(0, 0, 1)
	}

	windows := make([]Window, 0, 6)
	if firstMonday.Day() > 1 {
		stub := Window{Interval: IntervalWeekly, SourceDate: t, IsCurrent: true}
		if hasWeekday(start, firstMonday, anchor) {
			stub.DateRange = DateRange{Begin: start, End: firstMonday.Add(-Tick)}
			stub.Year, stub.Month, stub.Week = start.Year(), start.Month(), 1
		} else {
			begin := firstMonday.AddDate(0, 0, -7)
			stub.DateRange = DateRange{Begin: begin, End: firstMonday.Add(-Tick)}
			stub.Year, stub.Month = begin.Year(), begin.Month()
			stub.Week = countWeekday(start, anchor)
		}
		windows = append(windows, stub)
	}

	for begin := firstMonday; begin.Month() == start.Month(); begin = begin.AddDate(0, 0, 7) {
		windows = append(windows, Window{
			DateRange:  DateRange{Begin: begin, End: begin.AddDate(0, 0, 7).Add(-Tick)},
			Year:       start.Year(),
			Month:      start.Month(),
			Week:       len(windows) + 1,
			SourceDate: t,
			Interval:   IntervalWeekly,
			IsCurrent:  true,
		})
	}
	return windows
}

// WeekWindowContaining returns the first week window of date's month that contains date.
func WeekWindowContaining(date time.Time, anchor time.Weekday) Window {
	for _, w := range WeekWindowsOfMonth(date, anchor) {
		if w.Contains(date) {
			w.SourceDate = date
			return w
		}
	}
	// unreachable: the windows of a month cover every day of it
	begin := startOfDay(date)
	return Window{
		DateRange:  DateRange{Begin: begin, End: begin.AddDate(0, 0, 7).Add(-Tick)},
		Year:       date.Year(),
		Month:      date.Month(),
		SourceDate: date,
		Interval:   IntervalWeekly,
		IsCurrent:  true,
	}
}

// WindowsWithPrevious builds the daily, weekly and monthly windows for date. With
// includePrevious each is preceded by the window one unit earlier (-1 day, -7 days,
// -1 month), tagged as not current.
func WindowsWithPrevious(date time.Time, includePrevious bool, anchor time.Weekday) []Window {
	windows := make([]Window, 0, 2*len(Intervals))
	for _, iv := range Intervals {
		if includePrevious {
			windows = append(windows, windowFor(iv, shiftBack(iv, date), date, anchor, false))
		}
		windows = append(windows, windowFor(iv, date, date, anchor, true))
	}
	return windows
}

func windowFor(iv Interval, ref, source time.Time, anchor time.Weekday, current bool) Window {
	var w Window
	switch iv {
	case IntervalWeekly:
		w = WeekWindowContaining(ref, anchor)
	case IntervalMonthly:
		w = Window{DateRange: monthRange(ref), Year: ref.Year(), Month: ref.Month()}
	default:
		w = Window{DateRange: dayRange(ref), Year: ref.Year(), Month: ref.Month()}
	}
	w.Interval = iv
	w.SourceDate = source
	w.IsCurrent = current
	return w
}

func shiftBack(iv Interval, t time.Time) time.Time {
	switch iv {
	case IntervalWeekly:
		return t.AddDate(0, 0, -7)
	case IntervalMonthly:
		return addMonths(t, -1)
	}
	return t.AddDate(0, 0, -1)
}

func hasWeekday(from, to time.Time, day time.Weekday) bool {
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == day {
			return true
		}
	}
	return false
}

func countWeekday(monthStart time.Time, day time.Weekday) int {
	n := 0
	for d := monthStart; d.Month() == monthStart.Month(); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == day {
			n++
		}
	}
	return n
}
