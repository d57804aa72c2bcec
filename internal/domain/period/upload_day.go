// internal/domain/period/upload_day.go
package period

import (
	"fmt"
	"strings"
	"time"
)

// UploadDay restricts uploads to one weekday. AllDays lifts the restriction.
type UploadDay int

const AllDays UploadDay = -1

var ErrUnknownWeekday = fmt.Errorf("unknown weekday")

func (d UploadDay) Matches(w time.Weekday) bool {
	return d == AllDays || time.Weekday(d) == w
}

func (d UploadDay) String() string {
	if d == AllDays {
		return "all"
	}
	return strings.ToLower(time.Weekday(d).String())
}

func ParseUploadDay(s string) (UploadDay, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllDays, nil
	}
	wd, err := ParseWeekday(s)
	if err != nil {
		return AllDays, err
	}
	return UploadDay(wd), nil
}

// ParseWeekday accepts full English names or their three letter prefix, in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrUnknownWeekday, s)
}

// InUploadInterval reports whether date is a day on which a form with the given
// interval and restrictions accepts uploads. weekOfMonth <= 0 means any week.
func InUploadInterval(iv Interval, weekOfMonth int, day UploadDay, date time.Time, anchor time.Weekday) bool {
	switch iv {
	case IntervalDaily:
		return true
	case IntervalWeekly:
		return day.Matches(date.Weekday())
	case IntervalMonthly:
		if weekOfMonth > 0 && WeekWindowContaining(date, anchor).Week != weekOfMonth {
			return false
		}
		return day.Matches(date.Weekday())
	}
	return false
}
