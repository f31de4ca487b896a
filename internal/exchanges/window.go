package exchanges

import (
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

var ErrInvalidWindow = errors.New("invalid date window")

// Day is one local calendar day, [Start, End] inclusive with millisecond precision.
type Day struct {
	Start time.Time
	End   time.Time
}

// StartMillis returns the first millisecond of the day.
func (d Day) StartMillis() int64 { return d.Start.UnixMilli() }

// EndMillis returns the last millisecond of the day.
func (d Day) EndMillis() int64 { return d.End.UnixMilli() }

// Window spans [startDate 00:00:00.000, endDate 23:59:59.999] in a location.
type Window struct {
	StartDate string
	EndDate   string
	Start     time.Time
	End       time.Time
}

// ParseWindow builds a Window from two YYYY-MM-DD dates interpreted in loc.
func ParseWindow(startDate, endDate string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(dateLayout, startDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start date %q: %v", ErrInvalidWindow, startDate, err)
	}
	end, err := time.ParseInLocation(dateLayout, endDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end date %q: %v", ErrInvalidWindow, endDate, err)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidWindow, startDate, endDate)
	}
	return Window{
		StartDate: startDate,
		EndDate:   endDate,
		Start:     start,
		End:       endOfDay(end),
	}, nil
}

// StartMillis returns the first millisecond of the window.
func (w Window) StartMillis() int64 { return w.Start.UnixMilli() }

// EndMillis returns the last millisecond of the window.
func (w Window) EndMillis() int64 { return w.End.UnixMilli() }

// Contains reports whether the epoch millisecond ts falls inside the window.
func (w Window) Contains(ts int64) bool {
	return ts >= w.StartMillis() && ts <= w.EndMillis()
}

// Days enumerates the calendar days of the window in order.
func (w Window) Days() []Day {
	var days []Day
	for cur := w.Start; !cur.After(w.End); cur = cur.AddDate(0, 0, 1) {
		days = append(days, Day{Start: cur, End: endOfDay(cur)})
	}
	return days
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
