package timeutil

import (
	"fmt"
	"time"
)

// dayLayout is the ISO calendar-day layout accepted by ParseDay.
const dayLayout = "2006-01-02"

// Day is a calendar day with no time-of-day or zone component.
// Two Days are comparable with == and ordered with Before/After.
type Day struct {
	year  int
	month time.Month
	day   int
}

// NewDay returns the Day for the given date parts. Out-of-range parts are
// normalised the same way time.Date normalises them.
func NewDay(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{year: y, month: m, day: d}
}

// ParseDay parses the leading YYYY-MM-DD of s. Anything after the first ten
// characters (a time component, a zone) is ignored. Inputs that do not begin
// with an ISO calendar date are rejected; locale-formatted dates are not
// guessed at.
func ParseDay(s string) (Day, bool) {
	if len(s) < len(dayLayout) {
		return Day{}, false
	}
	t, err := time.Parse(dayLayout, s[:len(dayLayout)])
	if err != nil {
		return Day{}, false
	}
	if len(s) > len(dayLayout) {
		switch s[len(dayLayout)] {
		case 'T', 't', ' ':
		default:
			return Day{}, false
		}
	}
	return DayOf(t), true
}

// MustParseDay is like ParseDay but panics on malformed input.
// Intended for tests and constant tables.
func MustParseDay(s string) Day {
	d, ok := ParseDay(s)
	if !ok {
		panic(fmt.Sprintf("timeutil: malformed day %q", s))
	}
	return d
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d == Day{}
}

// Time returns midnight UTC of d.
func (d Day) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool {
	if d.year != o.year {
		return d.year < o.year
	}
	if d.month != o.month {
		return d.month < o.month
	}
	return d.day < o.day
}

// After reports whether d is strictly later than o.
func (d Day) After(o Day) bool {
	return o.Before(d)
}

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Day) DaysUntil(o Day) int {
	return int(o.Time().Sub(d.Time()).Hours() / 24)
}

// String formats d as YYYY-MM-DD.
func (d Day) String() string {
	return d.Time().Format(dayLayout)
}
