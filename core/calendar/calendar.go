// Package calendar provides Monday-anchored ISO week arithmetic used by the
// planners. All week values are UTC midnight Mondays so they are safe to use
// as map keys and to compare with ==.
package calendar

import "time"

// DateLayout is the canonical date format used by adapters and exports.
const DateLayout = "2006-01-02"

// Normalize truncates t to UTC midnight.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ISOMonday floors t to the Monday of its ISO week.
func ISOMonday(t time.Time) time.Time {
	d := Normalize(t)
	wd := int(d.Weekday())
	if wd == 0 {
		wd = 7 // Sunday belongs to the week started six days earlier
	}
	return d.AddDate(0, 0, -(wd - 1))
}

// Weeks returns the ascending sequence of Mondays from ISOMonday(from) to
// ISOMonday(to), inclusive, in 7-day steps.
func Weeks(from, to time.Time) []time.Time {
	cur := ISOMonday(from)
	end := ISOMonday(to)
	var weeks []time.Time
	for !cur.After(end) {
		weeks = append(weeks, cur)
		cur = cur.AddDate(0, 0, 7)
	}
	return weeks
}

// WeekEnd returns the Sunday closing the week started at weekStart.
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 6)
}

// ParseDate parses a YYYY-MM-DD date into a normalized UTC time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Normalize(t), nil
}

// FormatDate renders t in the canonical YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
