// Package timeutil provides calendar utilities for the Seedling engine.
// Weekly plans are keyed by their Monday-aligned week start, so all week
// math here treats Monday as the first day of the week.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// ISODate is the date layout used in plan identifiers and API payloads.
const ISODate = "2006-01-02"

// StartOfDay returns midnight of the given time, keeping its location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of the given day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// StartOfWeek returns Monday 00:00:00 of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(t.AddDate(0, 0, -(weekday - 1)))
}

// EndOfWeek returns Sunday 23:59:59 of the week containing t.
func EndOfWeek(t time.Time) time.Time {
	return EndOfDay(StartOfWeek(t).AddDate(0, 0, 6))
}

// NextWeekStart returns Monday 00:00:00 of the week after the one containing t.
func NextWeekStart(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, 7)
}

// StartOfMonth returns the first day of the month containing t.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// PreviousMonthRange returns the half-open interval [from, to) covering
// the calendar month before the one containing t. Used by the monthly
// analytics job.
func PreviousMonthRange(t time.Time) (from, to time.Time) {
	to = StartOfMonth(t)
	from = to.AddDate(0, -1, 0)
	return from, to
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DaysBetween returns the absolute number of whole days between two times,
// comparing calendar days rather than 24h intervals.
func DaysBetween(t1, t2 time.Time) int {
	d1 := StartOfDay(t1)
	d2 := StartOfDay(t2)
	days := int(d2.Sub(d1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// DaysSince returns the number of whole calendar days from t up to now.
func DaysSince(t, now time.Time) int {
	return int(StartOfDay(now).Sub(StartOfDay(t)).Hours() / 24)
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(t1, t2 time.Time) bool {
	return t1.Year() == t2.Year() && t1.YearDay() == t2.YearDay()
}

// PlanID builds the deterministic weekly plan identifier for a child and a
// week. The week start is Monday-aligned before formatting, so callers may
// pass any time within the target week.
func PlanID(childID string, weekStart time.Time) string {
	return fmt.Sprintf("%s_%s", childID, StartOfWeek(weekStart).Format(ISODate))
}

// FormatDate formats a time as an ISO date (YYYY-MM-DD).
func FormatDate(t time.Time) string {
	return t.Format(ISODate)
}

// ParseDate parses an ISO date (YYYY-MM-DD) in UTC.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(ISODate, value, time.UTC)
}
