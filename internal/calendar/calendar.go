// Package calendar maps calendar dates onto the remote service's
// business-day identifier sequence. The remote host assigns one
// sequential identifier per Monday-to-Friday trading day, with no gaps
// and no holiday calendar.
package calendar

import "time"

// Anchor is the fixed (date, identifier) pair the identifier sequence
// is counted from. Date must be a business day. Set once from
// configuration and never mutated.
type Anchor struct {
	Date       time.Time
	Identifier int
}

// Date builds a date-valued time.Time at midnight UTC. All date
// arithmetic in this package operates on such values.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Midnight truncates t to its calendar date at midnight UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether t falls on Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// PreviousBusinessDay returns the latest business day strictly before t.
// At most two non-business days precede any date, so the backward walk
// is bounded.
func PreviousBusinessDay(t time.Time) time.Time {
	current := Midnight(t).AddDate(0, 0, -1)
	for !IsBusinessDay(current) {
		current = current.AddDate(0, 0, -1)
	}
	return current
}

// ResolveIdentifier returns the remote identifier for target. It walks
// one calendar day at a time from the anchor toward target, counting
// business days (exclusive of the anchor, inclusive of the target).
//
// The walk is intentionally day-by-day rather than a closed-form
// weekday calculation: the remote service increments identifiers by
// exactly one per business day, and this counting, including its
// treatment of the anchor day itself, must track that assignment
// without drift.
//
// A non-business-day target is never rejected; it resolves to the same
// identifier as the nearest business day on the anchor side of it.
func (a Anchor) ResolveIdentifier(target time.Time) int {
	target = Midnight(target)
	base := Midnight(a.Date)
	if target.Equal(base) {
		return a.Identifier
	}

	delta := 0
	if target.After(base) {
		for current := base.AddDate(0, 0, 1); !current.After(target); current = current.AddDate(0, 0, 1) {
			if IsBusinessDay(current) {
				delta++
			}
		}
		return a.Identifier + delta
	}

	for current := base.AddDate(0, 0, -1); !current.Before(target); current = current.AddDate(0, 0, -1) {
		if IsBusinessDay(current) {
			delta--
		}
	}
	return a.Identifier + delta
}
