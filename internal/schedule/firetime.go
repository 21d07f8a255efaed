package schedule

import "time"

const day = 24 * time.Hour

// FireAt returns the instant a reminder for the occurrence on due should fire:
// the calendar date of due in loc at timeOfDay, moved back daysBefore whole
// days. Days are fixed 24h steps, so a DST change inside the lead time shifts
// the wall-clock result by the DST delta.
func FireAt(due time.Time, timeOfDay string, daysBefore int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	hour, minute := ParseTimeOfDay(timeOfDay)
	y, m, d := due.In(loc).Date()
	at := time.Date(y, m, d, hour, minute, 0, 0, loc)

	if daysBefore > 0 {
		at = at.Add(-time.Duration(daysBefore) * day)
	}
	return at
}
