package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHour   = 9
	DefaultMinute = 0

	// DateLayout is the dd-MM-yyyy form used in idempotency keys and copy.
	DateLayout = "02-01-2006"
)

// ParseTimeOfDay reads an "HH:MM" string. Out of range values are clamped;
// an unreadable hour yields 09:00 and an unreadable minute yields :00.
func ParseTimeOfDay(s string) (hour, minute int) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)

	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return DefaultHour, DefaultMinute
	}

	m := 0
	if len(parts) == 2 {
		if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			m = v
		}
	}

	return clamp(h, 0, 23), clamp(m, 0, 59)
}

// NormalizeClock returns s as a zero-padded "HH:MM" string, or fallback when s
// is empty or has no readable hour.
func NormalizeClock(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if _, err := strconv.Atoi(strings.TrimSpace(strings.SplitN(s, ":", 2)[0])); err != nil {
		return fallback
	}
	h, m := ParseTimeOfDay(s)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// LocalClock formats t as "HH:MM" in loc.
func LocalClock(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}

// FormatDate formats the calendar date of t in loc as dd-MM-yyyy.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
