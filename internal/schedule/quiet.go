package schedule

const (
	DefaultQuietStart = "22:00"
	DefaultQuietEnd   = "08:00"
)

// QuietHours is a local time window, both ends inclusive, that may wrap
// around midnight.
type QuietHours struct {
	Start string `firestore:"start" json:"start"`
	End   string `firestore:"end" json:"end"`
}

// IsQuiet reports whether nowLocal ("HH:MM") falls inside w. Zero-padded
// 24h strings compare lexicographically in time order, so no parsing is needed
// beyond normalization. Empty bounds take the 22:00-08:00 defaults.
func IsQuiet(w QuietHours, nowLocal string) bool {
	start := NormalizeClock(w.Start, DefaultQuietStart)
	end := NormalizeClock(w.End, DefaultQuietEnd)
	now := NormalizeClock(nowLocal, "")
	if now == "" {
		return false
	}

	if start <= end {
		return now >= start && now <= end
	}
	// crosses midnight
	return now >= start || now <= end
}
