package trigger

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// AutomaticSpan is the width of the window scanned on every scheduler tick.
	AutomaticSpan = 5 * time.Minute

	DefaultMinOffset = 0
	DefaultMaxOffset = 10

	// MaxOffsetMinutes caps both offsets at one week ahead.
	MaxOffsetMinutes = 7 * 24 * 60
)

type Kind string

const (
	KindAutomatic Kind = "automatic"
	KindOnDemand  Kind = "on_demand"
	KindBackfill  Kind = "backfill"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func AutomaticWindow(now time.Time) Window {
	return Window{Start: now, End: now.Add(AutomaticSpan)}
}

// Offsets are minute offsets from now for an on-demand scan.
type Offsets struct {
	Min int `json:"minMins"`
	Max int `json:"maxMins"`
}

// Normalize clamps both offsets to [0, MaxOffsetMinutes] and floors Max at
// Min+1, so the window is never empty and never starts in the past.
func (o Offsets) Normalize() Offsets {
	o.Min = clampMinutes(o.Min, 0, MaxOffsetMinutes-1)
	o.Max = clampMinutes(o.Max, 0, MaxOffsetMinutes)
	if o.Max < o.Min+1 {
		o.Max = o.Min + 1
	}
	return o
}

// ParseOffsets reads raw query values. Missing or unreadable values take the
// defaults.
func ParseOffsets(minRaw, maxRaw string) Offsets {
	return Offsets{
		Min: parseMinutes(minRaw, DefaultMinOffset),
		Max: parseMinutes(maxRaw, DefaultMaxOffset),
	}.Normalize()
}

func (o Offsets) Window(now time.Time) Window {
	o = o.Normalize()
	return Window{
		Start: now.Add(time.Duration(o.Min) * time.Minute),
		End:   now.Add(time.Duration(o.Max) * time.Minute),
	}
}

func parseMinutes(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err == nil {
		return n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	// int conversion of an out-of-range float is undefined
	switch {
	case f > MaxOffsetMinutes:
		return MaxOffsetMinutes
	case f < 0:
		return 0
	}
	return int(f)
}

func clampMinutes(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
