package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reminder_dispatch"

var (
	// Scans counts scanner passes by trigger kind and status (ok|error).
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "Total number of reminder window scans",
	}, []string{"trigger", "status"})

	// ScanDuration observes wall time of a whole scan.
	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Duration of reminder window scans",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 180},
	}, []string{"trigger"})

	// Candidates counts coarse-query results by what the scanner did with them.
	Candidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Reminder documents returned by the coarse query, by result",
	}, []string{"result"})

	// Outcomes counts per-recipient fanout results.
	Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_outcomes_total",
		Help:      "Per-recipient delivery outcomes",
	}, []string{"outcome"})

	// PushLatency observes push gateway round trips.
	PushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "push_send_duration_seconds",
		Help:      "Time spent sending a push message",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
)
