package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sheet rendering
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attendance_render_duration_seconds",
			Help:    "Duration of attendance sheet PDF renders in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60}, // browser launch dominates
		},
		[]string{"renderer"},
	)

	RenderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_render_errors_total",
			Help: "Total number of failed attendance sheet renders by pipeline stage",
		},
		[]string{"stage"}, // launch, print, timeout
	)

	BrowsersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendance_browsers_active",
			Help: "Browser processes currently launched by the renderer",
		},
	)

	// Roster
	RosterMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_mutations_total",
			Help: "Total number of roster add, update and remove operations",
		},
		[]string{"operation", "result"},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)
