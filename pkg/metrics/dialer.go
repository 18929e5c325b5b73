package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dialer metrics. Label values are kept to small closed sets.
var (
	CallPlacementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autodialer_call_placements_total",
		Help: "Call placement attempts by result (accepted, rejected, invalid)",
	}, []string{"result"})

	StatusEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autodialer_status_events_total",
		Help: "Provider status events by reconciliation result",
	}, []string{"result"})

	CallsStoppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autodialer_calls_stopped_total",
		Help: "In-progress calls force-failed by a stop action",
	})

	BatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autodialer_batch_duration_seconds",
		Help:    "Wall time of a batch dispatch, including pacing",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	PacingWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autodialer_pacing_wait_seconds",
		Help:    "Time spent waiting on the dial limiter before a placement",
		Buckets: []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)
