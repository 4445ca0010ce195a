package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_reconcile_ticks_total",
		Help: "Reconcile ticks by outcome",
	}, []string{"result"}) // applied, unchanged, skipped, stale, fetch_error

	metricFieldChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_reconcile_field_changes_total",
		Help: "Desired state fields that differed from local state",
	}, []string{"field"})

	metricTickMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "onboard_reconcile_tick_ms",
		Help:    "Duration of one fetch, diff and apply cycle (ms)",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	metricVideoEnds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_reconcile_video_ends_total",
		Help: "Videos that played to the end",
	})

	metricStatePushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_reconcile_state_push_errors_total",
		Help: "Failed state pushes after a video ended",
	})
)
