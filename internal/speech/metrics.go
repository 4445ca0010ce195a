package speech

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_speech_sessions_total",
		Help: "Recognition sessions by how they finished",
	}, []string{"end"}) // ended, error

	metricResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_speech_results_total",
		Help: "Final transcripts reported to the backend",
	})

	metricSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_speech_results_skipped_total",
		Help: "Recognition results not reported",
	}, []string{"reason"})

	metricPostErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_speech_post_errors_total",
		Help: "Transcripts the backend did not accept",
	})
)
