package stt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_stt_audio_bytes_total",
		Help: "Total audio bytes sent to the provider",
	})

	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_stt_frames_total",
		Help: "Total audio frames sent to the provider",
	})

	metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "onboard_stt_connect_ms",
		Help:    "Time to establish provider connection (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	})

	gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onboard_stt_sessions_active",
		Help: "Active provider sockets",
	})

	metricFinalEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_stt_final_emitted_total",
		Help: "Final transcripts emitted by source (provider, interim_fallback)",
	}, []string{"source"})

	metricEmptyFinalSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_stt_empty_final_skipped_total",
		Help: "Empty final transcripts skipped",
	})

	metricUtteranceEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_stt_utterance_events_total",
		Help: "Utterance boundary events observed",
	}, []string{"type"}) // speech_started, utterance_end
)
