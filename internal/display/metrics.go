package display

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_display_frames_total",
		Help: "Frames presented to the surface by kind",
	}, []string{"kind"})

	metricSurfaceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_display_surface_errors_total",
		Help: "Frames the surface failed to present",
	})

	metricIdleReapply = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_display_idle_reapply_total",
		Help: "Idle requests absorbed because the idle face was already up",
	})

	metricVideoEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_display_video_events_total",
		Help: "Media events received from the surface",
	}, []string{"event"}) // loadeddata, ended, *_ignored
)
