package surface

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_display_link_connections_total",
		Help: "Kiosk page connection events",
	}, []string{"event"}) // connected, replaced, disconnected, rejected

	gaugeConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onboard_display_link_connected",
		Help: "1 while a kiosk page is attached",
	})

	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_display_link_messages_total",
		Help: "Messages received from the kiosk page by type",
	}, []string{"type"})

	metricDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_display_link_dropped_total",
		Help: "Inbound speech events or audio frames dropped because nobody was reading",
	}, []string{"kind"})
)
