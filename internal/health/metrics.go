package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onboard_health_ok",
		Help: "1 when every health check passed on the last run",
	})
	metricCheckFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_health_check_failures_total",
		Help: "Failed health checks by check name",
	}, []string{"check"})
)
