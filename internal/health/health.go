package health

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the gRPC health service name the monitor reports under, next to
// the empty overall name.
const Service = "onboard.display"

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Deps are the probes CheckAll runs. A nil probe is skipped.
type Deps struct {
	// Backend must reach the robot backend, usually a GET of /onboard.
	Backend func(ctx context.Context) error
	// Display reports whether a kiosk page is attached.
	Display func() bool
	Timeout time.Duration
}

var errNoDisplay = errors.New("no kiosk page connected")

// CheckAll runs all health checks and returns combined status
func CheckAll(ctx context.Context, deps Deps) HealthStatus {
	var checks []CheckResult
	if deps.Backend != nil {
		checks = append(checks, checkBackend(ctx, deps))
	}
	if deps.Display != nil {
		checks = append(checks, checkDisplay(deps.Display))
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkBackend(ctx context.Context, deps Deps) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "backend"}

	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := deps.Backend(cctx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	result.OK = true
	return result
}

func checkDisplay(connected func() bool) CheckResult {
	result := CheckResult{Name: "display", OK: connected()}
	if !result.OK {
		result.Error = errNoDisplay.Error()
	}
	return result
}

// Monitor keeps the latest HealthStatus and mirrors it into a gRPC health
// server so orchestrators can probe the process over gRPC.
type Monitor struct {
	deps Deps
	srv  *grpchealth.Server

	mu   sync.RWMutex
	last HealthStatus
}

func NewMonitor(deps Deps, srv *grpchealth.Server) *Monitor {
	return &Monitor{deps: deps, srv: srv}
}

// Check runs CheckAll once and publishes the result.
func (m *Monitor) Check(ctx context.Context) HealthStatus {
	st := CheckAll(ctx, m.deps)

	m.mu.Lock()
	changed := m.last.CheckedAt.IsZero() || m.last.OK != st.OK
	m.last = st
	m.mu.Unlock()

	if st.OK {
		gaugeHealthy.Set(1)
	} else {
		gaugeHealthy.Set(0)
	}
	for _, c := range st.Checks {
		if !c.OK {
			metricCheckFailures.WithLabelValues(c.Name).Inc()
		}
	}
	if m.srv != nil {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if st.OK {
			status = healthpb.HealthCheckResponse_SERVING
		}
		m.srv.SetServingStatus("", status)
		m.srv.SetServingStatus(Service, status)
	}
	if changed {
		log.Printf("[health] %s", st)
	}
	return st
}

// Latest returns the most recent status; zero until the first Check.
func (m *Monitor) Latest() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Watch checks immediately and then every interval until ctx is done. On
// return the gRPC service is switched to NOT_SERVING.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	m.Check(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if m.srv != nil {
				m.srv.Shutdown()
			}
			return
		case <-t.C:
			m.Check(ctx)
		}
	}
}
