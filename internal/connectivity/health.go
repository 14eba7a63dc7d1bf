package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultHealthInterval = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
)

// Prober checks the service once. Any error means unhealthy.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HealthReport is the outcome of the latest probe.
type HealthReport struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
}

// HealthMonitor probes the service immediately and then on a fixed interval.
// It starts out healthy until the first probe says otherwise.
type HealthMonitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	report HealthReport
	subs   []func(HealthReport)
}

// NewHealthMonitor creates a monitor. Zero durations select the defaults.
func NewHealthMonitor(prober Prober, interval, timeout time.Duration, logger *slog.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		prober:   prober,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		report:   HealthReport{Healthy: true},
	}
}

// Report returns the latest probe outcome.
func (m *HealthMonitor) Report() HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.report
}

// OnReport registers fn to receive every probe outcome. Call before Run.
func (m *HealthMonitor) OnReport(fn func(HealthReport)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Run probes until ctx ends.
func (m *HealthMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Health monitor started", "interval", m.interval, "timeout", m.timeout)
	for {
		m.Check(ctx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			m.logger.Info("Health monitor shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Check runs one probe bounded by the monitor's timeout and records it.
func (m *HealthMonitor) Check(ctx context.Context) HealthReport {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Probe(probeCtx)
	cancel()

	if ctx.Err() != nil {
		return m.Report()
	}

	report := HealthReport{Healthy: err == nil, LastCheck: time.Now()}
	if err != nil {
		report.Error = err.Error()
	}

	m.mu.Lock()
	wasHealthy := m.report.Healthy
	m.report = report
	subs := append([]func(HealthReport){}, m.subs...)
	m.mu.Unlock()

	if wasHealthy != report.Healthy {
		if report.Healthy {
			m.logger.Info("Service healthy again")
		} else {
			m.logger.Warn("Service unhealthy", "error", err)
		}
	}
	for _, fn := range subs {
		fn(report)
	}
	return report
}
