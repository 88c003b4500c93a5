// -----------------------------------------------------------------------
// Monitor Service - per-service request counters and latency tracking
// exposed on the metrics endpoint
// -----------------------------------------------------------------------

package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

const latencyWindow = 100

// ServiceMetrics accumulates request outcomes for one service
type ServiceMetrics struct {
	Name          string
	StartTime     time.Time
	RequestsTotal int64
	Success       int64
	Errors        int64
	LastError     string
	LastErrorTime time.Time

	// rolling window of the most recent request latencies
	latencies []time.Duration
}

// record adds one request outcome
func (m *ServiceMetrics) record(success bool, latency time.Duration, errMsg string) {
	m.RequestsTotal++
	if success {
		m.Success++
	} else {
		m.Errors++
		m.LastError = errMsg
		m.LastErrorTime = time.Now()
	}

	m.latencies = append(m.latencies, latency)
	if len(m.latencies) > latencyWindow {
		m.latencies = m.latencies[len(m.latencies)-latencyWindow:]
	}
}

// AvgLatency returns the mean latency over the rolling window
func (m *ServiceMetrics) AvgLatency() time.Duration {
	if len(m.latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range m.latencies {
		total += l
	}
	return total / time.Duration(len(m.latencies))
}

// SuccessRate returns the success percentage, or -1 with no requests
func (m *ServiceMetrics) SuccessRate() float64 {
	if m.RequestsTotal == 0 {
		return -1
	}
	return float64(m.Success) / float64(m.RequestsTotal) * 100
}

// Snapshot returns the metric shape exposed over the API
func (m *ServiceMetrics) Snapshot() map[string]interface{} {
	successRate := "N/A"
	if rate := m.SuccessRate(); rate >= 0 {
		successRate = fmt.Sprintf("%.2f%%", rate)
	}
	avgLatency := "N/A"
	if avg := m.AvgLatency(); avg > 0 {
		avgLatency = fmt.Sprintf("%.2fms", float64(avg.Microseconds())/1000)
	}

	snapshot := map[string]interface{}{
		"service_name": m.Name,
		"start_time":   m.StartTime.Format(time.RFC3339),
		"uptime":       formatUptime(time.Since(m.StartTime)),
		"requests": map[string]interface{}{
			"total":        m.RequestsTotal,
			"success":      m.Success,
			"error":        m.Errors,
			"success_rate": successRate,
		},
		"response_time": map[string]interface{}{
			"average": avgLatency,
			"samples": len(m.latencies),
		},
	}
	if m.LastError != "" {
		snapshot["last_error"] = map[string]interface{}{
			"message": m.LastError,
			"time":    m.LastErrorTime.Format(time.RFC3339),
		}
	}
	return snapshot
}

// Monitor tracks metrics across all registered services
type Monitor struct {
	logger    arbor.ILogger
	startTime time.Time

	mu       sync.RWMutex
	services map[string]*ServiceMetrics
}

// NewMonitor creates a monitor with the core services pre-registered
func NewMonitor(logger arbor.ILogger) *Monitor {
	m := &Monitor{
		logger:    logger,
		startTime: time.Now(),
		services:  make(map[string]*ServiceMetrics),
	}
	for _, name := range []string{"voice", "browser", "email", "workflow", "llm"} {
		m.Register(name)
	}
	return m
}

// Register adds a service to the monitor. Registering an existing
// service returns the existing metrics.
func (m *Monitor) Register(name string) *ServiceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.services[name]; ok {
		return existing
	}
	metrics := &ServiceMetrics{Name: name, StartTime: time.Now()}
	m.services[name] = metrics
	return metrics
}

// Record notes one request outcome for a service, registering the
// service if needed
func (m *Monitor) Record(name string, success bool, latency time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.services[name]
	if !ok {
		metrics = &ServiceMetrics{Name: name, StartTime: time.Now()}
		m.services[name] = metrics
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	metrics.record(success, latency, errMsg)
}

// Track wraps a service call, timing it and recording the outcome
func (m *Monitor) Track(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.Record(name, err == nil, time.Since(start), err)
	return err
}

// ServiceSnapshot returns metrics for one service
func (m *Monitor) ServiceSnapshot(name string) (map[string]interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics, ok := m.services[name]
	if !ok {
		return nil, false
	}
	return metrics.Snapshot(), true
}

// AllSnapshots returns metrics for every registered service
func (m *Monitor) AllSnapshots() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]interface{}, len(m.services))
	for name, metrics := range m.services {
		all[name] = metrics.Snapshot()
	}
	return all
}

// SystemSnapshot returns process-wide counters
func (m *Monitor) SystemSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, metrics := range m.services {
		total += metrics.RequestsTotal
	}
	return map[string]interface{}{
		"start_time":     m.startTime.Format(time.RFC3339),
		"uptime_seconds": time.Since(m.startTime).Seconds(),
		"services_count": len(m.services),
		"total_requests": total,
	}
}

// LogStatus writes one status line per service, called periodically by
// the scheduler
func (m *Monitor) LogStatus() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, metrics := range m.services {
		if metrics.RequestsTotal == 0 {
			continue
		}
		m.logger.Info().
			Str("service", name).
			Int64("requests", metrics.RequestsTotal).
			Int64("errors", metrics.Errors).
			Str("avg_latency", metrics.AvgLatency().String()).
			Msg("Service status")
	}
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
