package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/ternarybob/audiens/internal/common"
)

func TestRecordCountsOutcomes(t *testing.T) {
	m := NewMonitor(common.GetLogger())

	m.Record("browser", true, 10*time.Millisecond, nil)
	m.Record("browser", true, 20*time.Millisecond, nil)
	m.Record("browser", false, 30*time.Millisecond, fmt.Errorf("timeout"))

	snapshot, ok := m.ServiceSnapshot("browser")
	if !ok {
		t.Fatal("Expected browser metrics registered")
	}

	requests := snapshot["requests"].(map[string]interface{})
	if requests["total"].(int64) != 3 {
		t.Errorf("Expected 3 requests, got %v", requests["total"])
	}
	if requests["success"].(int64) != 2 {
		t.Errorf("Expected 2 successes, got %v", requests["success"])
	}
	if requests["error"].(int64) != 1 {
		t.Errorf("Expected 1 error, got %v", requests["error"])
	}

	lastError, ok := snapshot["last_error"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected last error recorded")
	}
	if lastError["message"] != "timeout" {
		t.Errorf("Expected timeout error, got %v", lastError["message"])
	}
}

func TestRecordAutoRegisters(t *testing.T) {
	m := NewMonitor(common.GetLogger())

	m.Record("scheduler", true, time.Millisecond, nil)
	if _, ok := m.ServiceSnapshot("scheduler"); !ok {
		t.Error("Expected unregistered service auto-registered on record")
	}
}

func TestLatencyWindowCapped(t *testing.T) {
	m := NewMonitor(common.GetLogger())
	metrics := m.Register("email")

	for i := 0; i < latencyWindow+50; i++ {
		m.Record("email", true, time.Millisecond, nil)
	}

	if len(metrics.latencies) != latencyWindow {
		t.Errorf("Expected latency window capped at %d, got %d", latencyWindow, len(metrics.latencies))
	}
}

func TestAvgLatency(t *testing.T) {
	metrics := &ServiceMetrics{Name: "test", StartTime: time.Now()}
	metrics.record(true, 10*time.Millisecond, "")
	metrics.record(true, 30*time.Millisecond, "")

	if avg := metrics.AvgLatency(); avg != 20*time.Millisecond {
		t.Errorf("Expected average 20ms, got %s", avg)
	}
}

func TestSuccessRateWithoutRequests(t *testing.T) {
	metrics := &ServiceMetrics{Name: "test", StartTime: time.Now()}
	if rate := metrics.SuccessRate(); rate != -1 {
		t.Errorf("Expected -1 for no requests, got %f", rate)
	}

	snapshot := metrics.Snapshot()
	requests := snapshot["requests"].(map[string]interface{})
	if requests["success_rate"] != "N/A" {
		t.Errorf("Expected N/A success rate, got %v", requests["success_rate"])
	}
}

func TestTrack(t *testing.T) {
	m := NewMonitor(common.GetLogger())

	err := m.Track("workflow", func() error { return fmt.Errorf("boom") })
	if err == nil {
		t.Fatal("Expected error passed through")
	}

	snapshot, _ := m.ServiceSnapshot("workflow")
	requests := snapshot["requests"].(map[string]interface{})
	if requests["error"].(int64) != 1 {
		t.Errorf("Expected tracked failure recorded, got %v", requests["error"])
	}
}

func TestFormatUptime(t *testing.T) {
	d := 26*time.Hour + 3*time.Minute + 5*time.Second
	if got := formatUptime(d); got != "1d 2h 3m 5s" {
		t.Errorf("Expected '1d 2h 3m 5s', got %q", got)
	}
}
