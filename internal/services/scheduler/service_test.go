package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/audiens/internal/common"
)

var errTest = errors.New("digest failed")

func newTestScheduler() *Service {
	cfg := &common.SchedulerConfig{Enabled: true}
	return NewService(cfg, common.GetLogger())
}

func TestRegisterJobValidatesSchedule(t *testing.T) {
	s := newTestScheduler()

	if err := s.RegisterJob("bad", "not a cron", func() error { return nil }); err == nil {
		t.Error("Expected invalid schedule rejected")
	}
	if err := s.RegisterJob("five-field", "*/5 * * * *", func() error { return nil }); err == nil {
		t.Error("Expected 5-field schedule rejected")
	}
	if err := s.RegisterJob("good", "0 */10 * * * *", func() error { return nil }); err != nil {
		t.Errorf("Expected valid 6-field schedule accepted, got %v", err)
	}
}

func TestRegisterJobRejectsDuplicates(t *testing.T) {
	s := newTestScheduler()

	if err := s.RegisterJob("sync", "0 */10 * * * *", func() error { return nil }); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	if err := s.RegisterJob("sync", "0 */10 * * * *", func() error { return nil }); err == nil {
		t.Error("Expected duplicate registration rejected")
	}
}

func TestRunJobNow(t *testing.T) {
	s := newTestScheduler()

	var runs atomic.Int32
	done := make(chan struct{})
	err := s.RegisterJob("sweep", "0 0 3 * * *", func() error {
		runs.Add(1)
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterJob failed: %v", err)
	}

	if err := s.RunJobNow("sweep"); err != nil {
		t.Fatalf("RunJobNow failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Job never ran")
	}
	if runs.Load() != 1 {
		t.Errorf("Expected one run, got %d", runs.Load())
	}
}

func TestRunJobNowUnknownJob(t *testing.T) {
	s := newTestScheduler()
	if err := s.RunJobNow("missing"); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestStartDisabled(t *testing.T) {
	cfg := &common.SchedulerConfig{Enabled: false}
	s := NewService(cfg, common.GetLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("Expected scheduler not running when disabled")
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("Expected scheduler running after start")
	}
	if err := s.Start(); err == nil {
		t.Error("Expected second start rejected")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("Expected scheduler stopped")
	}
}

func TestStatusIncludesLastError(t *testing.T) {
	s := newTestScheduler()

	done := make(chan struct{})
	s.RegisterJob("digest", "0 0 7 * * *", func() error {
		defer close(done)
		return errTest
	})
	s.RunJobNow("digest")
	<-done

	// runJob updates state under the mutex after the handler returns
	time.Sleep(50 * time.Millisecond)

	status := s.Status()
	if len(status) != 1 {
		t.Fatalf("Expected one job, got %d", len(status))
	}
	if status[0]["last_error"] != errTest.Error() {
		t.Errorf("Expected last error recorded, got %v", status[0]["last_error"])
	}
	if _, ok := status[0]["last_run"]; !ok {
		t.Error("Expected last run recorded")
	}
}
