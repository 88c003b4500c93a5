// -----------------------------------------------------------------------
// Scheduler Service - background jobs on 6-field cron schedules: inbox
// refresh, stale session sweep, and the daily digest report
// -----------------------------------------------------------------------

package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
)

// jobEntry is one registered background job
type jobEntry struct {
	name      string
	schedule  string
	handler   func() error
	cronID    cron.EntryID
	lastRun   *time.Time
	lastError string
	isRunning bool
}

// Service runs registered jobs on their cron schedules
type Service struct {
	config *common.SchedulerConfig
	cron   *cron.Cron
	logger arbor.ILogger

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	running bool
}

// NewService creates the scheduler. Schedules use 6-field cron
// expressions with a seconds column.
func NewService(cfg *common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: cfg,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

// RegisterJob adds a job on the given schedule. Must be called before
// Start.
func (s *Service) RegisterJob(name, schedule string, handler func() error) error {
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule for job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:     name,
		schedule: schedule,
		handler:  handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() { s.runJob(entry) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// Start begins running schedules
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for in-flight jobs to finish
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether schedules are active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunJobNow triggers a job outside its schedule
func (s *Service) RunJobNow(name string) error {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job %s not found", name)
	}

	go s.runJob(entry)
	return nil
}

// Status returns the state of every registered job
func (s *Service) Status() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]map[string]interface{}, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := map[string]interface{}{
			"name":       entry.name,
			"schedule":   entry.schedule,
			"is_running": entry.isRunning,
		}
		if entry.lastRun != nil {
			status["last_run"] = entry.lastRun.Format(time.RFC3339)
		}
		if entry.lastError != "" {
			status["last_error"] = entry.lastError
		}
		if s.running {
			status["next_run"] = s.cron.Entry(entry.cronID).Next.Format(time.RFC3339)
		}
		jobs = append(jobs, status)
	}
	return jobs
}

// runJob executes one job, skipping it when a previous run is still in
// flight
func (s *Service) runJob(entry *jobEntry) {
	s.mu.Lock()
	if entry.isRunning {
		s.mu.Unlock()
		s.logger.Warn().Str("job", entry.name).Msg("Job still running, skipping this tick")
		return
	}
	entry.isRunning = true
	s.mu.Unlock()

	start := time.Now()
	err := entry.handler()

	s.mu.Lock()
	entry.isRunning = false
	now := time.Now()
	entry.lastRun = &now
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job", entry.name).
			Msg("Job failed")
		return
	}

	s.logger.Debug().
		Str("job", entry.name).
		Str("duration", time.Since(start).String()).
		Msg("Job completed")
}
