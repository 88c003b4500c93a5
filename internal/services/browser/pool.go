package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Pool manages a fixed set of Chrome browser instances shared by CRM
// sessions. Allocation is round-robin; each CRM session runs in its own
// tab context created from a pooled browser.
type Pool struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	mu               sync.Mutex
	maxInstances     int
	currentIndex     int
	logger           arbor.ILogger
	initialized      bool
}

// PoolConfig holds configuration for the browser pool
type PoolConfig struct {
	MaxInstances int
	Headless     bool
	UserAgent    string
	StartTimeout time.Duration
}

// NewPool creates an uninitialized browser pool
func NewPool(logger arbor.ILogger) *Pool {
	return &Pool{
		logger: logger,
	}
}

// Init starts the Chrome instances and probes each one
func (p *Pool) Init(config PoolConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already initialized")
	}
	if config.MaxInstances <= 0 {
		config.MaxInstances = 1
	}
	if config.UserAgent == "" {
		config.UserAgent = "Audiens/1.0"
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = 30 * time.Second
	}

	p.maxInstances = config.MaxInstances
	p.browsers = make([]context.Context, 0, p.maxInstances)
	p.browserCancels = make([]context.CancelFunc, 0, p.maxInstances)
	p.allocatorCancels = make([]context.CancelFunc, 0, p.maxInstances)
	p.currentIndex = 0

	p.logger.Info().
		Int("pool_size", p.maxInstances).
		Bool("headless", config.Headless).
		Msg("Initializing browser pool")

	successCount := 0
	var lastErr error
	for i := 0; i < p.maxInstances; i++ {
		if err := p.createInstance(i, config); err != nil {
			lastErr = err
			p.logger.Warn().
				Err(err).
				Int("browser_index", i).
				Msg("Failed to create browser instance")
			if successCount == 0 && i == p.maxInstances-1 {
				p.cleanupInstances()
				return fmt.Errorf("failed to create any browser instances, last error: %w", err)
			}
			continue
		}
		successCount++
	}

	if successCount == 0 {
		p.cleanupInstances()
		return fmt.Errorf("failed to create any browser instances, last error: %w", lastErr)
	}
	if successCount < p.maxInstances {
		p.logger.Warn().
			Int("requested", p.maxInstances).
			Int("created", successCount).
			Msg("Created fewer browser instances than requested")
		p.maxInstances = successCount
	}

	p.initialized = true
	p.logger.Info().
		Int("browsers_created", len(p.browsers)).
		Msg("Browser pool initialized successfully")

	return nil
}

// createInstance starts one Chrome instance and verifies it responds
func (p *Pool) createInstance(index int, config PoolConfig) error {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(
		context.Background(),
		allocatorOpts...,
	)

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup probe
	testCtx, testCancel := context.WithTimeout(browserCtx, config.StartTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance failed startup probe: %w", err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)

	p.logger.Debug().
		Int("browser_index", index).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance created")

	return nil
}

// Get returns a pooled browser context using round-robin allocation
func (p *Pool) Get() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, fmt.Errorf("browser pool not initialized")
	}
	if len(p.browsers) == 0 {
		return nil, fmt.Errorf("no browser instances available")
	}

	index := p.currentIndex % len(p.browsers)
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)

	return p.browsers[index], nil
}

// Shutdown cleans up all browser instances
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	browserCount := len(p.browsers)
	p.logger.Info().
		Int("browser_count", browserCount).
		Msg("Shutting down browser pool")

	done := make(chan struct{})
	go func() {
		p.cleanupInstances()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		p.logger.Warn().Msg("Browser pool shutdown timed out")
	}

	p.initialized = false
	return nil
}

// cleanupInstances must be called with the mutex held
func (p *Pool) cleanupInstances() {
	for _, cancel := range p.browserCancels {
		if cancel != nil {
			cancel()
		}
	}
	for _, cancel := range p.allocatorCancels {
		if cancel != nil {
			cancel()
		}
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.currentIndex = 0
}

// Stats returns pool statistics for the status endpoint
func (p *Pool) Stats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]interface{}{
		"max_instances":    p.maxInstances,
		"active_instances": len(p.browsers),
		"initialized":      p.initialized,
	}
}

// IsInitialized reports whether Init has completed
func (p *Pool) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}
