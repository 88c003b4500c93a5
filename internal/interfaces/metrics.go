package interfaces

import "time"

// Tracker records request outcomes for the metrics endpoint. Satisfied
// by the monitor service; nil disables tracking.
type Tracker interface {
	// Track wraps a service call, timing it and recording the outcome
	Track(service string, fn func() error) error

	// Record notes one request outcome directly
	Record(service string, success bool, latency time.Duration, err error)
}
