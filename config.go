package escrow

import "time"

// Config holds the timing configuration shared by the dispatch subsystem.
// Per-queue settings (concurrency, attempts, backoff) live in queue.Config.
type Config struct {
	// PollInterval is how often an idle worker polls its queue.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight jobs on Stop.
	ShutdownTimeout time.Duration

	// HeartbeatInterval is how often active jobs refresh their heartbeat.
	HeartbeatInterval time.Duration

	// StalledInterval is how long an active job may go without a heartbeat
	// before the watchdog requeues it. Queues may override it.
	StalledInterval time.Duration

	// HealthCheckInterval is how often the dispatcher probes the broker.
	HealthCheckInterval time.Duration

	// ProbeTimeout bounds a single broker health probe.
	ProbeTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:        500 * time.Millisecond,
		ShutdownTimeout:     30 * time.Second,
		HeartbeatInterval:   10 * time.Second,
		StalledInterval:     30 * time.Second,
		HealthCheckInterval: 15 * time.Second,
		ProbeTimeout:        3 * time.Second,
	}
}
