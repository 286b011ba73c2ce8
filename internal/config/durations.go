package config

import "time"

// duration parses s, falling back to def when s is empty or invalid.
// Validation reports bad values; callers after a successful Validate
// only hit the fallback for zero-value configs built in tests.
func duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// AgentTimeoutDuration returns the parsed per-agent timeout.
func (c WorkflowConfig) AgentTimeoutDuration() time.Duration {
	return duration(c.AgentTimeout, 30*time.Second)
}

// PhaseTimeoutDuration returns the parsed per-phase timeout.
func (c WorkflowConfig) PhaseTimeoutDuration() time.Duration {
	return duration(c.PhaseTimeout, 2*time.Minute)
}

// RetryBaseDelayDuration returns the parsed initial retry delay.
func (c WorkflowConfig) RetryBaseDelayDuration() time.Duration {
	return duration(c.RetryBaseDelay, 500*time.Millisecond)
}

// RetryMaxDelayDuration returns the parsed retry delay cap.
func (c WorkflowConfig) RetryMaxDelayDuration() time.Duration {
	return duration(c.RetryMaxDelay, 10*time.Second)
}

// TTLDuration returns the parsed session lifetime.
func (c SessionConfig) TTLDuration() time.Duration {
	return duration(c.TTL, time.Hour)
}

// TimeoutDuration returns the parsed model call timeout.
func (c LLMConfig) TimeoutDuration() time.Duration {
	return duration(c.Timeout, 60*time.Second)
}

// ReadTimeoutDuration returns the parsed server read timeout.
func (c ServerConfig) ReadTimeoutDuration() time.Duration {
	return duration(c.ReadTimeout, 30*time.Second)
}

// WriteTimeoutDuration returns the parsed server write timeout.
func (c ServerConfig) WriteTimeoutDuration() time.Duration {
	return duration(c.WriteTimeout, 30*time.Second)
}

// ShutdownTimeoutDuration returns the parsed graceful shutdown window.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout, 10*time.Second)
}

// PingIntervalDuration returns the parsed WebSocket ping interval.
func (c ServerConfig) PingIntervalDuration() time.Duration {
	return duration(c.PingInterval, 30*time.Second)
}

// PongTimeoutDuration returns the parsed WebSocket pong deadline.
func (c ServerConfig) PongTimeoutDuration() time.Duration {
	return duration(c.PongTimeout, 60*time.Second)
}
