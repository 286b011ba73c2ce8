package events

import "time"

// Event type constants for content agent fan-out events.
const (
	TypeAgentStarted   = "agent_started"
	TypeAgentCompleted = "agent_completed"
	TypeAgentFailed    = "agent_failed"
)

// AgentStartedEvent is emitted when a content agent begins work.
type AgentStartedEvent struct {
	BaseEvent
	Agent string `json:"agent"`
}

// NewAgentStartedEvent creates a new agent started event.
func NewAgentStartedEvent(requestID, sessionID, agent string) AgentStartedEvent {
	return AgentStartedEvent{
		BaseEvent: NewBaseEvent(TypeAgentStarted, requestID, sessionID),
		Agent:     agent,
	}
}

// AgentCompletedEvent is emitted when a content agent finishes.
type AgentCompletedEvent struct {
	BaseEvent
	Agent    string        `json:"agent"`
	Duration time.Duration `json:"duration"`
}

// NewAgentCompletedEvent creates a new agent completed event.
func NewAgentCompletedEvent(requestID, sessionID, agent string, duration time.Duration) AgentCompletedEvent {
	return AgentCompletedEvent{
		BaseEvent: NewBaseEvent(TypeAgentCompleted, requestID, sessionID),
		Agent:     agent,
		Duration:  duration,
	}
}

// AgentFailedEvent is emitted when a content agent errors or times out.
// A failed agent still releases the assembly barrier.
type AgentFailedEvent struct {
	BaseEvent
	Agent    string `json:"agent"`
	Reason   string `json:"reason"`
	TimedOut bool   `json:"timed_out"`
}

// NewAgentFailedEvent creates a new agent failed event.
func NewAgentFailedEvent(requestID, sessionID, agent, reason string, timedOut bool) AgentFailedEvent {
	return AgentFailedEvent{
		BaseEvent: NewBaseEvent(TypeAgentFailed, requestID, sessionID),
		Agent:     agent,
		Reason:    reason,
		TimedOut:  timedOut,
	}
}
