package events

import "time"

// Event type constants for workflow lifecycle events.
const (
	TypeWorkflowStarted   = "workflow_started"
	TypeWorkflowCompleted = "workflow_completed"
	TypeWorkflowFailed    = "workflow_failed"
	TypeWorkflowRecovered = "workflow_recovered"
	TypePhaseEntered      = "phase_entered"
	TypePhaseCompleted    = "phase_completed"
)

// WorkflowStartedEvent is emitted when a workflow begins processing input.
type WorkflowStartedEvent struct {
	BaseEvent
	Input string `json:"input"`
}

// NewWorkflowStartedEvent creates a new workflow started event.
func NewWorkflowStartedEvent(requestID, sessionID, input string) WorkflowStartedEvent {
	return WorkflowStartedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowStarted, requestID, sessionID),
		Input:     input,
	}
}

// WorkflowCompletedEvent is emitted when a workflow reaches a terminal
// success state.
type WorkflowCompletedEvent struct {
	BaseEvent
	PresentationID string        `json:"presentation_id,omitempty"`
	SlideCount     int           `json:"slide_count"`
	Duration       time.Duration `json:"duration"`
}

// NewWorkflowCompletedEvent creates a new workflow completed event.
func NewWorkflowCompletedEvent(requestID, sessionID, presentationID string, slides int, duration time.Duration) WorkflowCompletedEvent {
	return WorkflowCompletedEvent{
		BaseEvent:      NewBaseEvent(TypeWorkflowCompleted, requestID, sessionID),
		PresentationID: presentationID,
		SlideCount:     slides,
		Duration:       duration,
	}
}

// WorkflowFailedEvent is emitted when a workflow enters the error state.
type WorkflowFailedEvent struct {
	BaseEvent
	Phase       string `json:"phase"`
	Reason      string `json:"reason"`
	Recoverable bool   `json:"recoverable"`
}

// NewWorkflowFailedEvent creates a new workflow failed event.
func NewWorkflowFailedEvent(requestID, sessionID, phase, reason string, recoverable bool) WorkflowFailedEvent {
	return WorkflowFailedEvent{
		BaseEvent:   NewBaseEvent(TypeWorkflowFailed, requestID, sessionID),
		Phase:       phase,
		Reason:      reason,
		Recoverable: recoverable,
	}
}

// WorkflowRecoveredEvent is emitted when error recovery resumes a workflow.
type WorkflowRecoveredEvent struct {
	BaseEvent
	ResumedPhase string `json:"resumed_phase"`
	Attempt      int    `json:"attempt"`
}

// NewWorkflowRecoveredEvent creates a new workflow recovered event.
func NewWorkflowRecoveredEvent(requestID, sessionID, resumedPhase string, attempt int) WorkflowRecoveredEvent {
	return WorkflowRecoveredEvent{
		BaseEvent:    NewBaseEvent(TypeWorkflowRecovered, requestID, sessionID),
		ResumedPhase: resumedPhase,
		Attempt:      attempt,
	}
}

// PhaseEnteredEvent is emitted on every phase transition.
type PhaseEnteredEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// NewPhaseEnteredEvent creates a new phase entered event.
func NewPhaseEnteredEvent(requestID, sessionID, from, to string) PhaseEnteredEvent {
	return PhaseEnteredEvent{
		BaseEvent: NewBaseEvent(TypePhaseEntered, requestID, sessionID),
		From:      from,
		To:        to,
	}
}

// PhaseCompletedEvent is emitted when a phase finishes its work.
type PhaseCompletedEvent struct {
	BaseEvent
	Phase    string        `json:"phase"`
	Duration time.Duration `json:"duration"`
}

// NewPhaseCompletedEvent creates a new phase completed event.
func NewPhaseCompletedEvent(requestID, sessionID, phase string, duration time.Duration) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		BaseEvent: NewBaseEvent(TypePhaseCompleted, requestID, sessionID),
		Phase:     phase,
		Duration:  duration,
	}
}
