package events

// Event type constants for session and clarification events.
const (
	TypeSessionCreated       = "session_created"
	TypeSessionClosed        = "session_closed"
	TypeClarificationAsked   = "clarification_asked"
	TypeClarificationAnswers = "clarification_answers"
)

// SessionCreatedEvent is emitted when a connection establishes a session.
type SessionCreatedEvent struct {
	BaseEvent
	UserID string `json:"user_id,omitempty"`
}

// NewSessionCreatedEvent creates a new session created event.
func NewSessionCreatedEvent(sessionID, userID string) SessionCreatedEvent {
	return SessionCreatedEvent{
		BaseEvent: NewBaseEvent(TypeSessionCreated, "", sessionID),
		UserID:    userID,
	}
}

// SessionClosedEvent is emitted when a session ends or expires.
type SessionClosedEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// NewSessionClosedEvent creates a new session closed event.
func NewSessionClosedEvent(sessionID, reason string) SessionClosedEvent {
	return SessionClosedEvent{
		BaseEvent: NewBaseEvent(TypeSessionClosed, "", sessionID),
		Reason:    reason,
	}
}

// ClarificationAskedEvent is emitted when a clarification round is
// presented to the user.
type ClarificationAskedEvent struct {
	BaseEvent
	Round     int `json:"round"`
	Questions int `json:"questions"`
}

// NewClarificationAskedEvent creates a new clarification asked event.
func NewClarificationAskedEvent(requestID, sessionID string, round, questions int) ClarificationAskedEvent {
	return ClarificationAskedEvent{
		BaseEvent: NewBaseEvent(TypeClarificationAsked, requestID, sessionID),
		Round:     round,
		Questions: questions,
	}
}

// ClarificationAnswersEvent is emitted when user answers are accepted.
type ClarificationAnswersEvent struct {
	BaseEvent
	Round   int `json:"round"`
	Answers int `json:"answers"`
}

// NewClarificationAnswersEvent creates a new clarification answers event.
func NewClarificationAnswersEvent(requestID, sessionID string, round, answers int) ClarificationAnswersEvent {
	return ClarificationAnswersEvent{
		BaseEvent: NewBaseEvent(TypeClarificationAnswers, requestID, sessionID),
		Round:     round,
		Answers:   answers,
	}
}
