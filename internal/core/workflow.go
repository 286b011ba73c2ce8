package core

import (
	"fmt"
	"time"
)

// WorkflowState is the unit of resumable progress for one generation
// request. The session orchestrator owns exactly one instance per
// connection; state machine steps mutate it only through the methods here
// so the transition table in phase.go is never bypassed.
type WorkflowState struct {
	RequestID     string `json:"request_id" yaml:"request_id"`
	SessionID     string `json:"session_id" yaml:"session_id"`
	UserID        string `json:"user_id" yaml:"user_id"`
	CorrelationID string `json:"correlation_id" yaml:"correlation_id"`

	CurrentPhase Phase `json:"current_phase" yaml:"current_phase"`

	Input UserRequest `json:"input" yaml:"input"`

	// Append-only; grows monotonically within a request's lifetime.
	ClarificationRounds    []ClarificationRound    `json:"clarification_rounds" yaml:"clarification_rounds"`
	ClarificationResponses []ClarificationResponse `json:"clarification_responses" yaml:"clarification_responses"`

	// Latest analysis result; overwritten, not accumulated.
	Analysis *RequirementAnalysis `json:"analysis,omitempty" yaml:"analysis,omitempty"`

	// Accumulated requirement fields merged from clarification answers.
	Requirements map[string]string `json:"requirements" yaml:"requirements"`

	// Immutable once generation begins.
	Structure *Structure `json:"structure,omitempty" yaml:"structure,omitempty"`

	ActiveAgents    []AgentName            `json:"active_agents" yaml:"active_agents"`
	CompletedAgents []AgentName            `json:"completed_agents" yaml:"completed_agents"`
	AgentOutputs    map[AgentName]*AgentOutput `json:"agent_outputs,omitempty" yaml:"agent_outputs,omitempty"`
	AgentErrors     map[AgentName]string   `json:"agent_errors,omitempty" yaml:"agent_errors,omitempty"`

	FinalPresentation *Presentation `json:"final_presentation,omitempty" yaml:"final_presentation,omitempty"`

	GreetingReply string `json:"greeting_reply,omitempty" yaml:"greeting_reply,omitempty"`

	ErrorCount int        `json:"error_count" yaml:"error_count"`
	LastError  *LastError `json:"last_error,omitempty" yaml:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// LastError records the most recent caught failure for recovery bookkeeping.
type LastError struct {
	Category ErrorCategory `json:"category" yaml:"category"`
	Code     string        `json:"code" yaml:"code"`
	Message  string        `json:"message" yaml:"message"`
	At       time.Time     `json:"at" yaml:"at"`
}

// UserRequest is the raw input that started the workflow.
type UserRequest struct {
	Text         string   `json:"text" yaml:"text"`
	Attachments  int      `json:"attachments" yaml:"attachments"`
	UIReferences []string `json:"ui_references,omitempty" yaml:"ui_references,omitempty"`
}

// NewWorkflowState creates a fresh state for a new generation request.
func NewWorkflowState(requestID, sessionID, userID, correlationID string, input UserRequest) *WorkflowState {
	now := time.Now().UTC()
	return &WorkflowState{
		RequestID:     requestID,
		SessionID:     sessionID,
		UserID:        userID,
		CorrelationID: correlationID,
		CurrentPhase:  PhaseAnalysis,
		Input:         input,
		Requirements:  make(map[string]string),
		AgentOutputs:  make(map[AgentName]*AgentOutput),
		AgentErrors:   make(map[AgentName]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Transition moves the workflow to the given phase, enforcing the
// transition table.
func (w *WorkflowState) Transition(to Phase) error {
	if !CanTransition(w.CurrentPhase, to) {
		return ErrState(CodeInvalidTransition,
			fmt.Sprintf("cannot transition from %s to %s", w.CurrentPhase, to))
	}
	w.CurrentPhase = to
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendRound records a newly issued clarification round. Rounds are never
// replaced; current_round must equal the round's 1-based position.
func (w *WorkflowState) AppendRound(round ClarificationRound) error {
	want := len(w.ClarificationRounds) + 1
	if round.CurrentRound != want {
		return ErrState(CodeInvalidState,
			fmt.Sprintf("round counter %d does not match position %d", round.CurrentRound, want))
	}
	w.ClarificationRounds = append(w.ClarificationRounds, round)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// OpenRound returns the most recent round awaiting a response, if any.
func (w *WorkflowState) OpenRound() (*ClarificationRound, bool) {
	if len(w.ClarificationRounds) <= len(w.ClarificationResponses) {
		return nil, false
	}
	return &w.ClarificationRounds[len(w.ClarificationRounds)-1], true
}

// AppendResponse records the user's answers. A response must close the most
// recent open round; out-of-order round answering is rejected.
func (w *WorkflowState) AppendResponse(resp ClarificationResponse) error {
	open, ok := w.OpenRound()
	if !ok {
		return ErrValidation(CodeUnknownRound, "no clarification round is open")
	}
	if resp.RoundID != open.RoundID {
		return ErrValidation(CodeUnknownRound,
			fmt.Sprintf("response targets round %s but open round is %s", resp.RoundID, open.RoundID))
	}
	w.ClarificationResponses = append(w.ClarificationResponses, resp)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// SetActiveAgents fixes the fan-out set for the generation phase and
// resets completion tracking.
func (w *WorkflowState) SetActiveAgents(agents []AgentName) {
	w.ActiveAgents = append([]AgentName(nil), agents...)
	w.CompletedAgents = nil
	w.UpdatedAt = time.Now().UTC()
}

// RecordAgentResult marks an agent done, with its output or error. Failed
// agents still count toward the barrier; assembly proceeds with whatever
// outputs exist.
func (w *WorkflowState) RecordAgentResult(agent AgentName, out *AgentOutput, err error) error {
	if !w.agentActive(agent) {
		return ErrState(CodeInvalidState, fmt.Sprintf("agent %s is not active for this request", agent))
	}
	for _, done := range w.CompletedAgents {
		if done == agent {
			return ErrState(CodeInvalidState, fmt.Sprintf("agent %s already completed", agent))
		}
	}
	if err != nil {
		if w.AgentErrors == nil {
			w.AgentErrors = make(map[AgentName]string)
		}
		w.AgentErrors[agent] = err.Error()
	} else if out != nil {
		if w.AgentOutputs == nil {
			w.AgentOutputs = make(map[AgentName]*AgentOutput)
		}
		w.AgentOutputs[agent] = out
	}
	w.CompletedAgents = append(w.CompletedAgents, agent)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (w *WorkflowState) agentActive(agent AgentName) bool {
	for _, a := range w.ActiveAgents {
		if a == agent {
			return true
		}
	}
	return false
}

// BarrierSatisfied reports whether every active agent has reported,
// success or failure. Assembly is gated strictly on this.
func (w *WorkflowState) BarrierSatisfied() bool {
	if len(w.CompletedAgents) != len(w.ActiveAgents) {
		return false
	}
	for _, a := range w.ActiveAgents {
		found := false
		for _, c := range w.CompletedAgents {
			if a == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RecordFailure increments the error counter and stores the last error.
// Returns the new count.
func (w *WorkflowState) RecordFailure(err error) int {
	w.ErrorCount++
	w.LastError = &LastError{
		Category: GetCategory(err),
		Code:     domainCode(err),
		Message:  err.Error(),
		At:       time.Now().UTC(),
	}
	w.UpdatedAt = time.Now().UTC()
	return w.ErrorCount
}

func domainCode(err error) string {
	if de, ok := err.(*DomainError); ok {
		return de.Code
	}
	return "UNKNOWN"
}

// Terminal reports whether the workflow accepts no further events.
func (w *WorkflowState) Terminal() bool {
	return w.CurrentPhase.Terminal()
}

// Validate checks workflow invariants.
func (w *WorkflowState) Validate() error {
	if w.RequestID == "" {
		return ErrValidation("REQUEST_ID_REQUIRED", "request ID cannot be empty")
	}
	if w.SessionID == "" {
		return ErrValidation("SESSION_ID_REQUIRED", "session ID cannot be empty")
	}
	if !ValidPhase(w.CurrentPhase) {
		return ErrState(CodeInvalidState, fmt.Sprintf("invalid phase %q", w.CurrentPhase))
	}
	if len(w.CompletedAgents) > len(w.ActiveAgents) {
		return ErrState(CodeInvalidState, "completed agents exceed active agents")
	}
	for _, c := range w.CompletedAgents {
		if !w.agentActive(c) {
			return ErrState(CodeInvalidState,
				fmt.Sprintf("completed agent %s was never active", c))
		}
	}
	if w.FinalPresentation != nil && w.CurrentPhase != PhaseCompleted {
		return ErrState(CodeInvalidState, "final presentation set before completion")
	}
	return nil
}
