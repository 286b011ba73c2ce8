package core

import "fmt"

// Phase represents a stage in the generation workflow.
type Phase string

const (
	// PhaseAnalysis is the entry phase where the user request is analyzed
	// for completeness and intent.
	PhaseAnalysis Phase = "analysis"

	// PhaseGreeting is reached when the analyzer classifies the input as
	// chit-chat rather than a presentation request. Terminal for the request.
	PhaseGreeting Phase = "greeting"

	// PhaseClarification is a suspension point: a question round has been
	// issued and the workflow waits for the user's answers.
	PhaseClarification Phase = "clarification"

	// PhaseGeneration fans out content agents over the structure.
	PhaseGeneration Phase = "generation"

	// PhaseAssembly merges agent outputs into the final presentation.
	PhaseAssembly Phase = "assembly"

	// PhaseCompleted is the terminal success state.
	PhaseCompleted Phase = "completed"

	// PhaseError is the terminal failure state.
	PhaseError Phase = "error"

	// PhaseErrorRecovery marks a caught recoverable failure awaiting retry.
	PhaseErrorRecovery Phase = "error_recovery"
)

// AllPhases returns every phase the workflow can occupy.
func AllPhases() []Phase {
	return []Phase{
		PhaseAnalysis, PhaseGreeting, PhaseClarification, PhaseGeneration,
		PhaseAssembly, PhaseCompleted, PhaseError, PhaseErrorRecovery,
	}
}

// ValidPhase checks if a phase string is valid.
func ValidPhase(p Phase) bool {
	switch p {
	case PhaseAnalysis, PhaseGreeting, PhaseClarification, PhaseGeneration,
		PhaseAssembly, PhaseCompleted, PhaseError, PhaseErrorRecovery:
		return true
	default:
		return false
	}
}

// ParsePhase converts a string to a Phase with validation.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !ValidPhase(p) {
		return "", fmt.Errorf("invalid phase: %s", s)
	}
	return p, nil
}

// Terminal reports whether no further transitions are accepted from p.
// A new request must start a fresh WorkflowState once a terminal phase
// is reached.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError || p == PhaseGreeting
}

// Suspended reports whether the workflow is waiting on user input.
func (p Phase) Suspended() bool {
	return p == PhaseClarification
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Description returns a human-readable description of the phase.
func (p Phase) Description() string {
	switch p {
	case PhaseAnalysis:
		return "Analyzing the request for completeness and intent"
	case PhaseGreeting:
		return "Responding to a greeting"
	case PhaseClarification:
		return "Waiting for answers to clarification questions"
	case PhaseGeneration:
		return "Generating slide content with specialized agents"
	case PhaseAssembly:
		return "Assembling the final presentation"
	case PhaseCompleted:
		return "Presentation ready"
	case PhaseError:
		return "Generation failed"
	case PhaseErrorRecovery:
		return "Recovering from a transient failure"
	default:
		return "Unknown phase"
	}
}

// CanTransition reports whether the state machine permits moving from one
// phase to another. This is the single transition table; nothing outside the
// state machine mutates CurrentPhase.
func CanTransition(from, to Phase) bool {
	// Failure transitions are allowed from any non-terminal phase.
	if to == PhaseErrorRecovery || to == PhaseError {
		return !from.Terminal()
	}
	switch from {
	case PhaseAnalysis:
		return to == PhaseGreeting || to == PhaseClarification || to == PhaseGeneration
	case PhaseClarification:
		return to == PhaseClarification || to == PhaseGeneration
	case PhaseGeneration:
		return to == PhaseAssembly
	case PhaseAssembly:
		return to == PhaseCompleted
	case PhaseErrorRecovery:
		return to == PhaseAnalysis || to == PhaseClarification || to == PhaseGeneration || to == PhaseAssembly
	default:
		return false
	}
}
