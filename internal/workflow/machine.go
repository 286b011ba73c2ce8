// Package workflow implements the generation state machine: analysis,
// clarification rounds, concurrent agent fan-out, and assembly of the
// final presentation. The machine owns every phase transition; callers
// drive it with Start and ProcessClarificationResponse and read the
// resulting state.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slidewise/deckd/internal/agent"
	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/events"
	"github.com/slidewise/deckd/internal/logging"
)

// Config carries the machine's tunables.
type Config struct {
	MinCompletenessScore float64
	MaxRetries           int
	AgentTimeout         time.Duration
	PhaseTimeout         time.Duration
	MandatoryAgents      []core.AgentName
}

// DefaultConfig returns the stock machine configuration.
func DefaultConfig() Config {
	return Config{
		MinCompletenessScore: 0.8,
		MaxRetries:           3,
		AgentTimeout:         30 * time.Second,
		PhaseTimeout:         2 * time.Minute,
		MandatoryAgents:      []core.AgentName{core.AgentUXArchitect, core.AgentResearcher},
	}
}

// Machine executes workflow steps over a WorkflowState.
type Machine struct {
	analyzer    *agent.Analyzer
	clarifier   *agent.Clarifier
	builder     *agent.Builder
	agents      map[core.AgentName]core.ContentAgent
	store       core.PresentationStore // may be nil
	bus         *events.Bus            // may be nil
	checkpoints *Checkpointer          // may be nil
	log         *logging.Logger
	cfg         Config
}

// Option configures a Machine.
type Option func(*Machine)

// WithStore attaches a presentation store for structure and result
// persistence.
func WithStore(store core.PresentationStore) Option {
	return func(m *Machine) { m.store = store }
}

// WithBus attaches an event bus for progress events.
func WithBus(bus *events.Bus) Option {
	return func(m *Machine) { m.bus = bus }
}

// WithCheckpointer enables phase checkpointing.
func WithCheckpointer(cp *Checkpointer) Option {
	return func(m *Machine) { m.checkpoints = cp }
}

// New creates a workflow machine.
func New(analyzer *agent.Analyzer, clarifier *agent.Clarifier, builder *agent.Builder, agents map[core.AgentName]core.ContentAgent, log *logging.Logger, cfg Config, opts ...Option) *Machine {
	if cfg.MinCompletenessScore <= 0 {
		cfg.MinCompletenessScore = 0.8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 30 * time.Second
	}
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = 2 * time.Minute
	}
	m := &Machine{
		analyzer:  analyzer,
		clarifier: clarifier,
		builder:   builder,
		agents:    agents,
		log:       log,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start drives a fresh workflow from analysis until it suspends on a
// clarification round or reaches a terminal phase. The returned error is
// non-nil only when the workflow ended in the error phase.
func (m *Machine) Start(ctx context.Context, state *core.WorkflowState) error {
	if state.CurrentPhase != core.PhaseAnalysis {
		return core.ErrState(core.CodeInvalidState,
			"start requires a fresh workflow in the analysis phase")
	}
	m.publish(events.NewWorkflowStartedEvent(state.RequestID, state.SessionID, state.Input.Text))
	return m.run(ctx, state)
}

// ProcessClarificationResponse resumes a suspended workflow with the
// user's answers to the most recent open round.
func (m *Machine) ProcessClarificationResponse(ctx context.Context, state *core.WorkflowState, resp core.ClarificationResponse) error {
	if state.CurrentPhase != core.PhaseClarification {
		return core.ErrState(core.CodeInvalidState,
			"no clarification round is awaiting a response")
	}
	open, ok := state.OpenRound()
	if !ok {
		return core.ErrValidation(core.CodeUnknownRound, "no clarification round is open")
	}
	round := *open
	if err := state.AppendResponse(resp); err != nil {
		return err
	}
	agent.MergeResponses(state.Requirements, round, resp)
	m.publish(events.NewClarificationAnswersEvent(state.RequestID, state.SessionID, round.CurrentRound, len(resp.Responses)))

	// Re-analyze with the merged requirements; the score decides whether
	// another round is needed or generation can begin.
	state.Analysis = m.analyzer.Analyze(ctx, state.Input, state.Requirements)

	if state.Analysis.CompletenessScore >= m.cfg.MinCompletenessScore {
		if err := state.Transition(core.PhaseGeneration); err != nil {
			return err
		}
		return m.run(ctx, state)
	}
	return m.run(ctx, state)
}

// run executes phases until the workflow suspends or terminates.
func (m *Machine) run(ctx context.Context, state *core.WorkflowState) error {
	for {
		if state.CurrentPhase.Terminal() {
			return nil
		}

		phase := state.CurrentPhase
		started := time.Now()
		// Every step runs under the phase deadline; components that respect
		// their context degrade to fallbacks instead of hanging the run.
		stepCtx, cancel := context.WithTimeout(ctx, m.cfg.PhaseTimeout)
		err := m.step(stepCtx, state)
		cancel()
		if err == nil {
			m.publish(events.NewPhaseCompletedEvent(state.RequestID, state.SessionID, phase.String(), time.Since(started)))
			if state.CurrentPhase != phase {
				m.publish(events.NewPhaseEnteredEvent(state.RequestID, state.SessionID, phase.String(), state.CurrentPhase.String()))
			}
			m.checkpoint(state)
			if state.CurrentPhase.Suspended() {
				return nil
			}
			continue
		}

		if recovered := m.recover(state, phase, err); !recovered {
			return err
		}
	}
}

// step executes exactly one phase.
func (m *Machine) step(ctx context.Context, state *core.WorkflowState) error {
	switch state.CurrentPhase {
	case core.PhaseAnalysis:
		return m.stepAnalysis(ctx, state)
	case core.PhaseClarification:
		return m.stepClarification(ctx, state)
	case core.PhaseGeneration:
		return m.stepGeneration(ctx, state)
	case core.PhaseAssembly:
		return m.stepAssembly(ctx, state)
	case core.PhaseErrorRecovery:
		// recover() already repositioned the workflow; nothing runs here.
		return core.ErrState(core.CodeInvalidState, "error_recovery is not directly executable")
	default:
		return core.ErrState(core.CodeInvalidState,
			"phase "+state.CurrentPhase.String()+" is not executable")
	}
}

func (m *Machine) stepAnalysis(ctx context.Context, state *core.WorkflowState) error {
	state.Analysis = m.analyzer.Analyze(ctx, state.Input, state.Requirements)

	if state.Analysis.DetectedIntent == core.IntentGreeting {
		state.GreetingReply = greetingReply()
		return state.Transition(core.PhaseGreeting)
	}
	if state.Analysis.CompletenessScore < m.cfg.MinCompletenessScore {
		if err := state.Transition(core.PhaseClarification); err != nil {
			return err
		}
		return m.issueRound(ctx, state)
	}
	return state.Transition(core.PhaseGeneration)
}

// stepClarification runs when the workflow re-enters clarification after
// a response left the score below threshold: issue the next round, or
// force progress when rounds are exhausted.
func (m *Machine) stepClarification(ctx context.Context, state *core.WorkflowState) error {
	if _, open := state.OpenRound(); open {
		// Still waiting on the user; remain suspended.
		return nil
	}
	return m.issueRound(ctx, state)
}

// issueRound asks the clarifier for the next round and appends it. An
// out-of-rounds refusal is not user-visible: defaults fill the gaps and
// the workflow moves to generation.
func (m *Machine) issueRound(ctx context.Context, state *core.WorkflowState) error {
	var missing []string
	if state.Analysis != nil {
		missing = state.Analysis.MissingInformation
	}
	round, err := m.clarifier.GenerateRound(ctx, missing, state.ClarificationRounds)
	if err != nil {
		if core.IsCategory(err, core.ErrCatState) || isOutOfRounds(err) {
			agent.FillDefaultRequirements(state.Requirements)
			m.log.WithRequest(state.RequestID).Info("clarification rounds exhausted, proceeding with defaults",
				"rounds", len(state.ClarificationRounds))
			return state.Transition(core.PhaseGeneration)
		}
		return err
	}
	if err := state.AppendRound(*round); err != nil {
		return err
	}
	m.publish(events.NewClarificationAskedEvent(state.RequestID, state.SessionID, round.CurrentRound, len(round.Questions)))
	return nil
}

func isOutOfRounds(err error) bool {
	de, ok := err.(*core.DomainError)
	return ok && de.Code == core.CodeOutOfRounds
}

func (m *Machine) stepGeneration(ctx context.Context, state *core.WorkflowState) error {
	if state.Structure == nil {
		state.Structure = m.builder.Build(ctx, state.Requirements, state.Analysis)
		m.saveStructure(ctx, state)
	}

	state.SetActiveAgents(core.RouteAgents(state.Structure))
	if err := m.fanOut(ctx, state); err != nil {
		return err
	}

	if failed := m.failedMandatory(state); failed != "" {
		return core.ErrCapability(core.CodeMandatoryAgent,
			"mandatory agent "+failed+" failed: "+state.AgentErrors[core.AgentName(failed)])
	}
	return state.Transition(core.PhaseAssembly)
}

func (m *Machine) failedMandatory(state *core.WorkflowState) string {
	for _, name := range m.cfg.MandatoryAgents {
		if _, failed := state.AgentErrors[name]; failed {
			return string(name)
		}
	}
	return ""
}

func (m *Machine) stepAssembly(ctx context.Context, state *core.WorkflowState) error {
	presentation := Assemble(state)
	if err := state.Transition(core.PhaseCompleted); err != nil {
		return err
	}
	state.FinalPresentation = presentation

	if m.store != nil {
		if err := m.store.SavePresentation(ctx, state.SessionID, presentation); err != nil {
			// Persistence is best-effort; the client still gets the result.
			m.log.WithRequest(state.RequestID).Warn("saving presentation failed",
				"error", err.Error())
		}
	}
	m.publishPriority(events.NewWorkflowCompletedEvent(
		state.RequestID, state.SessionID, presentation.PresentationID,
		len(presentation.Slides), time.Since(state.CreatedAt)))
	return nil
}

// recover classifies a step failure. Recoverable errors under the retry
// cap transition through error_recovery and back to the failed phase;
// everything else lands in the terminal error phase.
func (m *Machine) recover(state *core.WorkflowState, failedPhase core.Phase, err error) bool {
	count := state.RecordFailure(err)
	log := m.log.WithRequest(state.RequestID).WithPhase(failedPhase.String())

	if core.IsRetryable(err) && count <= m.cfg.MaxRetries {
		if terr := state.Transition(core.PhaseErrorRecovery); terr != nil {
			return false
		}
		if terr := state.Transition(failedPhase); terr != nil {
			return false
		}
		log.Warn("recoverable step failure, retrying",
			"attempt", count, "max_retries", m.cfg.MaxRetries, "error", err.Error())
		m.publish(events.NewWorkflowRecoveredEvent(state.RequestID, state.SessionID, failedPhase.String(), count))
		return true
	}

	_ = state.Transition(core.PhaseError)
	log.Error("workflow failed",
		"error_count", count, "recoverable", core.IsRetryable(err), "error", err.Error())
	m.publishPriority(events.NewWorkflowFailedEvent(
		state.RequestID, state.SessionID, failedPhase.String(), err.Error(), core.IsRetryable(err)))
	return false
}

func (m *Machine) saveStructure(ctx context.Context, state *core.WorkflowState) {
	if m.store == nil || state.Structure == nil {
		return
	}
	embedding := m.builder.Embed(ctx, state.Requirements)
	presentationID := uuid.NewString()
	if err := m.store.SaveStructure(ctx, state.SessionID, presentationID, state.Structure, embedding); err != nil {
		m.log.WithRequest(state.RequestID).Warn("saving structure failed", "error", err.Error())
	}
}

func (m *Machine) checkpoint(state *core.WorkflowState) {
	if m.checkpoints == nil {
		return
	}
	if err := m.checkpoints.Save(state); err != nil {
		m.log.WithRequest(state.RequestID).Warn("checkpoint failed", "error", err.Error())
	}
}

func (m *Machine) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func (m *Machine) publishPriority(ev events.Event) {
	if m.bus != nil {
		m.bus.PublishPriority(ev)
	}
}

func greetingReply() string {
	return "Hello! Tell me about the presentation you need and I'll put a structure together. " +
		"Mentioning the topic, audience, and time limit helps me get it right the first time."
}
