package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/slidewise/deckd/internal/adapters/llm"
	"github.com/slidewise/deckd/internal/agent"
	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/events"
	"github.com/slidewise/deckd/internal/logging"
)

func newTestMachine(t *testing.T, cfg Config, agents map[core.AgentName]core.ContentAgent, opts ...Option) *Machine {
	t.Helper()
	log := logging.NewNop()
	runner := llm.NewMockRunner()
	if agents == nil {
		agents = agent.NewContentAgents()
	}
	return New(
		agent.NewAnalyzer(runner, log),
		agent.NewClarifier(runner, log, 3, 5),
		agent.NewBuilder(runner, &llm.MockEmbedder{}, nil, log, 5, 20),
		agents,
		log,
		cfg,
		opts...,
	)
}

func newState(input string) *core.WorkflowState {
	return core.NewWorkflowState("req-1", "sess-1", "user-1", "corr-1",
		core.UserRequest{Text: input})
}

const detailedRequest = "I need a 20-minute quarterly business review for the executive team, " +
	"professional style, covering revenue growth, churn, hiring progress, and the product " +
	"roadmap for the next two quarters."

func TestStartGreetingFastPath(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), nil)
	state := newState("hello")

	if err := m.Start(context.Background(), state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if state.CurrentPhase != core.PhaseGreeting {
		t.Errorf("phase = %s, want greeting", state.CurrentPhase)
	}
	if state.GreetingReply == "" {
		t.Error("greeting reply not set")
	}
	if !state.Terminal() {
		t.Error("greeting should be terminal")
	}
	if len(state.ClarificationRounds) != 0 {
		t.Errorf("greeting issued %d clarification rounds", len(state.ClarificationRounds))
	}
	if state.FinalPresentation != nil {
		t.Error("greeting should not produce a presentation")
	}
}

func TestStartVagueRequestSuspendsOnClarification(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), nil)
	state := newState("make a presentation")

	if err := m.Start(context.Background(), state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if state.CurrentPhase != core.PhaseClarification {
		t.Fatalf("phase = %s, want clarification", state.CurrentPhase)
	}
	round, open := state.OpenRound()
	if !open {
		t.Fatal("no open clarification round after suspension")
	}
	if round.CurrentRound != 1 {
		t.Errorf("current round = %d, want 1", round.CurrentRound)
	}
	if len(round.Questions) == 0 || len(round.Questions) > 5 {
		t.Errorf("question count = %d, want 1..5", len(round.Questions))
	}
	for _, q := range round.Questions {
		if q.QuestionID == "" || q.Question == "" {
			t.Errorf("round contains incomplete question: %+v", q)
		}
	}
}

func TestStartDetailedRequestRunsToCompletion(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), nil)
	state := newState(detailedRequest)

	if err := m.Start(context.Background(), state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if state.CurrentPhase != core.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", state.CurrentPhase)
	}
	if len(state.ClarificationRounds) != 0 {
		t.Errorf("detailed request asked %d rounds, want 0", len(state.ClarificationRounds))
	}

	p := state.FinalPresentation
	if p == nil {
		t.Fatal("no final presentation")
	}
	if n := len(p.Slides); n < 5 || n > 20 {
		t.Errorf("slide count = %d, want 5..20", n)
	}
	for _, slide := range p.Slides {
		if len(slide.Components) == 0 {
			t.Errorf("slide %d has no components", slide.SlideNumber)
		}
	}
	if partial, _ := p.Metadata["partial"].(bool); partial {
		t.Error("fully successful run marked partial")
	}
}

// Answering every question unhelpfully must not loop forever: the round
// ceiling forces defaults and the run completes anyway.
func TestRoundExhaustionForcesProgress(t *testing.T) {
	log := logging.NewNop()
	runner := llm.NewMockRunner()
	m := New(
		agent.NewAnalyzer(runner, log),
		agent.NewClarifier(runner, log, 2, 5),
		agent.NewBuilder(runner, &llm.MockEmbedder{}, nil, log, 5, 20),
		agent.NewContentAgents(),
		log,
		DefaultConfig(),
	)
	state := newState("make a presentation")
	ctx := context.Background()

	if err := m.Start(ctx, state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for round := 1; ; round++ {
		open, ok := state.OpenRound()
		if !ok {
			break
		}
		if round > 2 {
			t.Fatalf("round %d issued past the ceiling of 2", round)
		}
		skipped := make([]string, 0, len(open.Questions))
		for _, q := range open.Questions {
			skipped = append(skipped, q.QuestionID)
		}
		err := m.ProcessClarificationResponse(ctx, state, core.ClarificationResponse{
			RoundID:          open.RoundID,
			Responses:        map[string]string{},
			SkippedQuestions: skipped,
		})
		if err != nil {
			t.Fatalf("ProcessClarificationResponse(round %d) error = %v", round, err)
		}
	}

	if state.CurrentPhase != core.PhaseCompleted {
		t.Fatalf("phase = %s, want completed after exhaustion", state.CurrentPhase)
	}
	if len(state.ClarificationRounds) != 2 {
		t.Errorf("rounds = %d, want exactly 2", len(state.ClarificationRounds))
	}
	if got := state.Requirements["target_audience"]; got != "general business audience" {
		t.Errorf("target_audience default = %q", got)
	}
	if got := state.Requirements["duration"]; got != "15-20 minutes" {
		t.Errorf("duration default = %q", got)
	}
	if got := state.Requirements["style"]; got != "professional" {
		t.Errorf("style default = %q", got)
	}
	if state.FinalPresentation == nil {
		t.Fatal("exhausted run produced no presentation")
	}
}

// Categories asked in round one must not reappear in round two.
func TestRoundsDedupCategories(t *testing.T) {
	log := logging.NewNop()
	runner := llm.NewMockRunner()
	m := New(
		agent.NewAnalyzer(runner, log),
		agent.NewClarifier(runner, log, 3, 5),
		agent.NewBuilder(runner, &llm.MockEmbedder{}, nil, log, 5, 20),
		agent.NewContentAgents(),
		log,
		DefaultConfig(),
	)
	state := newState("make a presentation")
	ctx := context.Background()

	if err := m.Start(ctx, state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first, _ := state.OpenRound()
	skipped := make([]string, 0, len(first.Questions))
	for _, q := range first.Questions {
		skipped = append(skipped, q.QuestionID)
	}
	if err := m.ProcessClarificationResponse(ctx, state, core.ClarificationResponse{
		RoundID:          first.RoundID,
		SkippedQuestions: skipped,
	}); err != nil {
		t.Fatalf("ProcessClarificationResponse() error = %v", err)
	}

	second, ok := state.OpenRound()
	if !ok {
		t.Fatal("second round was not issued")
	}
	askedFirst := state.ClarificationRounds[0].Categories()
	for _, q := range second.Questions {
		if askedFirst[q.Category] {
			t.Errorf("category %s repeated in round two", q.Category)
		}
	}
}

func TestClarificationAnswersRaiseScoreAndGenerate(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), nil)
	state := newState("make a presentation")
	if err := state.Transition(core.PhaseClarification); err != nil {
		t.Fatal(err)
	}
	round := core.ClarificationRound{
		RoundID:      "round-1",
		CurrentRound: 1,
		MaxRounds:    3,
		Questions: []core.ClarificationQuestion{
			{QuestionID: "q1", Question: "Who is the audience?", Type: core.QuestionText, Category: core.CategoryAudience},
			{QuestionID: "q2", Question: "How long should it run?", Type: core.QuestionText, Category: core.CategoryLogistics},
			{QuestionID: "q3", Question: "What style do you want?", Type: core.QuestionText, Category: core.CategoryStyle},
		},
	}
	if err := state.AppendRound(round); err != nil {
		t.Fatal(err)
	}

	err := m.ProcessClarificationResponse(context.Background(), state, core.ClarificationResponse{
		RoundID: "round-1",
		Responses: map[string]string{
			"q1": "executive leadership",
			"q2": "30 minutes",
			"q3": "formal",
		},
	})
	if err != nil {
		t.Fatalf("ProcessClarificationResponse() error = %v", err)
	}
	if state.CurrentPhase != core.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", state.CurrentPhase)
	}
	if state.Requirements["target_audience"] != "executive leadership" {
		t.Errorf("target_audience = %q", state.Requirements["target_audience"])
	}
	if state.Requirements["duration"] != "30 minutes" {
		t.Errorf("duration = %q", state.Requirements["duration"])
	}
}

func TestProcessClarificationResponseRejectsWrongState(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), nil)
	state := newState("make a presentation")

	err := m.ProcessClarificationResponse(context.Background(), state, core.ClarificationResponse{RoundID: "nope"})
	if !core.IsCategory(err, core.ErrCatState) {
		t.Errorf("error category = %v, want state", core.GetCategory(err))
	}
	if state.CurrentPhase != core.PhaseAnalysis {
		t.Errorf("phase mutated to %s by rejected response", state.CurrentPhase)
	}
}

func TestProcessClarificationResponseRejectsUnknownRound(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), nil)
	state := newState("make a presentation")
	if err := m.Start(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	err := m.ProcessClarificationResponse(context.Background(), state, core.ClarificationResponse{
		RoundID:   "not-the-open-round",
		Responses: map[string]string{"q": "a"},
	})
	if !core.IsCategory(err, core.ErrCatValidation) {
		t.Errorf("error category = %v, want validation", core.GetCategory(err))
	}
	if len(state.ClarificationResponses) != 0 {
		t.Error("rejected response was recorded")
	}
}

func TestStartRequiresAnalysisPhase(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), nil)
	state := newState(detailedRequest)
	state.CurrentPhase = core.PhaseGeneration

	if err := m.Start(context.Background(), state); !core.IsCategory(err, core.ErrCatState) {
		t.Errorf("error = %v, want state-category error", err)
	}
}

type stubAgent struct {
	name core.AgentName
	err  error
}

func (s *stubAgent) Name() core.AgentName { return s.name }

func (s *stubAgent) Generate(ctx context.Context, task core.AgentTask) (*core.AgentOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.AgentOutput{Agent: s.name, Confidence: 1.0}, nil
}

func stubAgents(failures map[core.AgentName]error) map[core.AgentName]core.ContentAgent {
	out := make(map[core.AgentName]core.ContentAgent, len(core.AllAgents))
	for _, name := range core.AllAgents {
		out[name] = &stubAgent{name: name, err: failures[name]}
	}
	return out
}

func TestMandatoryAgentFailureIsTerminal(t *testing.T) {
	agents := stubAgents(map[core.AgentName]error{
		core.AgentResearcher: core.ErrCapability(core.CodeLLMUnavailable, "researcher down"),
	})
	m := newTestMachine(t, DefaultConfig(), agents)
	state := newState(detailedRequest)

	err := m.Start(context.Background(), state)
	if err == nil {
		t.Fatal("mandatory agent failure did not fail the workflow")
	}
	if !core.IsCategory(err, core.ErrCatCapability) {
		t.Errorf("error category = %v, want capability", core.GetCategory(err))
	}
	if !strings.Contains(err.Error(), string(core.AgentResearcher)) {
		t.Errorf("error does not name the failed agent: %v", err)
	}
	if state.CurrentPhase != core.PhaseError {
		t.Errorf("phase = %s, want error", state.CurrentPhase)
	}
	if state.LastError == nil {
		t.Error("last error not recorded")
	}
}

func TestOptionalAgentFailureStillAssembles(t *testing.T) {
	agents := stubAgents(map[core.AgentName]error{
		core.AgentResearcher: core.ErrNetwork("flaky upstream"),
	})
	cfg := DefaultConfig()
	cfg.MandatoryAgents = []core.AgentName{core.AgentUXArchitect}
	m := newTestMachine(t, cfg, agents)
	state := newState(detailedRequest)

	if err := m.Start(context.Background(), state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if state.CurrentPhase != core.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", state.CurrentPhase)
	}
	if _, failed := state.AgentErrors[core.AgentResearcher]; !failed {
		t.Error("researcher failure not recorded")
	}
	if !state.BarrierSatisfied() {
		t.Error("barrier not satisfied despite all agents reporting")
	}
	p := state.FinalPresentation
	if p == nil {
		t.Fatal("no presentation assembled")
	}
	if partial, _ := p.Metadata["partial"].(bool); !partial {
		t.Error("degraded run not marked partial")
	}
	// Skeleton fallback keeps every slide renderable.
	for _, slide := range p.Slides {
		if len(slide.Components) == 0 {
			t.Errorf("slide %d has no components", slide.SlideNumber)
		}
	}
}

// A total model outage must degrade every cognitive step to its
// deterministic fallback: the run suspends on clarification, accepts
// answers, and completes without ever touching the error phase.
func TestModelOutageNeverReachesErrorPhase(t *testing.T) {
	log := logging.NewNop()
	runner := &llm.MockRunner{Fail: core.ErrNetwork("model unreachable")}
	m := New(
		agent.NewAnalyzer(runner, log),
		agent.NewClarifier(runner, log, 3, 5),
		agent.NewBuilder(runner, &llm.MockEmbedder{}, nil, log, 5, 20),
		agent.NewContentAgents(),
		log,
		DefaultConfig(),
	)
	state := newState(detailedRequest)
	ctx := context.Background()

	if err := m.Start(ctx, state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if state.CurrentPhase != core.PhaseClarification {
		t.Fatalf("phase = %s, want clarification from fallback analysis", state.CurrentPhase)
	}
	round, ok := state.OpenRound()
	if !ok {
		t.Fatal("fallback analysis produced no open round")
	}

	answers := make(map[string]string, len(round.Questions))
	for _, q := range round.Questions {
		answers[q.QuestionID] = "executives, 20 minutes, professional"
	}
	err := m.ProcessClarificationResponse(ctx, state, core.ClarificationResponse{
		RoundID:   round.RoundID,
		Responses: answers,
	})
	if err != nil {
		t.Fatalf("ProcessClarificationResponse() error = %v", err)
	}

	if state.CurrentPhase == core.PhaseError {
		t.Fatalf("model outage drove the workflow into the error phase: %v", state.LastError)
	}
	if state.CurrentPhase != core.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", state.CurrentPhase)
	}
	if state.FinalPresentation == nil {
		t.Fatal("fallback run produced no presentation")
	}
	if state.ErrorCount != 0 {
		t.Errorf("error count = %d, want 0 for a pure-fallback run", state.ErrorCount)
	}
}

type deadlineCaptureAgent struct {
	name      core.AgentName
	remaining time.Duration
}

func (d *deadlineCaptureAgent) Name() core.AgentName { return d.name }

func (d *deadlineCaptureAgent) Generate(ctx context.Context, task core.AgentTask) (*core.AgentOutput, error) {
	if dl, ok := ctx.Deadline(); ok {
		d.remaining = time.Until(dl)
	}
	return &core.AgentOutput{Agent: d.name}, nil
}

// The phase deadline, not just the per-agent one, must bound every step
// context that reaches an agent.
func TestPhaseTimeoutBoundsAgentContext(t *testing.T) {
	capture := &deadlineCaptureAgent{name: core.AgentResearcher}
	agents := stubAgents(nil)
	agents[core.AgentResearcher] = capture

	cfg := DefaultConfig()
	cfg.PhaseTimeout = 50 * time.Millisecond
	cfg.AgentTimeout = 10 * time.Second
	m := newTestMachine(t, cfg, agents)
	state := newState(detailedRequest)

	if err := m.Start(context.Background(), state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if capture.remaining <= 0 {
		t.Fatal("agent context carried no deadline")
	}
	if capture.remaining > cfg.PhaseTimeout {
		t.Errorf("agent deadline %s exceeds the phase timeout %s", capture.remaining, cfg.PhaseTimeout)
	}
}

func TestRunPublishesPhaseTransitions(t *testing.T) {
	bus := events.New(50)
	defer bus.Close()
	ch := bus.Subscribe(events.TypePhaseEntered)

	m := newTestMachine(t, DefaultConfig(), nil, WithBus(bus))
	state := newState(detailedRequest)
	if err := m.Start(context.Background(), state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	transitions := make(map[string]string)
	for done := false; !done; {
		select {
		case ev := <-ch:
			pe, ok := ev.(events.PhaseEnteredEvent)
			if !ok {
				t.Fatalf("unexpected event type %T", ev)
			}
			transitions[pe.From] = pe.To
		default:
			done = true
		}
	}
	want := map[string]string{
		"analysis":   "generation",
		"generation": "assembly",
		"assembly":   "completed",
	}
	for from, to := range want {
		if transitions[from] != to {
			t.Errorf("transition from %s = %q, want %q", from, transitions[from], to)
		}
	}
}

func TestRecoverRetriesTransientFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	m := newTestMachine(t, cfg, nil)
	state := newState(detailedRequest)
	if err := state.Transition(core.PhaseGeneration); err != nil {
		t.Fatal(err)
	}

	if !m.recover(state, core.PhaseGeneration, core.ErrTimeout("transient")) {
		t.Fatal("first transient failure should be recoverable")
	}
	if state.CurrentPhase != core.PhaseGeneration {
		t.Errorf("phase = %s, want generation after recovery", state.CurrentPhase)
	}
	if state.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", state.ErrorCount)
	}

	if !m.recover(state, core.PhaseGeneration, core.ErrNetwork("transient")) {
		t.Fatal("second transient failure should still be recoverable")
	}

	// Third failure exceeds MaxRetries.
	if m.recover(state, core.PhaseGeneration, core.ErrTimeout("transient")) {
		t.Error("retry cap not enforced")
	}
	if state.CurrentPhase != core.PhaseError {
		t.Errorf("phase = %s, want error after cap", state.CurrentPhase)
	}
}

func TestRecoverRejectsNonRetryable(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), nil)
	state := newState(detailedRequest)
	if err := state.Transition(core.PhaseGeneration); err != nil {
		t.Fatal(err)
	}

	if m.recover(state, core.PhaseGeneration, core.ErrCapability(core.CodeLLMUnavailable, "model gone")) {
		t.Error("capability failure should not be retried")
	}
	if state.CurrentPhase != core.PhaseError {
		t.Errorf("phase = %s, want error", state.CurrentPhase)
	}
}

type hangingAgent struct{ name core.AgentName }

func (h *hangingAgent) Name() core.AgentName { return h.name }

func (h *hangingAgent) Generate(ctx context.Context, task core.AgentTask) (*core.AgentOutput, error) {
	<-ctx.Done()
	return nil, nil
}

func TestAgentTimeoutRecordedAsFailure(t *testing.T) {
	agents := stubAgents(nil)
	agents[core.AgentResearcher] = &hangingAgent{name: core.AgentResearcher}
	cfg := DefaultConfig()
	cfg.AgentTimeout = 20 * time.Millisecond
	cfg.MandatoryAgents = []core.AgentName{core.AgentUXArchitect}
	m := newTestMachine(t, cfg, agents)
	state := newState(detailedRequest)

	if err := m.Start(context.Background(), state); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if state.CurrentPhase != core.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", state.CurrentPhase)
	}
	msg, failed := state.AgentErrors[core.AgentResearcher]
	if !failed {
		t.Fatal("timed-out agent not recorded as failed")
	}
	if !strings.Contains(msg, "timed out") {
		t.Errorf("failure message = %q, want timeout", msg)
	}
}
