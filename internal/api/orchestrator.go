package api

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/logging"
	"github.com/slidewise/deckd/internal/service"
	"github.com/slidewise/deckd/internal/workflow"
)

// Sender delivers one outbound protocol message. The WebSocket conn
// implements it in production; tests substitute a recorder.
type Sender interface {
	Send(v interface{}) error
}

// Orchestrator owns one live connection: session identity, the current
// workflow state, and the translation of phases into protocol messages.
// It is not safe for concurrent use; the connection's read loop is the
// single caller, so messages are processed in receipt order.
type Orchestrator struct {
	machine  *workflow.Machine
	sessions *service.Sessions
	auth     core.Authenticator
	send     Sender
	log      *logging.Logger
	cp       *workflow.Checkpointer // may be nil

	session *core.Session
	state   *core.WorkflowState
}

// OrchestratorOption configures an orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCheckpoints lets the orchestrator resume suspended workflows from
// their checkpoints on reconnect.
func WithCheckpoints(cp *workflow.Checkpointer) OrchestratorOption {
	return func(o *Orchestrator) { o.cp = cp }
}

// NewOrchestrator creates an orchestrator for a single connection.
func NewOrchestrator(machine *workflow.Machine, sessions *service.Sessions, auth core.Authenticator, send Sender, log *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		machine:  machine,
		sessions: sessions,
		auth:     auth,
		send:     send,
		log:      log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Connect authenticates the client and establishes its session. The
// connection-accepted frame is sent only after the session is committed
// to the store, so the client never acts on a session the server does
// not have.
func (o *Orchestrator) Connect(ctx context.Context, token, sessionID string) error {
	identity, err := o.auth.Authenticate(ctx, token)
	if err != nil {
		o.sendSystem("error", "AUTH_FAILED", "authentication failed")
		return err
	}
	if sessionID == "" {
		sessionID = identity.SessionID
	}

	var session *core.Session
	if sessionID == "" {
		session, err = o.sessions.Create(ctx, identity.UserID)
	} else {
		session, _, err = o.sessions.Restore(ctx, sessionID, identity.UserID)
	}
	if err != nil {
		o.sendSystem("error", core.CodeSessionError, "session initialization failed")
		return err
	}
	o.session = session
	o.resumeWorkflow()

	o.deliver(NewConnectionMessage("connected", session.SessionID, session.UserID))
	if o.state != nil && o.state.CurrentPhase.Suspended() {
		// The client reconnected mid-clarification; repeat the open
		// round so it can answer.
		if round, open := o.state.OpenRound(); open {
			o.sendClarificationRound(round)
		}
	}
	return nil
}

// resumeWorkflow reloads a suspended workflow from its checkpoint. Only
// suspended states are worth resuming; anything else is either done or
// mid-step on a process that no longer exists.
func (o *Orchestrator) resumeWorkflow() {
	if o.cp == nil || o.session.ActiveRequestID == "" {
		return
	}
	state, err := o.cp.Load(o.session.ActiveRequestID)
	if err != nil || state.SessionID != o.session.SessionID {
		return
	}
	if state.CurrentPhase.Suspended() {
		o.state = state
	}
}

// Disconnect tears down connection-scoped state. The session record
// stays in the store so a reconnect can restore it.
func (o *Orchestrator) Disconnect() {
	if o.session != nil {
		o.log.WithSession(o.session.SessionID).Info("connection closed")
	}
}

// SessionID returns the active session id, empty before Connect.
func (o *Orchestrator) SessionID() string {
	if o.session == nil {
		return ""
	}
	return o.session.SessionID
}

// HandleRaw processes one inbound frame. Every failure path ends in an
// outbound system message; errors never propagate to the transport.
func (o *Orchestrator) HandleRaw(ctx context.Context, raw []byte) {
	msg, err := ParseMessage(raw)
	if err != nil {
		o.sendDomainError(err)
		return
	}
	o.Handle(ctx, msg)
}

// Handle dispatches one parsed message.
func (o *Orchestrator) Handle(ctx context.Context, msg *InboundMessage) {
	if o.session == nil {
		o.sendSystem("error", "NOT_READY", "connection not fully initialized")
		return
	}

	switch msg.Type {
	case TypeConnection:
		if msg.Status == "ping" {
			o.deliver(NewConnectionMessage("pong", o.session.SessionID, o.session.UserID))
		}
	case TypeFrontendAction:
		o.handleAction(ctx, msg)
	case TypeUserInput:
		switch {
		case msg.Input.ResponseTo != "":
			o.handleClarificationResponse(ctx, msg)
		case strings.HasPrefix(msg.Input.Text, "test:"):
			o.handleTestCommand(strings.TrimSpace(strings.TrimPrefix(msg.Input.Text, "test:")))
		default:
			o.startGeneration(ctx, msg)
		}
	}
}

// handleTestCommand emits canned frames so clients can exercise their
// rendering without running a workflow.
func (o *Orchestrator) handleTestCommand(cmd string) {
	switch cmd {
	case "progress":
		stages := []struct {
			stage   string
			percent int
			active  []core.AgentName
		}{
			{"analysis", 10, nil},
			{"generation", 30, []core.AgentName{core.AgentResearcher, core.AgentUXArchitect}},
			{"generation", 60, []core.AgentName{core.AgentVisualDesigner, core.AgentDataAnalyst}},
			{"completed", 100, nil},
		}
		for _, s := range stages {
			o.sendChat("info", map[string]interface{}{
				"message": "Testing " + s.stage + " stage",
				"context": "test command",
			}, nil, agentProgress(s.stage, s.percent, s.active, nil))
		}
	case "empty":
		// Exercises the at-least-one-payload invariant.
		if _, err := NewDirectorMessage(o.SessionID(), "director_inbound", nil, nil); err != nil {
			o.sendDomainError(err)
		}
	default:
		o.sendSystem("warning", "UNKNOWN_TEST", "unknown test command "+cmd)
	}
}

// startGeneration begins a new workflow for the session. At most one
// workflow is active per session: a request arriving while one is in
// flight gets a busy signal instead of silently interleaving.
func (o *Orchestrator) startGeneration(ctx context.Context, msg *InboundMessage) {
	if o.state != nil && !o.state.Terminal() {
		o.sendSystem("warning", core.CodeWorkflowBusy,
			"a presentation is already being generated for this session")
		return
	}
	release, err := o.sessions.AcquireWorkflow(o.session.SessionID)
	if err != nil {
		o.sendDomainError(err)
		return
	}
	defer release()

	state := core.NewWorkflowState(
		"req_"+uuid.NewString()[:12],
		o.session.SessionID,
		o.session.UserID,
		uuid.NewString(),
		core.UserRequest{
			Text:         msg.Input.Text,
			Attachments:  len(msg.Input.Attachments),
			UIReferences: msg.Input.UIReferences,
		},
	)
	o.state = state
	o.session.ActiveRequestID = state.RequestID
	if err := o.sessions.Save(ctx, o.session); err != nil {
		o.log.WithSession(o.session.SessionID).Warn("session save failed", "error", err.Error())
	}

	o.sendChat("info", map[string]interface{}{
		"message": "I'm analyzing your request...",
		"context": "Starting presentation analysis",
	}, nil, agentProgress("analysis", 10, nil, nil))

	err = o.machine.Start(ctx, state)
	o.renderState(err)
	o.syncWorkflowRef(ctx)
}

// syncWorkflowRef drops the session's workflow reference once the
// workflow can no longer be resumed.
func (o *Orchestrator) syncWorkflowRef(ctx context.Context) {
	if o.state == nil || !o.state.Terminal() {
		return
	}
	if o.cp != nil {
		_ = o.cp.Delete(o.state.RequestID)
	}
	if o.session.ActiveRequestID == "" {
		return
	}
	o.session.ActiveRequestID = ""
	if err := o.sessions.Save(ctx, o.session); err != nil {
		o.log.WithSession(o.session.SessionID).Warn("session save failed", "error", err.Error())
	}
}

// handleClarificationResponse resumes the suspended workflow with the
// user's answers.
func (o *Orchestrator) handleClarificationResponse(ctx context.Context, msg *InboundMessage) {
	if o.state == nil {
		o.sendSystem("error", core.CodeWorkflowNotFound, "no workflow is awaiting answers")
		return
	}
	release, err := o.sessions.AcquireWorkflow(o.session.SessionID)
	if err != nil {
		o.sendDomainError(err)
		return
	}
	defer release()

	resp := core.ClarificationResponse{
		RoundID:          msg.Input.ResponseTo,
		Responses:        msg.Input.Responses,
		SkippedQuestions: msg.Input.SkippedQuestions,
	}
	err = o.machine.ProcessClarificationResponse(ctx, o.state, resp)
	if err != nil && isPreconditionError(err) {
		// Bad round reference or wrong phase; the workflow is untouched.
		o.sendDomainError(err)
		return
	}
	o.renderState(err)
	o.syncWorkflowRef(ctx)
}

// isPreconditionError distinguishes a rejected call from a failed
// workflow step.
func isPreconditionError(err error) bool {
	de, ok := err.(*core.DomainError)
	if !ok {
		return false
	}
	return de.Code == core.CodeInvalidState || de.Code == core.CodeUnknownRound
}

func (o *Orchestrator) handleAction(ctx context.Context, msg *InboundMessage) {
	switch msg.Action {
	case "save_draft":
		o.saveDraft(ctx)
	case "export", "share":
		o.sendChat("info", map[string]interface{}{
			"message": "The " + msg.Action + " feature is not available yet",
			"context": "frontend action",
		}, nil, nil)
	default:
		o.sendChat("info", map[string]interface{}{
			"message": "Action " + msg.Action + " noted but not implemented",
			"context": "frontend action",
		}, nil, nil)
	}
}

func (o *Orchestrator) saveDraft(ctx context.Context) {
	if o.state == nil || o.state.Structure == nil {
		o.sendSystem("warning", "NO_DRAFT", "no presentation to save")
		return
	}
	o.session.DraftTitle = o.state.Structure.Title
	for k, v := range o.state.Requirements {
		o.session.Requirements[k] = v
	}
	if err := o.sessions.Save(ctx, o.session); err != nil {
		o.log.WithSession(o.session.SessionID).Error("draft save failed", "error", err.Error())
		o.sendSystem("error", core.CodeStoreUnavailable, "draft could not be saved")
		return
	}
	o.sendChat("info", map[string]interface{}{
		"message": "Draft saved",
		"title":   o.session.DraftTitle,
	}, nil, nil)
}

// renderState translates the workflow's phase into outbound messages.
// A step error becomes a user-safe system message carrying only the
// correlation id; detail stays server-side.
func (o *Orchestrator) renderState(stepErr error) {
	state := o.state
	if stepErr != nil {
		o.log.WithSession(state.SessionID).WithRequest(state.RequestID).Error("workflow failed",
			"phase", state.CurrentPhase.String(), "error", stepErr.Error())
		sys := NewSystemMessage(state.SessionID, "error", "GENERATION_FAILED",
			"presentation generation failed, please try again")
		sys.CorrelationID = state.CorrelationID
		o.deliver(sys)
		return
	}

	switch state.CurrentPhase {
	case core.PhaseGreeting:
		o.sendChat("info", map[string]interface{}{
			"message": state.GreetingReply,
			"context": "greeting",
			"options": []string{
				"Create a quarterly business review",
				"Create a product launch deck",
				"Create a training presentation",
			},
		}, nil, nil)

	case core.PhaseClarification:
		round, ok := state.OpenRound()
		if !ok {
			return
		}
		o.sendClarificationRound(round)

	case core.PhaseCompleted:
		o.sendPresentation(state.FinalPresentation)

	case core.PhaseError:
		sys := NewSystemMessage(state.SessionID, "error", "GENERATION_FAILED",
			"presentation generation failed, please try again")
		sys.CorrelationID = state.CorrelationID
		o.deliver(sys)
	}
}

func (o *Orchestrator) sendClarificationRound(round *core.ClarificationRound) {
	questions := make([]map[string]interface{}, 0, len(round.Questions))
	for _, q := range round.Questions {
		questions = append(questions, map[string]interface{}{
			"id":       q.QuestionID,
			"question": q.Question,
			"type":     string(q.Type),
			"options":  q.Options,
			"required": q.Required,
			"category": string(q.Category),
		})
	}
	content := map[string]interface{}{
		"message":   round.Questions[0].Question,
		"context":   round.Context,
		"round_id":  round.RoundID,
		"round":     round.CurrentRound,
		"questions": questions,
	}
	actions := []ChatAction{{
		ActionID:      "submit_answers",
		Type:          "custom",
		Label:         "Submit Answers",
		Primary:       true,
		RequiresInput: true,
	}}
	o.sendChat("question", content, actions, nil)
}

func (o *Orchestrator) sendPresentation(p *core.Presentation) {
	if p == nil {
		o.sendSystem("error", "GENERATION_FAILED", "presentation generation failed")
		return
	}
	chat := &ChatData{
		Type: "summary",
		Content: map[string]interface{}{
			"message": "Your presentation is ready!",
			"title":   p.Title,
			"slides":  len(p.Slides),
		},
		Progress: agentProgress("completed", 100, nil, core.AllAgents),
	}
	msg, err := NewDirectorMessage(o.session.SessionID, "director_outbound", chat, SlidesPayload(p))
	if err != nil {
		o.log.WithSession(o.session.SessionID).Error("presentation message invalid", "error", err.Error())
		return
	}
	o.deliver(msg)
}

func (o *Orchestrator) sendChat(chatType string, content map[string]interface{}, actions []ChatAction, progress *ProgressUpdate) {
	chat := &ChatData{Type: chatType, Content: content, Actions: actions, Progress: progress}
	msg, err := NewDirectorMessage(o.SessionID(), "director_inbound", chat, nil)
	if err != nil {
		return
	}
	o.deliver(msg)
}

func (o *Orchestrator) sendSystem(level, code, message string) {
	o.deliver(NewSystemMessage(o.SessionID(), level, code, message))
}

func (o *Orchestrator) sendDomainError(err error) {
	de, ok := err.(*core.DomainError)
	if !ok {
		o.sendSystem("error", "INTERNAL", "internal error")
		return
	}
	o.sendSystem("error", de.Code, de.Message)
}

func (o *Orchestrator) deliver(v interface{}) {
	if err := o.send.Send(v); err != nil {
		o.log.WithSession(o.SessionID()).Warn("send failed", "error", err.Error())
	}
}
