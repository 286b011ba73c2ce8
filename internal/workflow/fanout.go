package workflow

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/events"
)

// agentResult carries one agent's outcome back to the collecting side of
// the barrier.
type agentResult struct {
	agent    core.AgentName
	output   *core.AgentOutput
	err      error
	duration time.Duration
}

// fanOut dispatches every active agent concurrently and joins them at a
// barrier. A failed or timed-out agent is recorded and still satisfies
// the barrier; only an unknown agent name is a step error.
func (m *Machine) fanOut(ctx context.Context, state *core.WorkflowState) error {
	active := state.ActiveAgents
	results := make(chan agentResult, len(active))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range active {
		impl, ok := m.agents[name]
		if !ok {
			return core.ErrState(core.CodeInvalidState, "no implementation for agent "+string(name))
		}
		m.publish(events.NewAgentStartedEvent(state.RequestID, state.SessionID, string(name)))

		name := name
		g.Go(func() error {
			agentCtx, cancel := context.WithTimeout(gctx, m.cfg.AgentTimeout)
			defer cancel()

			started := time.Now()
			out, err := impl.Generate(agentCtx, core.AgentTask{
				RequestID:     state.RequestID,
				SessionID:     state.SessionID,
				CorrelationID: state.CorrelationID,
				Structure:     state.Structure,
				Requirements:  state.Requirements,
			})
			if agentCtx.Err() != nil && err == nil {
				err = core.ErrTimeout("agent " + string(name) + " timed out").WithCause(agentCtx.Err())
			}
			results <- agentResult{agent: name, output: out, err: err, duration: time.Since(started)}
			// Failures are data here, never group errors: one agent must
			// not cancel its peers.
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			timedOut := core.IsCategory(res.err, core.ErrCatTimeout)
			m.publish(events.NewAgentFailedEvent(state.RequestID, state.SessionID, string(res.agent), res.err.Error(), timedOut))
		} else {
			m.publish(events.NewAgentCompletedEvent(state.RequestID, state.SessionID, string(res.agent), res.duration))
		}
		if err := state.RecordAgentResult(res.agent, res.output, res.err); err != nil {
			return err
		}
	}

	if !state.BarrierSatisfied() {
		return core.ErrState(core.CodeInvalidState, "agent barrier not satisfied after join")
	}
	return nil
}
