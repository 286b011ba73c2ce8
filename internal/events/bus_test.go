package events

import (
	"testing"
	"time"
)

func recvTimeout(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBus_PublishDelivery(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Publish(NewWorkflowStartedEvent("req-1", "sess-1", "quarterly review deck"))

	ev := recvTimeout(t, ch)
	if ev.EventType() != TypeWorkflowStarted {
		t.Errorf("EventType() = %q, want %q", ev.EventType(), TypeWorkflowStarted)
	}
	if ev.RequestID() != "req-1" || ev.SessionID() != "sess-1" {
		t.Errorf("ids = %q/%q, want req-1/sess-1", ev.RequestID(), ev.SessionID())
	}
}

func TestBus_TypeFilter(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe(TypeAgentFailed)
	bus.Publish(NewAgentStartedEvent("req-1", "sess-1", "researcher"))
	bus.Publish(NewAgentFailedEvent("req-1", "sess-1", "visual_designer", "deadline exceeded", true))

	ev := recvTimeout(t, ch)
	failed, ok := ev.(AgentFailedEvent)
	if !ok {
		t.Fatalf("received %T, want AgentFailedEvent", ev)
	}
	if !failed.TimedOut || failed.Agent != "visual_designer" {
		t.Errorf("unexpected event payload: %+v", failed)
	}

	select {
	case ev := <-ch:
		t.Errorf("unexpected extra event %v", ev)
	default:
	}
}

func TestBus_RingBufferDropsOldest(t *testing.T) {
	bus := New(1)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Publish(NewPhaseEnteredEvent("req-1", "sess-1", "analysis", "clarification"))
	bus.Publish(NewPhaseEnteredEvent("req-1", "sess-1", "clarification", "generation"))

	ev := recvTimeout(t, ch)
	entered, ok := ev.(PhaseEnteredEvent)
	if !ok {
		t.Fatalf("received %T, want PhaseEnteredEvent", ev)
	}
	if entered.To != "generation" {
		t.Errorf("kept event To = %q, want newest (generation)", entered.To)
	}
	if bus.DroppedCount() != 1 {
		t.Errorf("DroppedCount() = %d, want 1", bus.DroppedCount())
	}
}

func TestBus_PriorityNeverDrops(t *testing.T) {
	bus := New(1)
	defer bus.Close()

	ch := bus.SubscribePriority()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.PublishPriority(NewWorkflowFailedEvent("req-1", "sess-1", "generation", "agent failure", true))
		}
		close(done)
	}()

	for i := 0; i < 5; i++ {
		recvTimeout(t, ch)
	}
	<-done
	if bus.DroppedCount() != 0 {
		t.Errorf("DroppedCount() = %d, want 0 for priority subscriber", bus.DroppedCount())
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish(NewSessionCreatedEvent("sess-1", "user-1"))
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := New(10)
	ch := bus.Subscribe()
	bus.Close()
	bus.Close()

	if _, open := <-ch; open {
		t.Error("channel still open after Close")
	}
	bus.Publish(NewSessionClosedEvent("sess-1", "expired"))
}
