package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidewise/deckd/internal/adapters/pubsub"
	"github.com/slidewise/deckd/internal/events"
	"github.com/slidewise/deckd/internal/logging"
)

func TestRelayForwardsToSessionChannel(t *testing.T) {
	bus := events.New(10)
	defer bus.Close()
	broker := pubsub.NewMemoryBroker()
	defer broker.Close()

	var mu sync.Mutex
	var received [][]byte
	_, err := broker.Subscribe(context.Background(), "sess-1", func(payload []byte) {
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
	})
	require.NoError(t, err)

	relay := NewRelay(bus, broker, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay.Start(ctx)
	defer relay.Stop()

	bus.Publish(events.NewWorkflowStartedEvent("req-1", "sess-1", "build a deck"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	var decoded map[string]interface{}
	mu.Lock()
	require.NoError(t, json.Unmarshal(received[0], &decoded))
	mu.Unlock()
	assert.Equal(t, "workflow_started", decoded["type"])
	assert.Equal(t, "req-1", decoded["request_id"])
}

func TestRelaySessionlessEventsGoToFirehose(t *testing.T) {
	bus := events.New(10)
	defer bus.Close()
	broker := pubsub.NewMemoryBroker()
	defer broker.Close()

	got := make(chan []byte, 1)
	_, err := broker.Subscribe(context.Background(), FirehoseChannel, func(payload []byte) {
		got <- payload
	})
	require.NoError(t, err)

	relay := NewRelay(bus, broker, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay.Start(ctx)
	defer relay.Stop()

	bus.Publish(events.NewSessionClosedEvent("", "shutdown"))

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("firehose event not delivered")
	}
}
