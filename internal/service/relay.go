package service

import (
	"context"
	"encoding/json"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/events"
	"github.com/slidewise/deckd/internal/logging"
)

// Relay forwards in-process workflow events to the external broker so
// other instances and observers can follow session progress. Channels are
// keyed by session id; events without a session go to a firehose channel.
type Relay struct {
	bus       *events.Bus
	publisher core.Publisher
	log       *logging.Logger
	retry     *RetryPolicy

	ch <-chan events.Event
}

// FirehoseChannel receives every event that carries no session id.
const FirehoseChannel = "all"

// NewRelay wires the bus to the publisher. Call Start to begin
// forwarding and Stop to detach.
func NewRelay(bus *events.Bus, publisher core.Publisher, log *logging.Logger) *Relay {
	return &Relay{
		bus:       bus,
		publisher: publisher,
		log:       log,
		retry:     PublishRetryPolicy(),
	}
}

// Start subscribes to all bus events and forwards them until Stop.
func (r *Relay) Start(ctx context.Context) {
	r.ch = r.bus.Subscribe()
	go r.pump(ctx, r.ch)
}

// Stop detaches from the bus. In-flight publishes finish on their own.
func (r *Relay) Stop() {
	if r.ch != nil {
		r.bus.Unsubscribe(r.ch)
		r.ch = nil
	}
}

func (r *Relay) pump(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			r.forward(ctx, ev)
		}
	}
}

func (r *Relay) forward(ctx context.Context, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Warn("event not serializable", "event_type", ev.EventType(), "error", err.Error())
		return
	}
	channel := ev.SessionID()
	if channel == "" {
		channel = FirehoseChannel
	}
	err = r.retry.Execute(ctx, func(ctx context.Context) error {
		return r.publisher.Publish(ctx, channel, payload)
	})
	if err != nil {
		// Dropped progress events are tolerable; the workflow state is
		// still authoritative.
		r.log.Warn("event publish failed",
			"event_type", ev.EventType(), "channel", channel, "error", err.Error())
	}
}
