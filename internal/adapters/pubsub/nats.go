package pubsub

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/slidewise/deckd/internal/core"
)

// NATSBroker publishes progress over NATS core subjects. Channels map to
// subjects under a configured prefix: "<prefix>.<channel>".
type NATSBroker struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSBroker connects to the given NATS URL.
func NewNATSBroker(url, subjectPrefix string) (*NATSBroker, error) {
	conn, err := nats.Connect(url,
		nats.Name("deckd"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, core.ErrNetwork("connecting to nats").WithCause(err)
	}
	if subjectPrefix == "" {
		subjectPrefix = "deckd"
	}
	return &NATSBroker{conn: conn, prefix: subjectPrefix}, nil
}

func (b *NATSBroker) subject(channel string) string {
	return fmt.Sprintf("%s.%s", b.prefix, channel)
}

// Publish implements core.Publisher.
func (b *NATSBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.conn.Publish(b.subject(channel), payload); err != nil {
		return core.ErrNetwork("publishing to nats").WithCause(err)
	}
	return nil
}

// Subscribe implements core.Subscriber.
func (b *NATSBroker) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (func(), error) {
	sub, err := b.conn.Subscribe(b.subject(channel), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, core.ErrNetwork("subscribing to nats").WithCause(err)
	}
	cancel := func() { _ = sub.Unsubscribe() }
	return cancel, nil
}

// Close drains the connection, letting in-flight messages deliver.
func (b *NATSBroker) Close() error {
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Drain()
}
