package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSQueue publishes on a core NATS subject. Every subscriber receives
// every message, so several API replicas can fan out the same notification.
type NATSQueue struct {
	nc      *nats.Conn
	subject string
}

// NewNATSQueue connects to NATS and retries in the background if the server
// is not up yet.
func NewNATSQueue(url, subject string) (*NATSQueue, error) {
	if subject == "" {
		subject = "console.notifications"
	}
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSQueue{nc: nc, subject: subject}, nil
}

// Publish sends a message on the subject.
func (q *NATSQueue) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return q.nc.Publish(q.subject, data)
}

// Consume subscribes to the subject until ctx ends.
func (q *NATSQueue) Consume(ctx context.Context) (<-chan Message, error) {
	in := make(chan *nats.Msg, 64)
	sub, err := q.nc.ChanSubscribe(q.subject, in)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", q.subject, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case m := <-in:
				msg, err := decode(m.Data)
				if err != nil {
					slog.Warn("dropping malformed message", "subject", q.subject, "error", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Ping reports whether the connection is up.
func (q *NATSQueue) Ping(ctx context.Context) error {
	if !q.nc.IsConnected() {
		return fmt.Errorf("nats: %s", q.nc.Status())
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (q *NATSQueue) Close() error {
	return q.nc.Drain()
}
