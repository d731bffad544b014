// Package bus implements the durable background queue the node core
// publishes eval_tags and power-toggle signals to, backed by NATS
// JetStream.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nats-io/nats.go"

	"rackd/internal/node"
)

// Bus wraps a NATS JetStream connection for publishing and consuming
// node signals. It implements node.BackgroundQueue.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext

	subjectPrefix string
}

// New creates a Bus connected to the provided NATS endpoint. subjects
// published to this bus are namespaced under subjectPrefix (e.g.
// "rackd.signals").
func New(url, subjectPrefix string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Bus{conn: nc, js: js, subjectPrefix: subjectPrefix}, nil
}

// Close shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish satisfies node.BackgroundQueue: it delivers message to
// recipient at-least-once, without ordering guarantees across
// recipients. The node id is folded into the subject so a worker can
// filter to the node it owns; message ordering per recipient is not
// guaranteed either, matching the core's contract.
func (b *Bus) Publish(ctx context.Context, recipient string, message map[string]any) error {
	if b == nil {
		return errors.New("nil bus")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	subj := b.subject(recipient)
	_, err = b.js.Publish(subj, data, nats.Context(ctx))
	return err
}

func (b *Bus) subject(recipient string) string {
	return fmt.Sprintf("%s.%s", b.subjectPrefix, recipient)
}

type subscription struct {
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Drain()
}

// Signal is a decoded node signal as delivered to a worker handler.
type Signal struct {
	Recipient string
	Message   map[string]any
}

// Subscribe creates a durable consumer across every recipient subject
// under this bus's prefix and invokes fn for each decoded signal. fn
// returning an error naks the message; the worker decides retry policy.
func (b *Bus) Subscribe(ctx context.Context, durable string, fn func(ctx context.Context, sig Signal) error) (io.Closer, error) {
	if b == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	handler := func(msg *nats.Msg) {
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var payload map[string]any
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			_ = msg.Nak()
			return
		}

		sig := Signal{Recipient: recipientFromSubject(msg.Subject, b.subjectPrefix), Message: payload}
		if err := fn(handlerCtx, sig); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}

	sub, err := b.js.Subscribe(b.subjectPrefix+".*", handler, nats.Durable(durable), nats.ManualAck(), nats.AckExplicit())
	if err != nil {
		return nil, err
	}

	s := &subscription{sub: sub}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}

func recipientFromSubject(subject, prefix string) string {
	if len(subject) > len(prefix)+1 {
		return subject[len(prefix)+1:]
	}
	return subject
}

var _ node.BackgroundQueue = (*Bus)(nil)
