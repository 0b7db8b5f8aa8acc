package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/hodanmillion/TapIn2025-sub000/events"
)

// subscriptionBuffer bounds undelivered envelopes per subscriber. A slow
// consumer loses frames instead of stalling the topic.
const subscriptionBuffer = 64

// NATSBus implements Bus over core NATS subjects. Core (non-JetStream)
// pub/sub matches the contract exactly: at-most-once fan-out to whoever is
// subscribed right now.
type NATSBus struct {
	mu sync.RWMutex
	nc *nats.Conn
}

// NewNATSBus creates a bus without a connection; Connect attaches one.
func NewNATSBus() *NATSBus {
	return &NATSBus{}
}

// Connect attaches an established NATS connection.
func (b *NATSBus) Connect(nc *nats.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nc = nc
}

func (b *NATSBus) conn() *nats.Conn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nc
}

// Publish sends the envelope to the room topic. Publishing to a topic with
// no subscribers is not an error.
func (b *NATSBus) Publish(_ context.Context, roomID string, env events.Envelope) error {
	nc := b.conn()
	if nc == nil || !nc.IsConnected() {
		return ErrBusUnavailable
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := nc.Publish(TopicForRoom(roomID), data); err != nil {
		return fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}
	return nil
}

// Subscribe opens a per-connection subscription on the room topic.
func (b *NATSBus) Subscribe(roomID string) (Subscription, error) {
	nc := b.conn()
	if nc == nil || !nc.IsConnected() {
		return nil, ErrBusUnavailable
	}

	msgCh := make(chan *nats.Msg, subscriptionBuffer)
	sub, err := nc.ChanSubscribe(TopicForRoom(roomID), msgCh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}

	s := &natsSubscription{
		sub:   sub,
		msgCh: msgCh,
		envCh: make(chan events.Envelope, subscriptionBuffer),
	}
	go s.decodeLoop()
	return s, nil
}

type natsSubscription struct {
	sub   *nats.Subscription
	msgCh chan *nats.Msg
	envCh chan events.Envelope
	once  sync.Once
}

func (s *natsSubscription) decodeLoop() {
	defer close(s.envCh)
	for msg := range s.msgCh {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			// Malformed bus payloads are dropped; they cannot be
			// attributed to any session.
			continue
		}
		select {
		case s.envCh <- env:
		default:
			// Slow consumer: drop rather than stall the topic.
		}
	}
}

func (s *natsSubscription) Envelopes() <-chan events.Envelope {
	return s.envCh
}

// Unsubscribe detaches from NATS and closes the delivery channel. NATS
// guarantees no deliveries after Unsubscribe returns, so closing msgCh is
// safe here.
func (s *natsSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.sub.Unsubscribe()
		close(s.msgCh)
	})
	return err
}
