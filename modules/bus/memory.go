package bus

import (
	"context"
	"sync"

	"github.com/hodanmillion/TapIn2025-sub000/events"
)

// MemoryBus implements Bus with in-process channels. It backs unit tests;
// production runs use NATSBus so fan-out crosses engine instances.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySubscription]struct{}
}

// NewMemoryBus creates an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]map[*memorySubscription]struct{})}
}

// Publish delivers the envelope to every current subscriber of the room.
func (b *MemoryBus) Publish(_ context.Context, roomID string, env events.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.topics[roomID] {
		select {
		case sub.ch <- env:
		default:
			// Slow consumer: drop, same as the NATS path.
		}
	}
	return nil
}

// Subscribe opens a subscription on the room.
func (b *MemoryBus) Subscribe(roomID string) (Subscription, error) {
	sub := &memorySubscription{
		bus:    b,
		roomID: roomID,
		ch:     make(chan events.Envelope, subscriptionBuffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics[roomID] == nil {
		b.topics[roomID] = make(map[*memorySubscription]struct{})
	}
	b.topics[roomID][sub] = struct{}{}
	return sub, nil
}

type memorySubscription struct {
	bus    *MemoryBus
	roomID string
	ch     chan events.Envelope
	once   sync.Once
}

func (s *memorySubscription) Envelopes() <-chan events.Envelope {
	return s.ch
}

func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.topics[s.roomID], s)
		if len(s.bus.topics[s.roomID]) == 0 {
			delete(s.bus.topics, s.roomID)
		}
		s.bus.mu.Unlock()
		close(s.ch)
	})
	return nil
}
