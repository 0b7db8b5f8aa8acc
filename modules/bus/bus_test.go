package bus

import (
	"context"
	"testing"
	"time"

	"github.com/hodanmillion/TapIn2025-sub000/events"
)

func recvEnvelope(t *testing.T, sub Subscription) events.Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.Envelopes():
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
	return events.Envelope{}
}

func TestMemoryBus_PublishReachesSubscribers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	sub1, err := b.Subscribe("room1")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer sub1.Unsubscribe()
	sub2, err := b.Subscribe("room1")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer sub2.Unsubscribe()

	env := events.Envelope{OriginSocketID: "s1", Event: events.UserJoined("room1", "alice")}
	if err := b.Publish(ctx, "room1", env); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	for _, sub := range []Subscription{sub1, sub2} {
		got := recvEnvelope(t, sub)
		if got.OriginSocketID != "s1" {
			t.Errorf("envelope origin = %q, want s1", got.OriginSocketID)
		}
		if got.Event.Type != events.TypeUserJoined {
			t.Errorf("event type = %q, want %q", got.Event.Type, events.TypeUserJoined)
		}
	}
}

func TestMemoryBus_TopicIsolation(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	other, err := b.Subscribe("room2")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer other.Unsubscribe()

	if err := b.Publish(ctx, "room1", events.Envelope{OriginSocketID: "s1"}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	select {
	case env := <-other.Envelopes():
		t.Errorf("room2 subscriber received envelope for room1: %+v", env)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_PublishWithoutSubscribers(t *testing.T) {
	b := NewMemoryBus()
	if err := b.Publish(context.Background(), "empty-room", events.Envelope{}); err != nil {
		t.Errorf("Publish() to empty topic error = %v, want nil", err)
	}
}

func TestMemoryBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe("room1")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error: %v", err)
	}
	// Idempotent.
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second Unsubscribe() error: %v", err)
	}

	if _, ok := <-sub.Envelopes(); ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Publish after unsubscribe must not panic or deliver.
	if err := b.Publish(context.Background(), "room1", events.Envelope{}); err != nil {
		t.Errorf("Publish() after unsubscribe error: %v", err)
	}
}

func TestNATSBus_UnavailableWithoutConnection(t *testing.T) {
	b := NewNATSBus()

	if err := b.Publish(context.Background(), "room1", events.Envelope{}); err != ErrBusUnavailable {
		t.Errorf("Publish() error = %v, want %v", err, ErrBusUnavailable)
	}
	if _, err := b.Subscribe("room1"); err != ErrBusUnavailable {
		t.Errorf("Subscribe() error = %v, want %v", err, ErrBusUnavailable)
	}
}

func TestTopicForRoom(t *testing.T) {
	if got := TopicForRoom("40.7589_-73.9851"); got != "room:40.7589_-73.9851" {
		t.Errorf("TopicForRoom() = %q", got)
	}
}
