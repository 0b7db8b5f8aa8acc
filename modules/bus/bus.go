// Package bus is the topic-per-room publish/subscribe adapter. Delivery is
// best-effort: an envelope published while a subscription is being torn down
// or re-established may never reach that subscriber. Durability lives in the
// message store, never here.
package bus

import (
	"context"
	"errors"

	"github.com/hodanmillion/TapIn2025-sub000/events"
)

// ErrBusUnavailable is returned when the transport is not connected.
var ErrBusUnavailable = errors.New("broadcast bus unavailable")

// Bus fans envelopes out to every current subscriber of a room, across all
// engine instances sharing the transport.
type Bus interface {
	// Publish sends an envelope to the room's topic.
	Publish(ctx context.Context, roomID string, env events.Envelope) error
	// Subscribe opens a subscription on the room's topic. The caller owns
	// the handle and must release it with Unsubscribe.
	Subscribe(roomID string) (Subscription, error)
}

// Subscription is one listener's handle on a room topic.
type Subscription interface {
	// Envelopes is the delivery channel. It is closed by Unsubscribe.
	Envelopes() <-chan events.Envelope
	// Unsubscribe releases the subscription. Safe to call more than once.
	Unsubscribe() error
}

// TopicForRoom derives the pub/sub topic for a room id.
func TopicForRoom(roomID string) string {
	return "room:" + roomID
}
