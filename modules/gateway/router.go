package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
	"github.com/hodanmillion/TapIn2025-sub000/events"
	"github.com/hodanmillion/TapIn2025-sub000/modules/hexgrid"
)

// handleFrame decodes one inbound frame from a joined session and
// dispatches it. A nil return keeps the connection alive; ErrProtocol
// terminates it.
func (g *Gateway) handleFrame(ctx context.Context, s *Session, data []byte) error {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.enqueue(events.ErrorEvent(msgMalformedFrame))
		return ErrProtocol
	}

	switch frame.Type {
	case frameMessage:
		return g.handleChatMessage(ctx, s, frame.Payload)
	case frameLocation:
		return g.handleLocationUpdate(ctx, s, frame.Payload)
	case frameTyping:
		return g.handleTyping(ctx, s, frame.Payload)
	case frameJoin:
		// Join is only valid during the handshake; rooms move via
		// location updates afterwards.
		s.enqueue(events.ErrorEvent(msgAlreadyJoined))
		return nil
	default:
		s.enqueue(events.ErrorEvent(msgUnknownFrameType))
		return ErrProtocol
	}
}

// handleChatMessage persists a message and then publishes it. Publish never
// happens before the store confirms persistence, and a persistence failure
// is reported to the sender only.
func (g *Gateway) handleChatMessage(ctx context.Context, s *Session, payload json.RawMessage) error {
	var p MessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.enqueue(events.ErrorEvent(msgMalformedFrame))
		return ErrProtocol
	}

	if !s.limiter.allow() {
		s.enqueue(events.ErrorEvent(msgRateLimited))
		return nil
	}

	content := strings.TrimSpace(p.Content)
	if content == "" {
		s.enqueue(events.ErrorEvent(msgEmptyMessage))
		return nil
	}
	if len(content) > maxMessageLength {
		s.enqueue(events.ErrorEvent(msgMessageTooLong))
		return nil
	}

	roomID := s.currentRoom()
	msg, err := g.store.Insert(ctx, roomID, s.identity.UserID, s.identity.Username, content)
	if err != nil {
		g.logger.Error("Message persist failed", "socketID", s.socketID, "roomID", roomID, "error", err)
		s.enqueue(events.ErrorEvent(msgPersistFailed))
		return nil
	}

	ev := events.NewMessage(msg)
	if err := g.bus.Publish(ctx, roomID, events.Envelope{OriginSocketID: s.socketID, Event: ev}); err != nil {
		g.logger.Error("Message publish failed", "socketID", s.socketID, "roomID", roomID, "error", err)
		s.enqueue(events.ErrorEvent(msgBusDegraded))
	}

	// The sender's copy: its own bus subscription suppresses the
	// broadcast, so the persisted record is returned directly.
	s.enqueue(ev)
	return nil
}

// handleLocationUpdate re-homes the session when the client's position maps
// to a different room. It runs on the reader goroutine, so no later inbound
// frame can be attributed to the old room once the switch starts.
func (g *Gateway) handleLocationUpdate(ctx context.Context, s *Session, payload json.RawMessage) error {
	var p LocationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.enqueue(events.ErrorEvent(msgMalformedFrame))
		return ErrProtocol
	}

	var key chat.LocationKey
	if res := s.hexResolution(); res > 0 {
		cellID, err := hexgrid.CellFor(p.Lat, p.Lon, res)
		if err != nil {
			s.enqueue(events.ErrorEvent(msgInvalidCoordinate))
			return nil
		}
		key = chat.HexCell{ID: cellID, Resolution: res}
	} else {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			s.enqueue(events.ErrorEvent(msgInvalidCoordinate))
			return nil
		}
		key = chat.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}

	oldRoom := s.currentRoom()
	if key.RoomID() == oldRoom {
		// Still inside the same room; nothing to do.
		return nil
	}

	// Enter the new room first so there is no window with no room at all,
	// then release the old one.
	if err := s.enterRoom(ctx, key); err != nil {
		g.logger.Error("Room switch failed", "socketID", s.socketID, "error", err)
		s.enqueue(events.ErrorEvent(msgRoomUnavailable))
		return nil
	}

	if _, err := g.directory.Leave(ctx, oldRoom); err != nil {
		g.logger.Error("Room leave failed", "socketID", s.socketID, "roomID", oldRoom, "error", err)
	}
	s.publish(ctx, oldRoom, events.UserLeft(oldRoom, s.identity.Username))
	return nil
}

// handleTyping relays a typing indicator to the room. Never persisted.
func (g *Gateway) handleTyping(ctx context.Context, s *Session, payload json.RawMessage) error {
	var p TypingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.enqueue(events.ErrorEvent(msgMalformedFrame))
		return ErrProtocol
	}

	roomID := s.currentRoom()
	ev := events.Typing(roomID, s.identity.Username, p.IsTyping)
	if err := g.bus.Publish(ctx, roomID, events.Envelope{OriginSocketID: s.socketID, Event: ev}); err != nil {
		g.logger.Error("Typing publish failed", "socketID", s.socketID, "roomID", roomID, "error", err)
		s.enqueue(events.ErrorEvent(msgBusDegraded))
	}
	return nil
}
