package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
	"github.com/hodanmillion/TapIn2025-sub000/events"
	"github.com/hodanmillion/TapIn2025-sub000/modules/auth"
	"github.com/hodanmillion/TapIn2025-sub000/modules/bus"
	"github.com/hodanmillion/TapIn2025-sub000/modules/hexgrid"
)

// State is the connection lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateJoined
	StateClosing
	StateClosed
)

// outboundQueueSize bounds frames waiting for the writer. Producers that
// find it full drop their frame; a slow client must not stall the room.
const outboundQueueSize = 256

// flushDelay is how long the watchdog waits after cancellation before
// closing the socket, giving the writer a window to flush queued frames.
const flushDelay = 100 * time.Millisecond

// Session supervises one client connection. Exactly one reader, one writer
// and one bus-listener run while the session is joined; the outbound queue
// is the only structure shared between them.
type Session struct {
	socketID string
	conn     wsConn
	gw       *Gateway
	identity auth.Identity
	limiter  *rateLimiter
	out      chan events.Event
	cancel   context.CancelFunc

	mu         sync.Mutex
	state      State
	roomID     string
	resolution int // >0 when the session addresses rooms by hex cell
	sub        bus.Subscription

	closeOnce sync.Once
}

func newSession(g *Gateway, conn wsConn) *Session {
	return &Session{
		socketID: uuid.New().String(),
		conn:     conn,
		gw:       g,
		limiter:  newRateLimiter(burstSize, messagesPerSecond),
		out:      make(chan events.Event, outboundQueueSize),
		state:    StateConnecting,
	}
}

// SocketID returns the process-unique connection identifier.
func (s *Session) SocketID() string { return s.socketID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) currentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) currentSub() bus.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

func (s *Session) hexResolution() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolution
}

// Close tears the session down from outside (e.g. module shutdown).
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	} else {
		s.conn.Close()
	}
}

// handshake drives Connecting -> Authenticating -> Joined. Caller errors in
// room resolution are reported and the client may retry within the deadline;
// credential and protocol failures are terminal.
func (s *Session) handshake(ctx context.Context) error {
	s.setState(StateAuthenticating)
	if err := s.conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != frameJoin {
			s.writeDirect(events.ErrorEvent(msgMalformedFrame))
			return ErrProtocol
		}
		var join JoinPayload
		if err := json.Unmarshal(frame.Payload, &join); err != nil {
			s.writeDirect(events.ErrorEvent(msgMalformedFrame))
			return ErrProtocol
		}

		identity, err := s.gw.auth.Validate(join.Token)
		if err != nil {
			s.writeDirect(events.ErrorEvent(msgAuthFailed))
			return ErrAuthFailed
		}
		s.identity = identity

		key, errMsg := locationKeyFromJoin(join)
		if errMsg != "" {
			// Caller error: report and let the client retry with
			// corrected input.
			s.writeDirect(events.ErrorEvent(errMsg))
			continue
		}

		if err := s.enterRoom(ctx, key); err != nil {
			s.writeDirect(events.ErrorEvent(msgRoomUnavailable))
			continue
		}

		s.setState(StateJoined)
		return s.conn.SetReadDeadline(time.Time{})
	}
}

// locationKeyFromJoin validates the addressing form of a join payload and
// returns either the location key or a stable client-facing error message.
func locationKeyFromJoin(join JoinPayload) (chat.LocationKey, string) {
	if join.RoomID != "" {
		key, err := chat.ParseLocationKey(join.RoomID)
		if err != nil {
			return nil, msgInvalidRoom
		}
		switch k := key.(type) {
		case chat.Coordinate:
			if k.Lat < -90 || k.Lat > 90 || k.Lon < -180 || k.Lon > 180 {
				return nil, msgInvalidCoordinate
			}
			return k, ""
		case chat.HexCell:
			res, err := hexgrid.ResolutionOf(k.ID)
			if err == hexgrid.ErrUnsupportedResolution {
				return nil, msgUnsupportedRes
			}
			if err != nil {
				return nil, msgInvalidRoom
			}
			return chat.HexCell{ID: k.ID, Resolution: res}, ""
		}
		return nil, msgInvalidRoom
	}

	if join.Lat == nil || join.Lon == nil {
		return nil, msgInvalidCoordinate
	}
	lat, lon := *join.Lat, *join.Lon

	if join.Resolution != 0 {
		cellID, err := hexgrid.CellFor(lat, lon, join.Resolution)
		switch err {
		case nil:
			return chat.HexCell{ID: cellID, Resolution: join.Resolution}, ""
		case hexgrid.ErrUnsupportedResolution:
			return nil, msgUnsupportedRes
		default:
			return nil, msgInvalidCoordinate
		}
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, msgInvalidCoordinate
	}
	return chat.Coordinate{Lat: lat, Lon: lon}, ""
}

// enterRoom resolves a location key, subscribes to the room topic, joins the
// counter and pushes the joined response plus recent history. On a room
// switch the caller releases the previous room afterwards.
func (s *Session) enterRoom(ctx context.Context, key chat.LocationKey) error {
	info, err := s.gw.directory.ResolveOrCreate(ctx, key)
	if err != nil {
		return err
	}
	roomID := info.Room.ID

	sub, subErr := s.gw.bus.Subscribe(roomID)
	if subErr != nil {
		// Degraded mode: history and persistence still work, realtime
		// delivery is impaired. Surfaced, never swallowed.
		s.gw.logger.Error("Bus subscribe failed", "socketID", s.socketID, "roomID", roomID, "error", subErr)
		sub = nil
	}

	count, err := s.gw.directory.Join(ctx, roomID)
	if err != nil {
		if sub != nil {
			_ = sub.Unsubscribe()
		}
		return err
	}

	resolution := 0
	if hex, ok := key.(chat.HexCell); ok {
		resolution = hex.Resolution
	}

	s.mu.Lock()
	s.roomID = roomID
	s.resolution = resolution
	oldSub := s.sub
	s.sub = sub
	s.mu.Unlock()
	if oldSub != nil {
		_ = oldSub.Unsubscribe()
	}

	s.enqueue(events.RoomJoined(roomID, count, info.IsNew))

	messages, err := s.gw.store.ListRecent(ctx, roomID, 0)
	if err != nil {
		s.gw.logger.Error("History fetch failed", "roomID", roomID, "error", err)
	} else {
		s.enqueue(events.History(roomID, messages))
	}

	s.publish(ctx, roomID, events.UserJoined(roomID, s.identity.Username))
	if subErr != nil {
		s.enqueue(events.ErrorEvent(msgBusDegraded))
	}
	return nil
}

// run starts the three supervised units and blocks until the session is
// closed. Any unit ending cancels the rest; teardown happens exactly once.
func (s *Session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.listenBus(gctx) })
	g.Go(func() error {
		// Unblocks the reader once the group is cancelled; the short
		// delay lets the writer flush queued frames first.
		<-gctx.Done()
		time.Sleep(flushDelay)
		return s.conn.Close()
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		s.gw.logger.Debug("Session ended", "socketID", s.socketID, "reason", err)
	}
	s.teardown()
}

// readLoop decodes inbound frames and dispatches them through the router.
// It always returns a non-nil error so the group cancels the other units.
func (s *Session) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.gw.logger.Error("WebSocket read error", "socketID", s.socketID, "error", err)
			}
			return err
		}
		if err := s.gw.handleFrame(ctx, s, data); err != nil {
			return err
		}
	}
}

// writeLoop is the sole writer on the socket. It drains the outbound queue
// and serializes frames; a write failure ends the connection.
func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Best-effort flush of whatever is already queued.
			for {
				select {
				case ev := <-s.out:
					if err := s.writeDirect(ev); err != nil {
						return nil
					}
				default:
					return nil
				}
			}
		case ev := <-s.out:
			if err := s.writeDirect(ev); err != nil {
				return err
			}
		}
	}
}

// listenBus consumes the room subscription and forwards envelopes that did
// not originate from this very connection.
func (s *Session) listenBus(ctx context.Context) error {
	for {
		sub := s.currentSub()
		if sub == nil {
			// Degraded mode: nothing to consume until teardown.
			<-ctx.Done()
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-sub.Envelopes():
			if !ok {
				if s.currentSub() == sub {
					// Closed underneath us rather than swapped by a
					// room switch: the room is gone, end the session.
					return errSubscriptionLost
				}
				continue
			}
			if env.OriginSocketID == s.socketID {
				// Self-origin suppression: the sender already has its
				// copy via the synchronous router response.
				continue
			}
			s.enqueue(env.Event)
		}
	}
}

// teardown releases the subscription, leaves the room and announces the
// departure. Idempotent: simultaneous close paths reach here once.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		roomID := s.roomID
		sub := s.sub
		s.roomID = ""
		s.sub = nil
		s.mu.Unlock()

		if sub != nil {
			_ = sub.Unsubscribe()
		}
		if roomID != "" {
			ctx, cancel := safeCtx()
			defer cancel()
			if _, err := s.gw.directory.Leave(ctx, roomID); err != nil {
				s.gw.logger.Error("Room leave failed", "socketID", s.socketID, "roomID", roomID, "error", err)
			}
			// Best effort: a failed departure broadcast must not block
			// reaching Closed.
			s.publish(ctx, roomID, events.UserLeft(roomID, s.identity.Username))
		}

		s.setState(StateClosed)
	})
}

// enqueue places a frame on the outbound queue, dropping it if the client
// cannot keep up.
func (s *Session) enqueue(ev events.Event) {
	select {
	case s.out <- ev:
	default:
		s.gw.logger.Debug("Outbound queue full, dropping frame", "socketID", s.socketID, "type", ev.Type)
	}
}

// publish wraps an event in this session's envelope and publishes it,
// logging (not propagating) failures.
func (s *Session) publish(ctx context.Context, roomID string, ev events.Event) {
	env := events.Envelope{OriginSocketID: s.socketID, Event: ev}
	if err := s.gw.bus.Publish(ctx, roomID, env); err != nil {
		s.gw.logger.Error("Bus publish failed", "socketID", s.socketID, "roomID", roomID, "type", ev.Type, "error", err)
	}
}

// writeDirect serializes one frame onto the socket. Only the writer loop
// and the pre-join handshake may call it.
func (s *Session) writeDirect(ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
