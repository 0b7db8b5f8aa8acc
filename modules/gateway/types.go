package gateway

import (
	"encoding/json"
	"errors"
)

// Inbound frame types. The set is closed; anything else is a protocol
// error that terminates the connection.
const (
	frameJoin     = "join"
	frameMessage  = "message"
	frameLocation = "location"
	frameTyping   = "typing"
)

// Validation limits, matching what the message store accepts.
const maxMessageLength = 5000

var (
	// ErrProtocol marks a malformed or unknown inbound frame. Terminal:
	// format drift between client and server must be observable, not
	// silently inert.
	ErrProtocol = errors.New("protocol error")
	// ErrAuthFailed marks a rejected credential. Terminal for the attempt.
	ErrAuthFailed = errors.New("authentication failed")
	// errSubscriptionLost marks a bus subscription closed underneath a
	// joined session.
	errSubscriptionLost = errors.New("bus subscription closed")
)

// Frame is the inbound wire shape: a type tag plus a type-specific payload.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload opens a session. Exactly one addressing form is used: an
// explicit room id, or a coordinate pair (hex-discretized when Resolution
// is set).
type JoinPayload struct {
	Token      string   `json:"token"`
	RoomID     string   `json:"room_id,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	Resolution int      `json:"resolution,omitempty"`
}

// MessagePayload carries one chat message.
type MessagePayload struct {
	Content string `json:"content"`
}

// LocationPayload moves the session to wherever the client now is.
type LocationPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TypingPayload relays a typing indicator.
type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// Stable client-facing error messages. These never leak internal
// identifiers or storage details.
const (
	msgAuthFailed        = "authentication failed"
	msgMalformedFrame    = "malformed frame"
	msgUnknownFrameType  = "unknown frame type"
	msgAlreadyJoined     = "already joined"
	msgInvalidCoordinate = "invalid coordinates"
	msgUnsupportedRes    = "unsupported resolution"
	msgInvalidRoom       = "invalid room id"
	msgEmptyMessage      = "message is empty"
	msgMessageTooLong    = "message too long"
	msgRateLimited       = "rate limit exceeded"
	msgPersistFailed     = "failed to save message"
	msgBusDegraded       = "realtime delivery degraded"
	msgRoomUnavailable   = "room unavailable"
)
