// Package events defines the wire records carried by the broadcast bus and
// the client-visible event frames fanned out to WebSocket sessions.
package events

import (
	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
)

// Event type tags. The set is closed: decoders treat anything else as a
// protocol error rather than passing it through.
const (
	TypeRoomJoined = "room_joined"
	TypeHistory    = "history"
	TypeNewMessage = "new_message"
	TypeUserJoined = "user_joined"
	TypeUserLeft   = "user_left"
	TypeTyping     = "typing"
	TypeError      = "error"
)

// Event is a client-visible frame. One struct covers every variant; the
// Type tag says which of the optional fields are meaningful.
type Event struct {
	Type      string         `json:"type"`
	RoomID    string         `json:"room_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	UserCount int64          `json:"user_count,omitempty"`
	IsNewRoom bool           `json:"is_new_room,omitempty"`
	IsTyping  bool           `json:"is_typing,omitempty"`
	Message   *chat.Message  `json:"message,omitempty"`
	Messages  []chat.Message `json:"messages,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Envelope is the bus wire record. It is never persisted and never sent to
// clients as-is: the origin socket id exists purely so a subscriber can drop
// events it caused itself.
type Envelope struct {
	OriginSocketID string `json:"origin_socket_id"`
	Event          Event  `json:"event"`
}

// RoomJoined confirms a successful join to the joining session only.
func RoomJoined(roomID string, userCount int64, isNew bool) Event {
	return Event{Type: TypeRoomJoined, RoomID: roomID, UserCount: userCount, IsNewRoom: isNew}
}

// History carries the recent messages of a room, newest last.
func History(roomID string, messages []chat.Message) Event {
	return Event{Type: TypeHistory, RoomID: roomID, Messages: messages}
}

// NewMessage carries one persisted message. The embedded record is the one
// returned by the message store, so every recipient observes the same
// id and timestamp.
func NewMessage(msg *chat.Message) Event {
	return Event{Type: TypeNewMessage, RoomID: msg.RoomID, Message: msg}
}

// UserJoined announces a new room member.
func UserJoined(roomID, username string) Event {
	return Event{Type: TypeUserJoined, RoomID: roomID, Username: username}
}

// UserLeft announces a departed room member.
func UserLeft(roomID, username string) Event {
	return Event{Type: TypeUserLeft, RoomID: roomID, Username: username}
}

// Typing relays a typing indicator; it is broadcast but never persisted.
func Typing(roomID, username string, isTyping bool) Event {
	return Event{Type: TypeTyping, RoomID: roomID, Username: username, IsTyping: isTyping}
}

// ErrorEvent reports a rejected action to one session. Messages are stable
// and never leak internal identifiers.
func ErrorEvent(message string) Event {
	return Event{Type: TypeError, Error: message}
}
