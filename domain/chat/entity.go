package chat

import "time"

// Room represents a location-bound chat room.
type Room struct {
	ID          string    `json:"id"`
	LocationKey string    `json:"location_key"`
	CreatedAt   time.Time `json:"created_at"`
	UserCount   int64     `json:"user_count"`
}

// Message represents a persisted chat message.
type Message struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room_id"`
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Deleted   bool       `json:"deleted,omitempty"`
	Reactions []Reaction `json:"reactions,omitempty"`
}

// Reaction is a single emoji reaction on a message.
type Reaction struct {
	UserID string `json:"user_id"`
	Emoji  string `json:"emoji"`
}

// User represents an authenticated connection identity.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	RoomID   string `json:"room_id,omitempty"`
}
