package history

import (
	"time"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
)

// StoredMessage is the GORM model for a persisted chat message.
type StoredMessage struct {
	ID        string           `gorm:"primarykey;size:36"`
	RoomID    string           `gorm:"size:128;not null;index:idx_room_time,priority:1"`
	UserID    string           `gorm:"size:36;not null"`
	Username  string           `gorm:"size:50;not null"`
	Content   string           `gorm:"size:5000;not null"`
	Timestamp time.Time        `gorm:"not null;index:idx_room_time,priority:2"`
	EditedAt  *time.Time       ``
	Deleted   bool             `gorm:"not null;default:false"`
	Reactions []StoredReaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for StoredMessage.
func (StoredMessage) TableName() string {
	return "messages"
}

// StoredReaction is the GORM model for an emoji reaction.
type StoredReaction struct {
	ID        uint   `gorm:"primarykey"`
	MessageID string `gorm:"size:36;not null;index;uniqueIndex:idx_react_once,priority:1"`
	UserID    string `gorm:"size:36;not null;uniqueIndex:idx_react_once,priority:2"`
	Emoji     string `gorm:"size:16;not null;uniqueIndex:idx_react_once,priority:3"`
}

// TableName returns the table name for StoredReaction.
func (StoredReaction) TableName() string {
	return "message_reactions"
}

// toDomain converts a stored row into the wire-level message record.
func (m *StoredMessage) toDomain() *chat.Message {
	msg := &chat.Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Username:  m.Username,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		EditedAt:  m.EditedAt,
		Deleted:   m.Deleted,
	}
	for _, r := range m.Reactions {
		msg.Reactions = append(msg.Reactions, chat.Reaction{UserID: r.UserID, Emoji: r.Emoji})
	}
	return msg
}
