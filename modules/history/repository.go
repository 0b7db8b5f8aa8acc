// Package history is the append-only message store. A message exists here
// before it is ever broadcast; the id and timestamp it assigns are the ones
// every recipient sees.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
)

var (
	// ErrMessageNotFound is returned when a message id has no row.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotMessageOwner is returned when a caller edits someone else's message.
	ErrNotMessageOwner = errors.New("not the message owner")
)

// DefaultHistoryLimit is the number of messages pushed on join.
const DefaultHistoryLimit = 50

// Repository provides access to message storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new message repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert persists a new message, assigning its id and timestamp, and returns
// the persisted record.
func (r *Repository) Insert(ctx context.Context, roomID, userID, username, content string) (*chat.Message, error) {
	row := StoredMessage{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		UserID:    userID,
		Username:  username,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return row.toDomain(), nil
}

// ListRecent returns the last limit messages of a room ordered newest last.
func (r *Repository) ListRecent(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var rows []StoredMessage
	err := r.db.WithContext(ctx).
		Preload("Reactions").
		Where("room_id = ? AND deleted = ?", roomID, false).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	// Rows come newest first; reverse so callers get newest last.
	messages := make([]chat.Message, len(rows))
	for i := range rows {
		messages[len(rows)-1-i] = *rows[i].toDomain()
	}
	return messages, nil
}

// Get returns a single message by id.
func (r *Repository) Get(ctx context.Context, messageID string) (*chat.Message, error) {
	var row StoredMessage
	err := r.db.WithContext(ctx).Preload("Reactions").First(&row, "id = ?", messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return row.toDomain(), nil
}

// Edit replaces the content of the caller's own message and stamps edited_at.
func (r *Repository) Edit(ctx context.Context, messageID, userID, content string) (*chat.Message, error) {
	row, err := r.ownedRow(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]any{"content": content, "edited_at": now}
	if err := r.db.WithContext(ctx).Model(row).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}
	return r.Get(ctx, messageID)
}

// MarkDeleted tombstones the caller's own message. The row stays so history
// offsets remain stable; listing filters it out.
func (r *Repository) MarkDeleted(ctx context.Context, messageID, userID string) error {
	row, err := r.ownedRow(ctx, messageID, userID)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Model(row).Update("deleted", true).Error; err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// AddReaction records one emoji reaction; repeating the same reaction is a
// no-op thanks to the unique index.
func (r *Repository) AddReaction(ctx context.Context, messageID, userID, emoji string) error {
	if _, err := r.Get(ctx, messageID); err != nil {
		return err
	}
	reaction := StoredReaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	err := r.db.WithContext(ctx).
		Where(StoredReaction{MessageID: messageID, UserID: userID, Emoji: emoji}).
		FirstOrCreate(&reaction).Error
	if err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}

// RemoveReaction deletes one emoji reaction.
func (r *Repository) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&StoredReaction{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", err)
	}
	return nil
}

func (r *Repository) ownedRow(ctx context.Context, messageID, userID string) (*StoredMessage, error) {
	var row StoredMessage
	err := r.db.WithContext(ctx).First(&row, "id = ?", messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if row.UserID != userID {
		return nil, ErrNotMessageOwner
	}
	return &row, nil
}
