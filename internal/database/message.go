package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tripwell/backoffice/internal/chat"
	"github.com/tripwell/backoffice/internal/models"
)

const defaultMessagesPageSize = 50

func (d *Database) InsertMessage(ctx context.Context, msg *models.Message) error {
	return d.db.WithContext(ctx).Create(msg).Error
}

func (d *Database) GetMessageByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := d.db.WithContext(ctx).
		Preload("Attachments").
		First(&msg, "id = ?", messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", messageID, chat.ErrNotFound)
		}
		return nil, err
	}
	return &msg, nil
}

// GetMessages pages a room's messages on created_at, newest page first,
// returned oldest-first within the page.
func (d *Database) GetMessages(ctx context.Context, roomID uuid.UUID, q models.MessageQuery) ([]models.Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultMessagesPageSize
	}

	query := d.db.WithContext(ctx).Where("room_id = ?", roomID)
	if q.Before != nil {
		query = query.Where("created_at < ?", *q.Before)
	}

	var messages []models.Message
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Preload("Sender").
		Preload("Attachments").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkMessageRead sets the denormalized is_read flag. It means "at least
// one receipt exists", not "everyone has read it".
func (d *Database) MarkMessageRead(ctx context.Context, messageID uuid.UUID) error {
	return d.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("is_read", true).Error
}

// MarkAllSenderMessagesRead flips is_read on every unread message authored
// by senderID in the room in one update and reports how many were flipped.
func (d *Database) MarkAllSenderMessagesRead(ctx context.Context, roomID, senderID uuid.UUID) (int64, error) {
	res := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("room_id = ? AND sender_id = ? AND is_read = ?", roomID, senderID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (d *Database) UnreadCount(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("room_id = ? AND sender_id <> ? AND is_read = ?", roomID, userID, false).
		Count(&count).Error
	return count, err
}

// TotalUnread sums unread counts across every room the user participates in.
func (d *Database) TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Joins("JOIN participants ON participants.room_id = messages.room_id").
		Joins("JOIN rooms ON rooms.id = messages.room_id").
		Where("participants.user_id = ? AND rooms.active = ?", userID, true).
		Where("messages.sender_id <> ? AND messages.is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
