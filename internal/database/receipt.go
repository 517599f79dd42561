package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/models"
)

func (d *Database) HasReadReceipt(ctx context.Context, messageID, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.ReadReceipt{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) InsertReadReceipt(ctx context.Context, messageID, userID uuid.UUID) error {
	return d.db.WithContext(ctx).Create(&models.ReadReceipt{
		MessageID: messageID,
		UserID:    userID,
	}).Error
}
