package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/models"
)

func (d *Database) IsParticipant(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddParticipant inserts a membership row. Joining an already-joined room
// is a no-op, which keeps the (room, user) pair unique.
func (d *Database) AddParticipant(ctx context.Context, roomID, userID uuid.UUID, role string) error {
	exists, err := d.IsParticipant(ctx, userID, roomID)
	if err != nil || exists {
		return err
	}
	if role == "" {
		role = models.RoleMember
	}
	return d.db.WithContext(ctx).Create(&models.Participant{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
	}).Error
}

func (d *Database) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	return d.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.Participant{}).Error
}

func (d *Database) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.ParticipantInfo, error) {
	var participants []models.Participant
	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Preload("User").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	infos := make([]models.ParticipantInfo, len(participants))
	for i, p := range participants {
		infos[i] = models.ParticipantInfo{
			ID:     p.UserID,
			Name:   p.User.Name,
			Role:   p.Role,
			Online: p.Online,
		}
	}
	return infos, nil
}
