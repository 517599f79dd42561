package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tripwell/backoffice/internal/chat"
	"github.com/tripwell/backoffice/internal/models"
)

const defaultRoomsPageSize = 50

// CreateRoom persists a room with its participant rows. The first id in
// participantIDs is the creator and becomes the room admin. Direct rooms
// are deduplicated: an existing active direct room between the same two
// users is returned instead of creating a second one.
func (d *Database) CreateRoom(ctx context.Context, kind string, name *string, participantIDs []uuid.UUID) (*models.Room, error) {
	if kind == models.RoomKindDirect && len(participantIDs) == 2 {
		if existing, err := d.findDirectRoom(ctx, participantIDs[0], participantIDs[1]); err != nil {
			return nil, err
		} else if existing != nil {
			return existing, nil
		}
	}

	room, err := models.NewRoom(kind, name, participantIDs)
	if err != nil {
		return nil, err
	}

	if err := d.db.WithContext(ctx).Create(room).Error; err != nil {
		return nil, err
	}

	return d.GetRoomByID(ctx, room.ID)
}

func (d *Database) findDirectRoom(ctx context.Context, user1ID, user2ID uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Joins("JOIN participants p1 ON p1.room_id = rooms.id").
		Joins("JOIN participants p2 ON p2.room_id = rooms.id").
		Where("rooms.kind = ? AND rooms.active = ? AND p1.user_id = ? AND p2.user_id = ?",
			models.RoomKindDirect, true, user1ID, user2ID).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.GetRoomByID(ctx, room.ID)
}

func (d *Database) GetRoomByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		First(&room, "id = ?", roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, chat.ErrNotFound)
		}
		return nil, err
	}
	return &room, nil
}

// GetRoom loads a room on behalf of userID. Non-participants get
// ErrForbidden without learning anything else about the room.
func (d *Database) GetRoom(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomSummary, error) {
	room, err := d.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	isMember := false
	for _, p := range room.Participants {
		if p.UserID == userID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, chat.ErrForbidden
	}

	return d.summarize(ctx, room, userID)
}

// GetRoomsForUser returns the user's rooms newest-activity-first, each with
// its last message and the user's unread count.
func (d *Database) GetRoomsForUser(ctx context.Context, userID uuid.UUID, q models.RoomQuery) ([]models.RoomSummary, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultRoomsPageSize
	}

	query := d.db.WithContext(ctx).
		Joins("JOIN participants ON participants.room_id = rooms.id").
		Where("participants.user_id = ?", userID).
		Order("rooms.updated_at DESC").
		Limit(limit).
		Offset(q.Offset).
		Preload("Participants").
		Preload("Participants.User")
	if !q.IncludeInactive {
		query = query.Where("rooms.active = ?", true)
	}

	var rooms []models.Room
	if err := query.Find(&rooms).Error; err != nil {
		return nil, err
	}

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for i := range rooms {
		summary, err := d.summarize(ctx, &rooms[i], userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (d *Database) summarize(ctx context.Context, room *models.Room, userID uuid.UUID) (*models.RoomSummary, error) {
	summary := &models.RoomSummary{
		Room:        *room,
		DisplayName: displayName(room, userID),
	}

	var last models.Message
	err := d.db.WithContext(ctx).
		Where("room_id = ?", room.ID).
		Order("created_at DESC").
		Preload("Attachments").
		First(&last).Error
	if err == nil {
		summary.LastMessage = &last
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	unread, err := d.UnreadCount(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	summary.UnreadCount = unread

	return summary, nil
}

// displayName resolves what userID should see as the room name. Direct
// rooms have no stored name; they show the counterpart's name instead.
func displayName(room *models.Room, userID uuid.UUID) string {
	if room.Name != nil && *room.Name != "" {
		return *room.Name
	}
	if room.Kind == models.RoomKindDirect {
		for _, p := range room.Participants {
			if p.UserID != userID {
				return p.User.Name
			}
		}
	}
	return ""
}

// TouchRoom bumps updated_at so room lists sort the room to the top.
func (d *Database) TouchRoom(ctx context.Context, roomID uuid.UUID) error {
	return d.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("updated_at", time.Now()).Error
}

// UpdateRoomName renames a group room.
func (d *Database) UpdateRoomName(ctx context.Context, roomID uuid.UUID, name string) error {
	return d.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("name", name).Error
}

// SetRoomActive soft-disables (or re-enables) a room. Nothing is deleted.
func (d *Database) SetRoomActive(ctx context.Context, roomID uuid.UUID, active bool) error {
	return d.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("active", active).Error
}
