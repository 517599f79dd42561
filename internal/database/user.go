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

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return d.db.WithContext(ctx).Create(user).Error
}

func (d *Database) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, chat.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", email, chat.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// SetOnlineStatus flips the online flag on every participant row of the
// user. Going offline also stamps last_seen_at; while online the column
// stays null.
func (d *Database) SetOnlineStatus(ctx context.Context, userID uuid.UUID, online bool) error {
	updates := map[string]interface{}{"online": online, "last_seen_at": nil}
	if !online {
		updates["last_seen_at"] = gorm.Expr("CURRENT_TIMESTAMP")
	}
	return d.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}
