package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

type Message struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID   uuid.UUID `gorm:"not null;index"`
	SenderID uuid.UUID `gorm:"not null"`
	Content  string    `gorm:"not null"`
	Type     string    `gorm:"not null;default:'text'"`
	IsRead   bool      `gorm:"not null;default:false"`
	// CreatedAt is the sole ordering key for pagination cursors.
	CreatedAt time.Time `gorm:"index"`

	Sender      User         `gorm:"foreignKey:SenderID"`
	Attachments []Attachment `gorm:"foreignKey:MessageID"`
}

// Attachment describes a stored file reference on a message. Its ID is
// derived deterministically from the URL (uuid v5) so re-sending the same
// descriptor yields the same identifier.
type Attachment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Name      string    `gorm:"not null"`
	URL       string    `gorm:"not null"`
	Kind      string
	Size      *int64
	Position  int `gorm:"not null;default:0"`
}

type ReadReceipt struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `gorm:"not null;uniqueIndex:idx_message_user"`
	UserID    uuid.UUID `gorm:"not null;uniqueIndex:idx_message_user"`
	CreatedAt time.Time
}

// AttachmentID returns the stable identifier for an attachment URL.
func AttachmentID(url string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url))
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = AttachmentID(a.URL)
	}
	return nil
}

func (r *ReadReceipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
