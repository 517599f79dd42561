package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoomKindDirect = "direct"
	RoomKindGroup  = "group"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var (
	ErrNoParticipants   = errors.New("room needs at least one participant")
	ErrDirectRoomSize   = errors.New("direct room needs exactly two participants")
	ErrInvalidRoomKind  = errors.New("room kind must be direct or group")
	ErrDuplicateMembers = errors.New("duplicate participant ids")
)

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      *string
	Kind      string `gorm:"not null;check:kind IN ('direct','group')"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Participants []Participant `gorm:"foreignKey:RoomID"`
	Messages     []Message     `gorm:"foreignKey:RoomID"`
}

type Participant struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID     uuid.UUID `gorm:"not null;uniqueIndex:idx_room_user"`
	UserID     uuid.UUID `gorm:"not null;uniqueIndex:idx_room_user"`
	Role       string    `gorm:"not null;default:'member';check:role IN ('admin','member')"`
	Online     bool      `gorm:"not null;default:false"`
	LastSeenAt *time.Time
	CreatedAt  time.Time

	User User `gorm:"foreignKey:UserID"`
}

// NewRoom builds a room with its participant rows. The first participant id
// is the creator and gets the admin role; everyone else is a member. This is
// the single place that invariant is enforced.
func NewRoom(kind string, name *string, participantIDs []uuid.UUID) (*Room, error) {
	if kind != RoomKindDirect && kind != RoomKindGroup {
		return nil, ErrInvalidRoomKind
	}
	if len(participantIDs) == 0 {
		return nil, ErrNoParticipants
	}
	if kind == RoomKindDirect && len(participantIDs) != 2 {
		return nil, ErrDirectRoomSize
	}

	seen := make(map[uuid.UUID]struct{}, len(participantIDs))
	room := &Room{Kind: kind, Name: name, Active: true}
	for i, userID := range participantIDs {
		if _, dup := seen[userID]; dup {
			return nil, ErrDuplicateMembers
		}
		seen[userID] = struct{}{}

		role := RoleMember
		if i == 0 {
			role = RoleAdmin
		}
		room.Participants = append(room.Participants, Participant{UserID: userID, Role: role})
	}
	return room, nil
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
