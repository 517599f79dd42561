package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomQuery filters a user's room list. Zero value means first page,
// default limit, active rooms only.
type RoomQuery struct {
	Limit           int
	Offset          int
	IncludeInactive bool
}

// MessageQuery pages a room's messages backwards from Before on created_at.
type MessageQuery struct {
	Limit  int
	Before *time.Time
}

// RoomSummary is the room-list read model: the room, its display name
// (synthesized for direct rooms), the latest message and the caller's
// unread count.
type RoomSummary struct {
	Room        Room
	DisplayName string
	LastMessage *Message
	UnreadCount int64
}

// ParticipantInfo is the lightweight participant projection used for
// membership listings and room_created payloads.
type ParticipantInfo struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
	Online bool      `json:"online"`
}
