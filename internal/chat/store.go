package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/models"
)

// Store is the durable side of the chat system: rooms, participants,
// messages and read receipts. The live layer never caches any of this;
// it re-reads on every operation and treats the store as authoritative.
//
// Implementations must return ErrNotFound / ErrForbidden from this package
// for the corresponding conditions so callers can classify failures.
type Store interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)

	GetRoomsForUser(ctx context.Context, userID uuid.UUID, q models.RoomQuery) ([]models.RoomSummary, error)
	GetRoom(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomSummary, error)
	GetRoomByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
	CreateRoom(ctx context.Context, kind string, name *string, participantIDs []uuid.UUID) (*models.Room, error)
	TouchRoom(ctx context.Context, roomID uuid.UUID) error

	IsParticipant(ctx context.Context, userID, roomID uuid.UUID) (bool, error)
	AddParticipant(ctx context.Context, roomID, userID uuid.UUID, role string) error
	RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.ParticipantInfo, error)
	SetOnlineStatus(ctx context.Context, userID uuid.UUID, online bool) error

	GetMessages(ctx context.Context, roomID uuid.UUID, q models.MessageQuery) ([]models.Message, error)
	GetMessageByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	MarkMessageRead(ctx context.Context, messageID uuid.UUID) error
	MarkAllSenderMessagesRead(ctx context.Context, roomID, senderID uuid.UUID) (int64, error)

	HasReadReceipt(ctx context.Context, messageID, userID uuid.UUID) (bool, error)
	InsertReadReceipt(ctx context.Context, messageID, userID uuid.UUID) error

	UnreadCount(ctx context.Context, roomID, userID uuid.UUID) (int64, error)
	TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}
