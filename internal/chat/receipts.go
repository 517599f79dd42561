package chat

import (
	"context"

	"github.com/google/uuid"
)

// MarkRead records that the connection's user has read the message.
// Replays are no-ops: the second call inserts nothing and emits nothing.
// The message's is_read flag is a denormalized "has any receipt" marker.
func (s *Service) MarkRead(ctx context.Context, connID, messageID uuid.UUID) error {
	userID, ok := s.registry.UserOf(connID)
	if !ok {
		return ErrUnauthenticated
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	msg, err := s.store.GetMessageByID(sctx, messageID)
	if err != nil {
		return classifyStoreErr(err)
	}

	// Reading your own message needs no receipt; unread counting already
	// excludes authored messages.
	if msg.SenderID == userID {
		return nil
	}

	member, err := s.store.IsParticipant(sctx, userID, msg.RoomID)
	if err != nil {
		return classifyStoreErr(err)
	}
	if !member {
		return ErrForbidden
	}

	exists, err := s.store.HasReadReceipt(sctx, messageID, userID)
	if err != nil {
		return classifyStoreErr(err)
	}
	if exists {
		return nil
	}

	if err := s.store.InsertReadReceipt(sctx, messageID, userID); err != nil {
		return classifyStoreErr(err)
	}
	if err := s.store.MarkMessageRead(sctx, messageID); err != nil {
		return classifyStoreErr(err)
	}

	// Flipping is_read lowers the count of every non-sender participant,
	// not just the reader's, so the whole room's cache entries go.
	s.invalidateUnread(ctx, msg.RoomID)

	s.emitTo(connID, EvMessageMarkedRead, MessageSentPayload{MessageID: messageID})
	s.emitToRoom(msg.RoomID, connID, EvMessageRead, MessageReadPayload{
		MessageID: messageID,
		UserID:    userID,
		RoomID:    msg.RoomID,
	})
	return nil
}

// MarkAllRead flips is_read on every unread message authored by userID in
// the room, in one update. Note this clears the caller's own outbox flags
// only; it is a coarse convenience, not a replacement for per-recipient
// receipts.
func (s *Service) MarkAllRead(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	member, err := s.store.IsParticipant(sctx, userID, roomID)
	if err != nil {
		return 0, classifyStoreErr(err)
	}
	if !member {
		return 0, ErrForbidden
	}

	n, err := s.store.MarkAllSenderMessagesRead(sctx, roomID, userID)
	if err != nil {
		return 0, classifyStoreErr(err)
	}

	s.invalidateUnread(ctx, roomID)
	return n, nil
}
