package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/models"
)

const maxMessageContent = 8 * 1024

// SendMessage runs the delivery pipeline: validate sender membership,
// persist, bump room activity, fan out to the room's live connections and
// ack the sender. The sender identity always comes from the registry,
// never from the payload.
//
// Failures before persistence abort cleanly. Failures after persistence
// are logged and surfaced to the sender, but the message stays persisted:
// the durable message list is the recovery path for anyone who missed the
// live broadcast.
func (s *Service) SendMessage(ctx context.Context, connID uuid.UUID, cmd *SendMessageCmd) error {
	senderID, ok := s.registry.UserOf(connID)
	if !ok {
		return ErrUnauthenticated
	}

	content := strings.TrimSpace(cmd.Content)
	if content == "" && len(cmd.Attachments) == 0 {
		return fmt.Errorf("%w: empty message", ErrInvalidEvent)
	}
	if len(content) > maxMessageContent {
		return fmt.Errorf("%w: message too long", ErrInvalidEvent)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	member, err := s.store.IsParticipant(sctx, senderID, cmd.RoomID)
	if err != nil {
		return classifyStoreErr(err)
	}
	if !member {
		return ErrForbidden
	}

	msgType := cmd.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	msg := &models.Message{
		RoomID:      cmd.RoomID,
		SenderID:    senderID,
		Content:     content,
		Type:        msgType,
		Attachments: mapAttachments(cmd.Attachments),
	}

	if err := s.store.InsertMessage(sctx, msg); err != nil {
		return classifyStoreErr(err)
	}

	// Persisted from here on; remaining failures must not undo it.
	if err := s.store.TouchRoom(sctx, cmd.RoomID); err != nil {
		log.Printf("chat: touch room %s after message %s: %v", cmd.RoomID, msg.ID, err)
		return classifyStoreErr(err)
	}

	sender, err := s.store.GetUser(sctx, senderID)
	if err != nil {
		log.Printf("chat: resolve sender %s for message %s: %v", senderID, msg.ID, err)
		return classifyStoreErr(err)
	}

	s.invalidateUnread(ctx, cmd.RoomID)

	s.emitToRoom(cmd.RoomID, uuid.Nil, EvNewMessage, hydrateMessage(msg, sender.Name))
	s.emitTo(connID, EvMessageSent, MessageSentPayload{MessageID: msg.ID})
	return nil
}

func mapAttachments(inputs []AttachmentInput) []models.Attachment {
	if len(inputs) == 0 {
		return nil
	}
	attachments := make([]models.Attachment, len(inputs))
	for i, in := range inputs {
		attachments[i] = models.Attachment{
			ID:       models.AttachmentID(in.URL),
			Name:     in.Name,
			URL:      in.URL,
			Kind:     in.Kind,
			Size:     in.Size,
			Position: i,
		}
	}
	return attachments
}

func hydrateMessage(msg *models.Message, senderName string) NewMessagePayload {
	attachments := make([]AttachmentPayload, len(msg.Attachments))
	for i, a := range msg.Attachments {
		attachments[i] = AttachmentPayload{
			ID:   a.ID,
			Name: a.Name,
			URL:  a.URL,
			Kind: a.Kind,
			Size: a.Size,
		}
	}
	return NewMessagePayload{
		ID:          msg.ID,
		Content:     msg.Content,
		SenderID:    msg.SenderID,
		SenderName:  senderName,
		Timestamp:   msg.CreatedAt,
		IsRead:      msg.IsRead,
		MessageType: msg.Type,
		RoomID:      msg.RoomID,
		Attachments: attachments,
	}
}

// invalidateUnread drops cached unread counts for every participant of
// the room. Best-effort: a stale cache entry expires on its own TTL.
func (s *Service) invalidateUnread(ctx context.Context, roomID uuid.UUID) {
	if s.unread == nil {
		return
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	participants, err := s.store.ListParticipants(sctx, roomID)
	if err != nil {
		log.Printf("chat: list participants for unread invalidation in %s: %v", roomID, err)
		return
	}
	userIDs := make([]uuid.UUID, len(participants))
	for i, p := range participants {
		userIDs[i] = p.ID
	}
	s.unread.Invalidate(ctx, roomID, userIDs...)
}
