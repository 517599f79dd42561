package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/chat"
	"github.com/tripwell/backoffice/internal/database"
	"github.com/tripwell/backoffice/internal/middleware"
	"github.com/tripwell/backoffice/internal/models"
)

type MessageHandler struct {
	db     *database.Database
	svc    *chat.Service
	unread *chat.UnreadCounter
}

func NewMessageHandler(db *database.Database, svc *chat.Service, unread *chat.UnreadCounter) *MessageHandler {
	return &MessageHandler{db: db, svc: svc, unread: unread}
}

// GetRoomMessages pages a room's history on the created_at cursor.
// `before` is an RFC3339 timestamp; the page comes back oldest-first.
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if _, err := h.db.GetRoom(c.Request.Context(), roomID, userID); err != nil {
		respondError(c, err)
		return
	}

	q := models.MessageQuery{Limit: 50}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			q.Limit = parsed
		}
	}
	if before := c.Query("before"); before != "" {
		ts, err := time.Parse(time.RFC3339Nano, before)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		q.Before = &ts
	}

	messages, err := h.db.GetMessages(c.Request.Context(), roomID, q)
	if err != nil {
		respondError(c, err)
		return
	}

	result := make([]gin.H, len(messages))
	for i := range messages {
		result[i] = formatMessage(&messages[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": result,
		"has_more": len(messages) == q.Limit,
	})
}

// MarkAllRead is the bulk catch-up: it flips is_read on the caller's own
// unread messages in the room in one update.
func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	n, err := h.svc.MarkAllRead(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// GetTotalUnread reports the caller's unread total across all rooms.
func (h *MessageHandler) GetTotalUnread(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	total, err := h.unread.TotalUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": total})
}

func formatMessage(msg *models.Message) gin.H {
	attachments := make([]gin.H, len(msg.Attachments))
	for i, a := range msg.Attachments {
		attachments[i] = gin.H{
			"id":   a.ID,
			"name": a.Name,
			"url":  a.URL,
			"kind": a.Kind,
			"size": a.Size,
		}
	}
	return gin.H{
		"id":          msg.ID,
		"room_id":     msg.RoomID,
		"sender_id":   msg.SenderID,
		"content":     msg.Content,
		"type":        msg.Type,
		"is_read":     msg.IsRead,
		"created_at":  msg.CreatedAt,
		"attachments": attachments,
	}
}
