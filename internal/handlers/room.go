package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/chat"
	"github.com/tripwell/backoffice/internal/database"
	"github.com/tripwell/backoffice/internal/handlers/dto"
	"github.com/tripwell/backoffice/internal/middleware"
	"github.com/tripwell/backoffice/internal/models"
)

type RoomHandler struct {
	db  *database.Database
	svc *chat.Service
}

func NewRoomHandler(db *database.Database, svc *chat.Service) *RoomHandler {
	return &RoomHandler{db: db, svc: svc}
}

// CreateRoom creates a room over the ordinary API. The caller is always
// the first participant and therefore the admin. Afterwards the live
// layer reconciles: participants who are already connected get the room
// pushed into their subscriptions.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participantIDs := []uuid.UUID{userID}
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
			return
		}
		if id != userID {
			participantIDs = append(participantIDs, id)
		}
	}

	room, err := h.db.CreateRoom(c.Request.Context(), req.Kind, req.Name, participantIDs)
	if err != nil {
		switch err {
		case models.ErrDirectRoomSize, models.ErrInvalidRoomKind, models.ErrNoParticipants, models.ErrDuplicateMembers:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			respondError(c, err)
		}
		return
	}

	if err := h.svc.JoinAllParticipants(c.Request.Context(), room.ID); err != nil {
		// Room exists; live reconciliation is best-effort and clients
		// pick the room up at next authenticate anyway.
		c.JSON(http.StatusCreated, formatRoom(room))
		return
	}

	c.JSON(http.StatusCreated, formatRoom(room))
}

// GetMyRooms lists the caller's rooms newest-activity-first with last
// message and unread count.
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	q := models.RoomQuery{}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			q.Limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			q.Offset = parsed
		}
	}

	summaries, err := h.db.GetRoomsForUser(c.Request.Context(), userID, q)
	if err != nil {
		respondError(c, err)
		return
	}

	rooms := make([]gin.H, len(summaries))
	for i := range summaries {
		rooms[i] = h.formatSummary(&summaries[i])
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	summary, err := h.db.GetRoom(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.formatSummary(summary))
}

// UpdateRoom renames a room. Admin only.
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req dto.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.requireAdmin(c, roomID, userID); err != nil {
		return
	}

	if err := h.db.UpdateRoomName(c.Request.Context(), roomID, req.Name); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "room updated"})
}

// DisableRoom soft-disables a room via the active flag. Admin only;
// nothing is deleted.
func (h *RoomHandler) DisableRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := h.requireAdmin(c, roomID, userID); err != nil {
		return
	}

	if err := h.db.SetRoomActive(c.Request.Context(), roomID, false); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "room disabled"})
}

// LeaveRoom removes the caller's durable participation. This is the
// explicit business action, distinct from the live-protocol leave_room
// which only drops the subscription.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	summary, err := h.db.GetRoom(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if summary.Room.Kind == models.RoomKindDirect {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot leave a direct room"})
		return
	}

	if err := h.db.RemoveParticipant(c.Request.Context(), roomID, userID); err != nil {
		respondError(c, err)
		return
	}

	// Drop live subscriptions on every device of the user as well.
	for _, connID := range h.svc.Registry().ConnectionsOfUser(userID) {
		h.svc.Registry().RemoveRoom(connID, roomID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

func (h *RoomHandler) GetRoomParticipants(c *gin.Context) {
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

	participants, err := h.db.ListParticipants(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Live presence wins over the durable flag for in-process reads.
	for i := range participants {
		if h.svc.IsUserOnline(participants[i].ID) {
			participants[i].Online = true
		}
	}

	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (h *RoomHandler) requireAdmin(c *gin.Context, roomID, userID uuid.UUID) error {
	summary, err := h.db.GetRoom(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return err
	}
	for _, p := range summary.Room.Participants {
		if p.UserID == userID && p.Role == models.RoleAdmin {
			return nil
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	return chat.ErrForbidden
}

func formatRoom(room *models.Room) gin.H {
	participants := make([]gin.H, len(room.Participants))
	for i, p := range room.Participants {
		participants[i] = gin.H{
			"user_id": p.UserID,
			"name":    p.User.Name,
			"role":    p.Role,
		}
	}
	return gin.H{
		"id":           room.ID,
		"name":         room.Name,
		"kind":         room.Kind,
		"active":       room.Active,
		"created_at":   room.CreatedAt,
		"updated_at":   room.UpdatedAt,
		"participants": participants,
	}
}

func (h *RoomHandler) formatSummary(s *models.RoomSummary) gin.H {
	resp := formatRoom(&s.Room)
	resp["name"] = s.DisplayName
	resp["unread_count"] = s.UnreadCount
	if s.LastMessage != nil {
		resp["last_message"] = formatMessage(s.LastMessage)
	}
	return resp
}
