package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tripwell/backoffice/internal/chat"
	"github.com/tripwell/backoffice/internal/middleware"
	ws "github.com/tripwell/backoffice/internal/websocket"
)

type WebSocketHandler struct {
	svc      *chat.Service
	upgrader gorillaws.Upgrader
}

func NewWebSocketHandler(svc *chat.Service) *WebSocketHandler {
	return &WebSocketHandler{
		svc: svc,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict to the back-office origin in prod
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection and starts the pumps. The
// session stays Unauthenticated until the client sends its authenticate
// event; the JWT-resolved user id is what the core will bind.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(conn, userID.(uuid.UUID))

	go client.WritePump()
	go client.ReadPump(h.svc)
}
