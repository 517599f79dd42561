package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/tripwell/backoffice/internal/handlers"
	"github.com/tripwell/backoffice/internal/middleware"
	"github.com/tripwell/backoffice/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	authH *handlers.AuthHandler,
	userH *handlers.UserHandler,
	roomH *handlers.RoomHandler,
	messageH *handlers.MessageHandler,
	wsH *handlers.WebSocketHandler,
) {
	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", middleware.AuthMiddleware(jwtMgr, rdb), authH.Logout)
	}

	// API endpoints
	api := r.Group("/api/v1", middleware.AuthMiddleware(jwtMgr, rdb))
	{
		api.GET("/me", userH.GetMe)

		api.GET("/rooms", roomH.GetMyRooms)
		api.POST("/rooms", roomH.CreateRoom)
		api.GET("/rooms/:id", roomH.GetRoom)
		api.PATCH("/rooms/:id", roomH.UpdateRoom)
		api.DELETE("/rooms/:id", roomH.DisableRoom)
		api.DELETE("/rooms/:id/leave", roomH.LeaveRoom)
		api.GET("/rooms/:id/participants", roomH.GetRoomParticipants)

		api.GET("/rooms/:id/messages", messageH.GetRoomMessages)
		api.POST("/rooms/:id/read-all", messageH.MarkAllRead)
		api.GET("/unread", messageH.GetTotalUnread)
	}

	// WebSocket endpoint; browser clients pass the token as a query param
	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleWebSocket)
}
