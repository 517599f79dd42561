package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/tripwell/backoffice/internal/chat"
	"github.com/tripwell/backoffice/internal/database"
	"github.com/tripwell/backoffice/internal/handlers"
	"github.com/tripwell/backoffice/internal/registry"
	"github.com/tripwell/backoffice/pkg/auth"
)

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Registry   *registry.Registry
	Chat       *chat.Service
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	// The registry is constructed here and injected everywhere; nothing
	// reaches for it as ambient state.
	reg := registry.New()
	unread := chat.NewUnreadCounter(dbConn, rdb)
	chatSvc := chat.NewService(dbConn, reg, unread, storeTimeout())

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	userH := handlers.NewUserHandler(dbConn)
	roomH := handlers.NewRoomHandler(dbConn, chatSvc)
	messageH := handlers.NewMessageHandler(dbConn, chatSvc, unread)
	wsH := handlers.NewWebSocketHandler(chatSvc)

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, authH, userH, roomH, messageH, wsH)

	return &Server{
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Registry:   reg,
		Chat:       chatSvc,
	}
}

func storeTimeout() time.Duration {
	if raw := os.Getenv("STORE_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
		log.Printf("invalid STORE_TIMEOUT %q, using default", raw)
	}
	return chat.DefaultStoreTimeout
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests.
// Websocket clients are dropped on process exit and re-authenticate;
// the registry is volatile by design.
func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{Addr: ":" + port, Handler: s.Router}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server run error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	if err := s.Redis.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}
}
