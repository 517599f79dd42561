// Package chat is the real-time core: room session lifecycle, message
// delivery, read receipts and presence over a volatile connection
// registry, with all durable state behind the Store interface.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/registry"
)

const DefaultStoreTimeout = 5 * time.Second

type Service struct {
	store    Store
	registry *registry.Registry
	unread   *UnreadCounter
	timeout  time.Duration
}

// NewService wires the core. unread may be nil when no cache is
// configured; invalidation then degrades to a no-op.
func NewService(store Store, reg *registry.Registry, unread *UnreadCounter, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	return &Service{
		store:    store,
		registry: reg,
		unread:   unread,
		timeout:  storeTimeout,
	}
}

func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Handle routes a decoded inbound command for the given connection.
// authUserID is the transport-validated identity and is the only user id
// trusted for authentication. Returned errors are reported to the
// originating connection only.
func (s *Service) Handle(ctx context.Context, connID, authUserID uuid.UUID, sink registry.Sink, cmd Command) error {
	switch c := cmd.(type) {
	case *AuthenticateCmd:
		return s.Authenticate(ctx, connID, authUserID, sink)
	case *JoinRoomCmd:
		return s.JoinRoom(ctx, connID, c.RoomID)
	case *LeaveRoomCmd:
		return s.LeaveRoom(ctx, connID, c.RoomID)
	case *SendMessageCmd:
		return s.SendMessage(ctx, connID, c)
	case *TypingCmd:
		return s.Typing(connID, c.RoomID, c.IsTyping)
	case *MarkReadCmd:
		return s.MarkRead(ctx, connID, c.MessageID)
	case *JoinAllParticipantsCmd:
		return s.JoinAllParticipants(ctx, c.RoomID)
	default:
		return fmt.Errorf("%w: unhandled command %T", ErrInvalidEvent, cmd)
	}
}

// storeCtx bounds a store call. A deadline hit is classified as the
// transient store failure from the error taxonomy.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func classifyStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// emitTo sends one event to a single connection, best-effort.
func (s *Service) emitTo(connID uuid.UUID, t EventType, payload interface{}) {
	sink, ok := s.registry.Sink(connID)
	if !ok {
		return
	}
	if err := sink.Send(Encode(t, payload)); err != nil {
		log.Printf("chat: drop %s to %s: %v", t, connID, err)
	}
}

// emitToRoom fans an event out to every live connection subscribed to the
// room, optionally excluding one connection.
func (s *Service) emitToRoom(roomID uuid.UUID, exclude uuid.UUID, t EventType, payload interface{}) {
	raw := Encode(t, payload)
	for _, sink := range s.registry.SinksInRoom(roomID, exclude) {
		if err := sink.Send(raw); err != nil {
			log.Printf("chat: drop %s in room %s: %v", t, roomID, err)
		}
	}
}
