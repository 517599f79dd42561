package chat

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/models"
	"github.com/tripwell/backoffice/internal/registry"
)

// authRoomsPageSize bounds how many memberships are loaded and
// auto-subscribed at authenticate time, newest-active-first.
const authRoomsPageSize = 100

// Authenticate binds the connection to userID, subscribes it to the
// user's rooms, marks the user online and announces presence to each
// room. Re-authenticating an already-bound connection simply re-binds.
//
// Every store call happens before the registry is touched, so a failed
// authenticate leaves the registry exactly as it was.
func (s *Service) Authenticate(ctx context.Context, connID, userID uuid.UUID, sink registry.Sink) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.store.GetUser(sctx, userID)
	if err != nil {
		return classifyStoreErr(err)
	}

	summaries, err := s.store.GetRoomsForUser(sctx, userID, models.RoomQuery{Limit: authRoomsPageSize})
	if err != nil {
		return classifyStoreErr(err)
	}
	roomIDs := make([]uuid.UUID, len(summaries))
	for i, summary := range summaries {
		roomIDs[i] = summary.Room.ID
	}

	if err := s.store.SetOnlineStatus(sctx, userID, true); err != nil {
		return classifyStoreErr(err)
	}

	s.registry.Bind(connID, userID, roomIDs, sink)

	for _, roomID := range roomIDs {
		s.emitToRoom(roomID, connID, EvUserOnline, PresencePayload{
			UserID:   userID,
			RoomID:   roomID,
			UserName: user.Name,
		})
	}

	s.emitTo(connID, EvAuthenticated, AuthenticatedPayload{UserID: userID, Rooms: roomIDs})
	return nil
}

// JoinRoom subscribes an authenticated connection to a room it durably
// belongs to. Membership is checked against the store, not the registry:
// being a participant does not require a live connection.
func (s *Service) JoinRoom(ctx context.Context, connID, roomID uuid.UUID) error {
	userID, ok := s.registry.UserOf(connID)
	if !ok {
		return ErrUnauthenticated
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	member, err := s.store.IsParticipant(sctx, userID, roomID)
	if err != nil {
		return classifyStoreErr(err)
	}
	if !member {
		return ErrForbidden
	}

	if !s.registry.AddRoom(connID, roomID) {
		// The connection disconnected while we were checking the store.
		return ErrUnauthenticated
	}

	s.emitTo(connID, EvRoomJoined, RoomRefPayload{RoomID: roomID})
	s.emitToRoom(roomID, connID, EvUserJoinedRoom, RoomMembershipPayload{UserID: userID, RoomID: roomID})
	return nil
}

// LeaveRoom drops the live subscription only. Durable participation is a
// separate business action on the REST surface.
func (s *Service) LeaveRoom(ctx context.Context, connID, roomID uuid.UUID) error {
	userID, ok := s.registry.UserOf(connID)
	if !ok {
		return ErrUnauthenticated
	}

	s.registry.RemoveRoom(connID, roomID)

	s.emitTo(connID, EvRoomLeft, RoomRefPayload{RoomID: roomID})
	s.emitToRoom(roomID, connID, EvUserLeftRoom, RoomMembershipPayload{UserID: userID, RoomID: roomID})
	return nil
}

// Disconnect unbinds the connection synchronously. If this was the
// user's last live connection it records the user offline and tells each
// released room; a user with another live device stays online.
func (s *Service) Disconnect(ctx context.Context, connID uuid.UUID) {
	userID, released, ok := s.registry.Unbind(connID)
	if !ok {
		return
	}

	if s.registry.IsUserOnline(userID) {
		return
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	userName := ""
	if user, err := s.store.GetUser(sctx, userID); err == nil {
		userName = user.Name
	}

	if err := s.store.SetOnlineStatus(sctx, userID, false); err != nil {
		log.Printf("chat: mark %s offline: %v", userID, err)
	}

	for _, roomID := range released {
		s.emitToRoom(roomID, connID, EvUserOffline, PresencePayload{
			UserID:   userID,
			RoomID:   roomID,
			UserName: userName,
		})
	}
}

// JoinAllParticipants reconciles registry state after a room was created
// out of band: every durable participant with live connections gets those
// connections force-subscribed, since no join event will ever arrive for
// a room the client does not know about yet.
func (s *Service) JoinAllParticipants(ctx context.Context, roomID uuid.UUID) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	room, err := s.store.GetRoomByID(sctx, roomID)
	if err != nil {
		return classifyStoreErr(err)
	}

	participants, err := s.store.ListParticipants(sctx, roomID)
	if err != nil {
		return classifyStoreErr(err)
	}

	roomName := ""
	if room.Name != nil {
		roomName = *room.Name
	}
	created := RoomCreatedPayload{RoomID: roomID, RoomName: roomName, Participants: participants}

	for _, p := range participants {
		for _, connID := range s.registry.ConnectionsOfUser(p.ID) {
			if s.registry.AddRoom(connID, roomID) {
				s.emitTo(connID, EvRoomCreated, created)
			}
		}
	}

	s.emitToRoom(roomID, uuid.Nil, EvRoomParticipantsUpdated, created)
	return nil
}

// Typing relays a typing indicator to the room's other live connections.
// Nothing is persisted.
func (s *Service) Typing(connID, roomID uuid.UUID, isTyping bool) error {
	userID, ok := s.registry.UserOf(connID)
	if !ok {
		return ErrUnauthenticated
	}
	if !s.registry.IsSubscribed(connID, roomID) {
		return ErrForbidden
	}

	s.emitToRoom(roomID, connID, EvUserTyping, TypingPayload{
		UserID:   userID,
		RoomID:   roomID,
		IsTyping: isTyping,
	})
	return nil
}

// IsUserOnline is the derived presence check: a user is online while at
// least one live binding exists. The durable flag written at
// authenticate/disconnect time serves readers outside this process.
func (s *Service) IsUserOnline(userID uuid.UUID) bool {
	return s.registry.IsUserOnline(userID)
}
