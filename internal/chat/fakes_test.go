package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tripwell/backoffice/internal/chat"
	"github.com/tripwell/backoffice/internal/models"
	"github.com/tripwell/backoffice/internal/registry"
)

// fakeStore is an in-memory chat.Store for exercising the core without a
// database. err, when set, fails every call to simulate an unavailable
// store.
type fakeStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*models.User
	rooms        map[uuid.UUID]*models.Room
	participants map[uuid.UUID][]models.Participant
	messages     []*models.Message
	receipts     map[string]bool
	online       map[uuid.UUID]bool
	clock        time.Time
	err          error
}

var _ chat.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[uuid.UUID]*models.User),
		rooms:        make(map[uuid.UUID]*models.Room),
		participants: make(map[uuid.UUID][]models.Participant),
		receipts:     make(map[string]bool),
		online:       make(map[uuid.UUID]bool),
		clock:        time.Now(),
	}
}

func (f *fakeStore) addUser(name string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := &models.User{ID: uuid.New(), Name: name, Email: name + "@example.com"}
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) addRoom(kind string, name *string, userIDs ...uuid.UUID) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	room := &models.Room{ID: uuid.New(), Kind: kind, Name: name, Active: true}
	f.rooms[room.ID] = room
	for i, userID := range userIDs {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleAdmin
		}
		f.participants[room.ID] = append(f.participants[room.ID], models.Participant{
			ID: uuid.New(), RoomID: room.ID, UserID: userID, Role: role,
		})
	}
	return room.ID
}

func (f *fakeStore) addMessage(roomID, senderID uuid.UUID, content string) *models.Message {
	msg := &models.Message{RoomID: roomID, SenderID: senderID, Content: content, Type: models.MessageTypeText}
	if err := f.InsertMessage(context.Background(), msg); err != nil {
		panic(err)
	}
	return msg
}

func receiptKey(messageID, userID uuid.UUID) string {
	return messageID.String() + "|" + userID.String()
}

func (f *fakeStore) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, chat.ErrNotFound)
	}
	return user, nil
}

func (f *fakeStore) GetRoomsForUser(ctx context.Context, userID uuid.UUID, q models.RoomQuery) ([]models.RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var summaries []models.RoomSummary
	for roomID, parts := range f.participants {
		for _, p := range parts {
			if p.UserID == userID {
				summaries = append(summaries, models.RoomSummary{Room: *f.rooms[roomID]})
				break
			}
		}
	}
	return summaries, nil
}

func (f *fakeStore) GetRoom(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomSummary, error) {
	room, err := f.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	member, err := f.IsParticipant(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, chat.ErrForbidden
	}
	return &models.RoomSummary{Room: *room}, nil
}

func (f *fakeStore) GetRoomByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, chat.ErrNotFound)
	}
	return room, nil
}

func (f *fakeStore) CreateRoom(ctx context.Context, kind string, name *string, participantIDs []uuid.UUID) (*models.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	roomID := f.addRoom(kind, name, participantIDs...)
	return f.rooms[roomID], nil
}

func (f *fakeStore) TouchRoom(ctx context.Context, roomID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if room, ok := f.rooms[roomID]; ok {
		room.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeStore) IsParticipant(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, p := range f.participants[roomID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) AddParticipant(ctx context.Context, roomID, userID uuid.UUID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.participants[roomID] = append(f.participants[roomID], models.Participant{
		ID: uuid.New(), RoomID: roomID, UserID: userID, Role: role,
	})
	return nil
}

func (f *fakeStore) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	parts := f.participants[roomID]
	for i, p := range parts {
		if p.UserID == userID {
			f.participants[roomID] = append(parts[:i], parts[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.ParticipantInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var infos []models.ParticipantInfo
	for _, p := range f.participants[roomID] {
		name := ""
		if user, ok := f.users[p.UserID]; ok {
			name = user.Name
		}
		infos = append(infos, models.ParticipantInfo{ID: p.UserID, Name: name, Role: p.Role, Online: f.online[p.UserID]})
	}
	return infos, nil
}

func (f *fakeStore) SetOnlineStatus(ctx context.Context, userID uuid.UUID, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.online[userID] = online
	return nil
}

func (f *fakeStore) GetMessages(ctx context.Context, roomID uuid.UUID, q models.MessageQuery) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Message
	for _, msg := range f.messages {
		if msg.RoomID == roomID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMessageByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, msg := range f.messages {
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", messageID, chat.ErrNotFound)
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	msg.ID = uuid.New()
	// Monotonic store-assigned timestamps.
	f.clock = f.clock.Add(time.Millisecond)
	msg.CreatedAt = f.clock
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) MarkMessageRead(ctx context.Context, messageID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, msg := range f.messages {
		if msg.ID == messageID {
			msg.IsRead = true
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", messageID, chat.ErrNotFound)
}

func (f *fakeStore) MarkAllSenderMessagesRead(ctx context.Context, roomID, senderID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, msg := range f.messages {
		if msg.RoomID == roomID && msg.SenderID == senderID && !msg.IsRead {
			msg.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) HasReadReceipt(ctx context.Context, messageID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.receipts[receiptKey(messageID, userID)], nil
}

func (f *fakeStore) InsertReadReceipt(ctx context.Context, messageID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.receipts[receiptKey(messageID, userID)] = true
	return nil
}

func (f *fakeStore) UnreadCount(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, msg := range f.messages {
		if msg.RoomID == roomID && msg.SenderID != userID && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, msg := range f.messages {
		if msg.SenderID == userID || msg.IsRead {
			continue
		}
		for _, p := range f.participants[msg.RoomID] {
			if p.UserID == userID {
				n++
				break
			}
		}
	}
	return n, nil
}

// recordingSink captures every frame delivered to a connection.
type recordingSink struct {
	mu     sync.Mutex
	frames []chat.Frame
}

var _ registry.Sink = (*recordingSink)(nil)

func (s *recordingSink) Send(payload []byte) error {
	var frame chat.Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) types() []chat.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.EventType, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Type
	}
	return out
}

func (s *recordingSink) count(t chat.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		if f.Type == t {
			n++
		}
	}
	return n
}

// last decodes the payload of the most recent frame of the given type.
func (s *recordingSink) last(t *testing.T, typ chat.EventType, v interface{}) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Type == typ {
			require.NoError(t, json.Unmarshal(s.frames[i].Data, v))
			return
		}
	}
	t.Fatalf("no %s frame recorded", typ)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
}

// fakeCache stands in for redis behind the unread counter, recording
// which keys get dropped.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	deleted []string
}

var _ chat.Cache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if val, ok := c.entries[key]; ok {
		return redis.NewStringResult(val, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, key := range keys {
		c.deleted = append(c.deleted, key)
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (c *fakeCache) deletedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

// env wires a service over the fake store for a test.
type env struct {
	store  *fakeStore
	reg    *registry.Registry
	svc    *chat.Service
	cache  *fakeCache
	unread *chat.UnreadCounter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := newFakeStore()
	reg := registry.New()
	return &env{
		store: store,
		reg:   reg,
		svc:   chat.NewService(store, reg, nil, time.Second),
	}
}

// newCachedEnv wires the service with an unread counter over the fake
// cache.
func newCachedEnv(t *testing.T) *env {
	t.Helper()
	store := newFakeStore()
	reg := registry.New()
	cache := newFakeCache()
	unread := chat.NewUnreadCounter(store, cache)
	return &env{
		store:  store,
		reg:    reg,
		svc:    chat.NewService(store, reg, unread, time.Second),
		cache:  cache,
		unread: unread,
	}
}

// connect authenticates a fresh connection for the user and clears the
// recorded frames so tests start from a quiet sink.
func (e *env) connect(t *testing.T, userID uuid.UUID) (uuid.UUID, *recordingSink) {
	t.Helper()
	connID := uuid.New()
	sink := &recordingSink{}
	require.NoError(t, e.svc.Authenticate(context.Background(), connID, userID, sink))
	sink.reset()
	return connID, sink
}
