package chat_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwell/backoffice/internal/chat"
	"github.com/tripwell/backoffice/internal/models"
)

func unreadKey(roomID, userID uuid.UUID) string {
	return fmt.Sprintf("unread:%s:%s", roomID, userID)
}

func TestRoomUnreadCachesCount(t *testing.T) {
	e := newCachedEnv(t)
	alice := e.store.addUser("Alice")
	bob := e.store.addUser("Bob")
	room := e.store.addRoom(models.RoomKindDirect, nil, alice.ID, bob.ID)

	e.store.addMessage(room, alice.ID, "one")

	n, err := e.unread.RoomUnread(context.Background(), room, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// A second message lands, but until invalidation the cached count
	// is what readers see.
	e.store.addMessage(room, alice.ID, "two")
	n, err = e.unread.RoomUnread(context.Background(), room, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	e.unread.Invalidate(context.Background(), room, bob.ID)
	n, err = e.unread.RoomUnread(context.Background(), room, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

// A read receipt lowers the count of every non-sender participant, so
// marking one message read must drop the whole room's cache entries,
// not just the reader's.
func TestMarkReadInvalidatesEveryParticipantCache(t *testing.T) {
	e := newCachedEnv(t)
	alice := e.store.addUser("Alice")
	bob := e.store.addUser("Bob")
	carol := e.store.addUser("Carol")
	name := "Kyoto group"
	room := e.store.addRoom(models.RoomKindGroup, &name, alice.ID, bob.ID, carol.ID)

	msg := e.store.addMessage(room, alice.ID, "hi both")

	for _, userID := range []uuid.UUID{bob.ID, carol.ID} {
		n, err := e.unread.RoomUnread(context.Background(), room, userID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	}

	bobConn, _ := e.connect(t, bob.ID)
	require.NoError(t, e.svc.MarkRead(context.Background(), bobConn, msg.ID))

	deleted := e.cache.deletedKeys()
	assert.Contains(t, deleted, unreadKey(room, bob.ID))
	assert.Contains(t, deleted, unreadKey(room, carol.ID))

	// Carol's next read recomputes instead of serving the stale 1.
	n, err := e.unread.RoomUnread(context.Background(), room, carol.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkAllReadInvalidatesEveryParticipantCache(t *testing.T) {
	e := newCachedEnv(t)
	alice := e.store.addUser("Alice")
	bob := e.store.addUser("Bob")
	room := e.store.addRoom(models.RoomKindDirect, nil, alice.ID, bob.ID)

	e.store.addMessage(room, alice.ID, "one")
	e.store.addMessage(room, alice.ID, "two")

	n, err := e.unread.RoomUnread(context.Background(), room, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	flipped, err := e.svc.MarkAllRead(context.Background(), room, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, flipped)

	// Bob's cached count is gone and the recompute sees the flip.
	assert.Contains(t, e.cache.deletedKeys(), unreadKey(room, bob.ID))
	n, err = e.unread.RoomUnread(context.Background(), room, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSendMessageInvalidatesParticipantCaches(t *testing.T) {
	e := newCachedEnv(t)
	alice := e.store.addUser("Alice")
	bob := e.store.addUser("Bob")
	room := e.store.addRoom(models.RoomKindDirect, nil, alice.ID, bob.ID)

	// Warm Bob's cache at zero.
	n, err := e.unread.RoomUnread(context.Background(), room, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	aliceConn, _ := e.connect(t, alice.ID)
	require.NoError(t, e.svc.SendMessage(context.Background(), aliceConn, &chat.SendMessageCmd{RoomID: room, Content: "hi"}))

	assert.Contains(t, e.cache.deletedKeys(), unreadKey(room, bob.ID))
	n, err = e.unread.RoomUnread(context.Background(), room, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
