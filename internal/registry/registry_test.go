package registry

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSink struct{}

func (nopSink) Send([]byte) error { return nil }

func TestBindAndUserOnline(t *testing.T) {
	r := New()
	user := uuid.New()
	conn1, conn2 := uuid.New(), uuid.New()

	assert.False(t, r.IsUserOnline(user))

	r.Bind(conn1, user, nil, nopSink{})
	r.Bind(conn2, user, nil, nopSink{})
	assert.True(t, r.IsUserOnline(user))
	assert.ElementsMatch(t, []uuid.UUID{conn1, conn2}, r.ConnectionsOfUser(user))

	// Multi-device: the user stays online until the last binding goes.
	_, _, ok := r.Unbind(conn1)
	require.True(t, ok)
	assert.True(t, r.IsUserOnline(user))

	_, _, ok = r.Unbind(conn2)
	require.True(t, ok)
	assert.False(t, r.IsUserOnline(user))
}

func TestBindWithInitialRooms(t *testing.T) {
	r := New()
	user := uuid.New()
	conn := uuid.New()
	room1, room2 := uuid.New(), uuid.New()

	r.Bind(conn, user, []uuid.UUID{room1, room2}, nopSink{})

	assert.ElementsMatch(t, []uuid.UUID{conn}, r.ConnectionsInRoom(room1))
	assert.ElementsMatch(t, []uuid.UUID{conn}, r.ConnectionsInRoom(room2))
	assert.True(t, r.IsSubscribed(conn, room1))
}

func TestAddAndRemoveRoom(t *testing.T) {
	r := New()
	conn := uuid.New()
	room := uuid.New()

	// Not bound yet.
	assert.False(t, r.AddRoom(conn, room))

	r.Bind(conn, uuid.New(), nil, nopSink{})
	assert.True(t, r.AddRoom(conn, room))
	assert.True(t, r.IsSubscribed(conn, room))

	// Re-adding is a no-op.
	assert.True(t, r.AddRoom(conn, room))
	assert.Len(t, r.ConnectionsInRoom(room), 1)

	r.RemoveRoom(conn, room)
	assert.False(t, r.IsSubscribed(conn, room))
	assert.Empty(t, r.ConnectionsInRoom(room))
}

func TestUnbindReleasesEveryRoom(t *testing.T) {
	r := New()
	user := uuid.New()
	conn := uuid.New()
	rooms := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	r.Bind(conn, user, rooms, nopSink{})

	gotUser, released, ok := r.Unbind(conn)
	require.True(t, ok)
	assert.Equal(t, user, gotUser)
	assert.ElementsMatch(t, rooms, released)

	for _, room := range rooms {
		assert.Empty(t, r.ConnectionsInRoom(room))
	}

	_, _, ok = r.Unbind(conn)
	assert.False(t, ok)
}

func TestRebindReplacesBinding(t *testing.T) {
	r := New()
	conn := uuid.New()
	oldUser, newUser := uuid.New(), uuid.New()
	oldRoom, newRoom := uuid.New(), uuid.New()

	r.Bind(conn, oldUser, []uuid.UUID{oldRoom}, nopSink{})
	r.Bind(conn, newUser, []uuid.UUID{newRoom}, nopSink{})

	assert.False(t, r.IsUserOnline(oldUser))
	assert.True(t, r.IsUserOnline(newUser))
	assert.Empty(t, r.ConnectionsInRoom(oldRoom))
	assert.ElementsMatch(t, []uuid.UUID{conn}, r.ConnectionsInRoom(newRoom))
}

func TestSinksInRoomExcludes(t *testing.T) {
	r := New()
	room := uuid.New()
	conn1, conn2 := uuid.New(), uuid.New()

	r.Bind(conn1, uuid.New(), []uuid.UUID{room}, nopSink{})
	r.Bind(conn2, uuid.New(), []uuid.UUID{room}, nopSink{})

	assert.Len(t, r.SinksInRoom(room, uuid.Nil), 2)
	assert.Len(t, r.SinksInRoom(room, conn1), 1)
}

func TestUserOf(t *testing.T) {
	r := New()
	conn := uuid.New()
	user := uuid.New()

	_, ok := r.UserOf(conn)
	assert.False(t, ok)

	r.Bind(conn, user, nil, nopSink{})
	got, ok := r.UserOf(conn)
	require.True(t, ok)
	assert.Equal(t, user, got)
}

// Concurrent unbind and room churn on the same connections must never
// leave a room holding a dead connection.
func TestConcurrentChurn(t *testing.T) {
	r := New()
	room := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := uuid.New()
			user := uuid.New()
			for j := 0; j < 100; j++ {
				r.Bind(conn, user, nil, nopSink{})
				r.AddRoom(conn, room)
				r.RemoveRoom(conn, room)
				r.AddRoom(conn, room)
				r.Unbind(conn)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, r.ConnectionsInRoom(room))
}
