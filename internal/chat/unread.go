package chat

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const unreadCacheTTL = 30 * time.Second

// Cache is the slice of the redis API the counter needs. *redis.Client
// satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// UnreadCounter answers per-room and per-user unread counts. Counts are
// derived from persisted message/read state; the cache layer is a pure
// cache with explicit invalidation on message send and markRead, plus a
// short TTL as a staleness bound. A nil cache disables caching.
type UnreadCounter struct {
	store Store
	rdb   Cache
	ttl   time.Duration
}

func NewUnreadCounter(store Store, rdb Cache) *UnreadCounter {
	return &UnreadCounter{store: store, rdb: rdb, ttl: unreadCacheTTL}
}

func unreadKey(roomID, userID uuid.UUID) string {
	return fmt.Sprintf("unread:%s:%s", roomID, userID)
}

// RoomUnread counts messages in the room not authored by userID and not
// yet marked read.
func (u *UnreadCounter) RoomUnread(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	if u.rdb != nil {
		if cached, err := u.rdb.Get(ctx, unreadKey(roomID, userID)).Result(); err == nil {
			if n, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return n, nil
			}
		}
	}

	n, err := u.store.UnreadCount(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}

	if u.rdb != nil {
		if err := u.rdb.Set(ctx, unreadKey(roomID, userID), n, u.ttl).Err(); err != nil {
			log.Printf("chat: cache unread %s/%s: %v", roomID, userID, err)
		}
	}
	return n, nil
}

// TotalUnread sums over every room the user participates in. Not cached;
// it is a single aggregate query.
func (u *UnreadCounter) TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return u.store.TotalUnread(ctx, userID)
}

// Invalidate drops the cached counts for the given users in the room.
func (u *UnreadCounter) Invalidate(ctx context.Context, roomID uuid.UUID, userIDs ...uuid.UUID) {
	if u.rdb == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, userID := range userIDs {
		keys[i] = unreadKey(roomID, userID)
	}
	if err := u.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("chat: invalidate unread cache for room %s: %v", roomID, err)
	}
}
