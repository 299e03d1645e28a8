package room

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chess-arena/internal/session"
)

// Store keeps the latest snapshot of every room in redis as a TTL'd JSON
// blob, plus a per-user index of the rooms they are seated in. It exists
// for inspection and post-restart reads; the in-memory session stays
// authoritative.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) keyRoom(roomID string) string   { return "arena:room:" + strings.TrimSpace(roomID) }
func (s *Store) keyUserIdx(userID string) string { return "arena:index:user:" + strings.TrimSpace(userID) }

// Write persists snap and refreshes the seat holders' room index.
func (s *Store) Write(ctx context.Context, snap session.Snapshot) error {
	raw, err := json.Marshal(&snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyRoom(snap.RoomID), raw, s.ttl).Err(); err != nil {
		return err
	}
	for _, p := range []*session.Player{snap.White, snap.Black} {
		if p == nil || strings.TrimSpace(p.ID) == "" {
			continue
		}
		key := s.keyUserIdx(p.ID)
		if err := s.rdb.SAdd(ctx, key, snap.RoomID).Err(); err != nil {
			return err
		}
		// keep the index from outliving the snapshots it points at
		_ = s.rdb.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

// Load returns the stored snapshot for roomID, or nil when absent.
func (s *Store) Load(ctx context.Context, roomID string) (*session.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.keyRoom(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// RoomsByUser lists the rooms userID holds a seat in.
func (s *Store) RoomsByUser(ctx context.Context, userID string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyUserIdx(userID)).Result()
}
