// Package room maps room identifiers to game sessions.
package room

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"chess-arena/internal/obslog"
	"chess-arena/internal/rules"
	"chess-arena/internal/session"
)

// ResolveRoom derives a deterministic, order-independent room identifier
// from two user identities, so either party challenging the other
// converges on the same room.
func ResolveRoom(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Manager owns the room table. Lookup-or-create for one room identifier
// is atomic under the table mutex; everything past lookup serializes on
// the session's own lock, so independent rooms progress in parallel.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	engine  rules.Engine
	sink    session.Sink
	settler session.Settler
	snaps   *Store
}

// NewManager wires the dependencies every created session shares. snaps
// may be nil when no redis is configured.
func NewManager(engine rules.Engine, sink session.Sink, settler session.Settler, snaps *Store) *Manager {
	return &Manager{
		sessions: make(map[string]*session.Session),
		engine:   engine,
		sink:     sink,
		settler:  settler,
		snaps:    snaps,
	}
}

// Get returns the session for roomID if one exists.
func (m *Manager) Get(roomID string) (*session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[roomID]
	return s, ok
}

// GetOrCreate returns the session for roomID, creating it lazily. Two
// simultaneous first-joiners observe the same session.
func (m *Manager) GetOrCreate(roomID string) *session.Session {
	m.mu.RLock()
	s, ok := m.sessions[roomID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[roomID]; ok {
		return s
	}
	var snaps session.SnapshotWriter
	if m.snaps != nil {
		snaps = m.snaps
	}
	s = session.New(roomID, m.engine.NewGame(), m.sink, m.settler, snaps)
	m.sessions[roomID] = s
	obslog.L().Info("room_create", zap.String("room_id", roomID), zap.String("game_id", s.GameID()))
	return s
}

// Join attaches the player to the room's session, creating it if needed.
func (m *Manager) Join(ctx context.Context, roomID string, p session.Player, pref session.Preference) (*session.Session, rules.Color, bool) {
	s := m.GetOrCreate(roomID)
	color, seated := s.Join(ctx, p, pref)
	return s, color, seated
}

// Snapshot returns the live snapshot for roomID, falling back to the
// snapshot store for rooms this process no longer holds in memory.
func (m *Manager) Snapshot(ctx context.Context, roomID string) (*session.Snapshot, error) {
	if s, ok := m.Get(roomID); ok {
		snap := s.Snapshot()
		return &snap, nil
	}
	if m.snaps == nil {
		return nil, nil
	}
	return m.snaps.Load(ctx, roomID)
}
