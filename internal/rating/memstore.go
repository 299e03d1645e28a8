package rating

import (
	"context"
	"sync"
)

// MemStore is the in-memory Store used by tests and by DB-less dev runs.
type MemStore struct {
	mu    sync.Mutex
	users map[string]User
	games map[string]CompletedGame
}

func NewMemStore() *MemStore {
	return &MemStore{
		users: make(map[string]User),
		games: make(map[string]CompletedGame),
	}
}

// Put seeds or replaces a user record.
func (m *MemStore) Put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemStore) User(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemStore) SaveSettlement(_ context.Context, game CompletedGame, delta *Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[game.GameID]; exists {
		return nil
	}
	m.games[game.GameID] = game
	if delta == nil {
		return nil
	}
	if u, ok := m.users[delta.WhiteID]; ok {
		u.Rating = delta.WhiteRating
		u.Wins += delta.WhiteWins
		u.Losses += delta.WhiteLosses
		u.Draws += delta.WhiteDraws
		m.users[delta.WhiteID] = u
	}
	if u, ok := m.users[delta.BlackID]; ok {
		u.Rating = delta.BlackRating
		u.Wins += delta.BlackWins
		u.Losses += delta.BlackLosses
		u.Draws += delta.BlackDraws
		m.users[delta.BlackID] = u
	}
	return nil
}

// Games returns the archived games, for inspection in tests.
func (m *MemStore) Games() []CompletedGame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletedGame, 0, len(m.games))
	for _, g := range m.games {
		out = append(out, g)
	}
	return out
}
