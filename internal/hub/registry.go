// Package hub tracks live connections and fans out room broadcasts.
package hub

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"chess-arena/internal/obslog"
	"chess-arena/internal/session"
	"chess-arena/pkg/wire"
)

// Registry is the process-wide table of open connections, keyed by the
// connection object, with a secondary room index for broadcasting.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
	rooms map[string]map[*Conn]struct{}

	outboxSize   int
	writeTimeout time.Duration
}

func NewRegistry(outboxSize int, writeTimeout time.Duration) *Registry {
	return &Registry{
		conns:        make(map[*Conn]struct{}),
		rooms:        make(map[string]map[*Conn]struct{}),
		outboxSize:   outboxSize,
		writeTimeout: writeTimeout,
	}
}

// Register adds a connection for the given identity. sock may be nil in
// tests; frames then stay readable on the connection's outbox.
func (r *Registry) Register(userID, name string, guest bool, sock *websocket.Conn) *Conn {
	c := newConn(userID, name, guest, sock, r.outboxSize)
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
	return c
}

// Unregister removes the connection from the registry and its room and
// stops its writer. Presence listings exclude it immediately.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	for roomID, members := range r.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	r.mu.Unlock()
	c.close()
}

// Attach binds the connection to a room; a connection belongs to at most
// one room, so any previous binding is dropped.
func (r *Registry) Attach(c *Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, members := range r.rooms {
		if id == roomID {
			continue
		}
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(r.rooms, id)
			}
		}
	}
	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(map[*Conn]struct{})
	}
	r.rooms[roomID][c] = struct{}{}
}

// ListActive snapshots the currently connected users, one entry per user
// identity, guests excluded.
func (r *Registry) ListActive() []wire.Presence {
	r.mu.RLock()
	byID := make(map[string]string)
	for c := range r.conns {
		if c.guest {
			continue
		}
		byID[c.userID] = c.name
	}
	r.mu.RUnlock()

	out := lo.MapToSlice(byID, func(id, name string) wire.Presence {
		return wire.Presence{UserID: id, Username: name}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// WriteTimeout returns the per-frame write budget for writer loops.
func (r *Registry) WriteTimeout() time.Duration { return r.writeTimeout }

// PublishState implements session.Sink: every connection attached to the
// room gets a state payload carrying its own seat color. Enqueueing is
// non-blocking, so this is safe to call from a session's critical
// section without a stalled peer stalling the room.
func (r *Registry) PublishState(u session.Update) {
	r.mu.RLock()
	members := make([]*Conn, 0, len(r.rooms[u.RoomID]))
	for c := range r.rooms[u.RoomID] {
		members = append(members, c)
	}
	r.mu.RUnlock()

	for _, c := range members {
		color := "spectator"
		if seat, ok := u.Seats[c.userID]; ok {
			color = string(seat)
		}
		msg := wire.State{
			Type:     wire.TypeState,
			FEN:      u.FEN,
			Color:    color,
			LastMove: u.LastMove,
			GameOver: u.Over,
			Result:   string(u.Result),
			Reason:   u.Reason,
		}
		if !u.Over {
			msg.Result, msg.Reason = "", ""
		}
		b, err := json.Marshal(msg)
		if err != nil {
			obslog.L().Error("state_marshal_error", zap.Error(err))
			return
		}
		c.enqueue(b)
	}
}

// SendError reports a rejected request to the originating connection
// only.
func (r *Registry) SendError(c *Conn, message string) {
	b, err := json.Marshal(wire.Error{Type: wire.TypeError, Message: message})
	if err != nil {
		return
	}
	c.enqueue(b)
}
