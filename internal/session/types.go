package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"chess-arena/internal/rules"
)

// Status is the lifecycle state of a session. Finished is terminal.
type Status string

const (
	StatusAwaiting   Status = "AWAITING_OPPONENT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
)

// Move-submission rejections. Reported to the originating connection
// only; the session state is untouched by a rejected attempt.
var (
	ErrNotInProgress = errors.New("game is not in progress")
	ErrNotSeated     = errors.New("spectators cannot make moves")
	ErrOutOfTurn     = errors.New("it is not your turn")
	ErrIllegalMove   = errors.New("invalid move")
)

// Player identifies a seat holder. ID is the stable user identity a seat
// is keyed by; a replaced connection re-binds to the same seat.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Preference is the requested color at join time.
type Preference string

const (
	PrefAuto  Preference = "auto"
	PrefWhite Preference = "white"
	PrefBlack Preference = "black"
)

// ParsePreference accepts white/black and their single-letter forms;
// anything else means auto.
func ParsePreference(s string) Preference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return PrefWhite
	case "black", "b":
		return PrefBlack
	default:
		return PrefAuto
	}
}

// MoveRecord is one accepted move and the position it produced.
type MoveRecord struct {
	UCI string `json:"uci"`
	SAN string `json:"san"`
	FEN string `json:"fen"`
}

// Update is a state broadcast for one room. Seats maps user identity to
// seat color so the sink can personalize the payload per recipient.
type Update struct {
	RoomID   string
	FEN      string
	LastMove string
	Seats    map[string]rules.Color
	Over     bool
	Result   rules.Result
	Reason   string
}

// Sink receives state updates for fan-out to a room's connections.
// PublishState must not block; it is called while the session lock is
// held so that updates are emitted in move-acceptance order.
type Sink interface {
	PublishState(u Update)
}

// Settlement is the one-time rating/archive payload for a finished game.
type Settlement struct {
	GameID    string
	RoomID    string
	White     Player
	Black     Player
	Result    rules.Result
	Reason    string
	MovesUCI  []string
	MovesSAN  []string
	StartedAt time.Time
	EndedAt   time.Time
}

// Settler applies a settlement. Implementations must be idempotent per
// GameID; the session guarantees at most one call per game regardless.
type Settler interface {
	Settle(ctx context.Context, st Settlement) error
}

// SnapshotWriter persists session snapshots after each mutation.
type SnapshotWriter interface {
	Write(ctx context.Context, snap Snapshot) error
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	RoomID    string       `json:"room_id"`
	GameID    string       `json:"game_id"`
	FEN       string       `json:"fen"`
	Status    Status       `json:"status"`
	White     *Player      `json:"white,omitempty"`
	Black     *Player      `json:"black,omitempty"`
	MovesUCI  []string     `json:"moves_uci"`
	Result    rules.Result `json:"result,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
