package rating

import (
	"context"
	"time"

	"chess-arena/internal/rules"
)

// CompletedGame is the write-once archive row for a finished game.
type CompletedGame struct {
	GameID    string
	RoomID    string
	WhiteID   string
	WhiteName string
	BlackID   string
	BlackName string
	Result    rules.Result
	Reason    string
	MovesUCI  []string
	MovesSAN  []string
	PGN       string
	StartedAt time.Time
	EndedAt   time.Time
}

// Store is the persistence contract the rating service depends on.
type Store interface {
	// User returns the record for id, or nil when no such user exists.
	User(ctx context.Context, id string) (*User, error)
	// SaveSettlement archives the game and, when delta is non-nil,
	// applies it to both user records. The whole write is atomic and
	// idempotent per game id: replaying a settlement that already
	// landed changes nothing.
	SaveSettlement(ctx context.Context, game CompletedGame, delta *Delta) error
}
