// Package session owns the per-room game state machine: seat assignment,
// strict move alternation, termination detection and one-shot settlement.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess-arena/internal/obslog"
	"chess-arena/internal/rules"
)

// Session is the state machine for one room's game. All mutations
// serialize on the session mutex; independent rooms never contend.
type Session struct {
	roomID string
	gameID string

	mu        sync.Mutex
	game      rules.Game
	status    Status
	seats     map[rules.Color]Player
	history   []MoveRecord
	result    rules.Result
	reason    string
	settled   bool
	createdAt time.Time
	updatedAt time.Time

	sink    Sink
	settler Settler
	snaps   SnapshotWriter
}

// New creates a session for roomID with an empty board. sink, settler and
// snaps may be nil (broadcasts, settlement or snapshots are then skipped).
func New(roomID string, game rules.Game, sink Sink, settler Settler, snaps SnapshotWriter) *Session {
	now := time.Now()
	return &Session{
		roomID:    roomID,
		gameID:    uuid.NewString(),
		game:      game,
		status:    StatusAwaiting,
		seats:     make(map[rules.Color]Player, 2),
		createdAt: now,
		updatedAt: now,
		sink:      sink,
		settler:   settler,
		snaps:     snaps,
	}
}

// RoomID returns the room this session belongs to.
func (s *Session) RoomID() string { return s.roomID }

// GameID returns the stable identifier used for idempotent settlement.
func (s *Session) GameID() string { return s.gameID }

// Join seats the player or attaches them as a spectator, then broadcasts
// the current state to the whole room. Policy, in order: a rejoining seat
// holder keeps their seat; with both seats free the preference decides
// (auto means white); with one seat free the joiner takes it regardless
// of preference; with both taken the joiner spectates.
func (s *Session) Join(ctx context.Context, p Player, pref Preference) (rules.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	color, seated := s.assignSeatLocked(p, pref)
	if seated && s.status == StatusAwaiting && len(s.seats) == 2 {
		s.status = StatusInProgress
		obslog.L().Info("game_start",
			zap.String("room_id", s.roomID),
			zap.String("game_id", s.gameID),
			zap.String("white", s.seats[rules.White].ID),
			zap.String("black", s.seats[rules.Black].ID),
		)
	}
	s.touchLocked()
	s.publishLocked("")
	s.writeSnapshotLocked(ctx)
	return color, seated
}

func (s *Session) assignSeatLocked(p Player, pref Preference) (rules.Color, bool) {
	for c, holder := range s.seats {
		if holder.ID == p.ID {
			return c, true
		}
	}
	switch len(s.seats) {
	case 0:
		c := rules.White
		if pref == PrefBlack {
			c = rules.Black
		}
		s.seats[c] = p
		return c, true
	case 1:
		c := rules.White
		if _, taken := s.seats[rules.White]; taken {
			c = rules.Black
		}
		s.seats[c] = p
		return c, true
	default:
		return "", false
	}
}

// SubmitMove validates turn ownership, delegates legality to the rules
// engine and, on acceptance, updates state and broadcasts. A returned
// error means nothing changed.
func (s *Session) SubmitMove(ctx context.Context, userID, uci string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return ErrNotInProgress
	}
	color, ok := s.seatOfLocked(userID)
	if !ok {
		return ErrNotSeated
	}
	if color != s.game.Turn() {
		return ErrOutOfTurn
	}

	san, err := s.game.Apply(uci)
	if err != nil {
		obslog.L().Debug("move_rejected",
			zap.String("room_id", s.roomID),
			zap.String("user_id", userID),
			zap.String("uci", uci),
			zap.Error(err),
		)
		return ErrIllegalMove
	}

	rec := MoveRecord{UCI: normalizeUCI(uci), SAN: san, FEN: s.game.FEN()}
	s.history = append(s.history, rec)
	s.touchLocked()

	if v := s.game.Verdict(); v.Over {
		s.finishLocked(ctx, v.Result, v.Reason)
	}
	obslog.L().Info("move_played",
		zap.String("room_id", s.roomID),
		zap.String("game_id", s.gameID),
		zap.String("user_id", userID),
		zap.String("uci", rec.UCI),
		zap.String("san", rec.SAN),
		zap.String("status", string(s.status)),
	)
	s.publishLocked(rec.UCI)
	s.writeSnapshotLocked(ctx)
	return nil
}

// Forfeit ends an in-progress game against userID, awarding the win to
// the opponent. Used by the disconnect-forfeit policy. Returns false when
// the user holds no seat or the game is not in progress.
func (s *Session) Forfeit(ctx context.Context, userID, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return false
	}
	color, ok := s.seatOfLocked(userID)
	if !ok {
		return false
	}
	s.finishLocked(ctx, rules.ResultFor(color.Other()), reason)
	s.touchLocked()
	s.publishLocked("")
	s.writeSnapshotLocked(ctx)
	return true
}

// finishLocked transitions to Finished and settles exactly once. The
// settled flag guards against a second settlement even if a later code
// path tries to finish an already finished game.
func (s *Session) finishLocked(ctx context.Context, result rules.Result, reason string) {
	if s.status == StatusFinished {
		return
	}
	s.status = StatusFinished
	s.result = result
	s.reason = reason
	obslog.L().Info("game_over",
		zap.String("room_id", s.roomID),
		zap.String("game_id", s.gameID),
		zap.String("result", string(result)),
		zap.String("reason", reason),
	)

	if s.settled || s.settler == nil {
		return
	}
	s.settled = true
	white, wok := s.seats[rules.White]
	black, bok := s.seats[rules.Black]
	if !wok || !bok {
		obslog.L().Warn("settlement_skipped_unseated", zap.String("room_id", s.roomID))
		return
	}
	st := Settlement{
		GameID:    s.gameID,
		RoomID:    s.roomID,
		White:     white,
		Black:     black,
		Result:    result,
		Reason:    reason,
		MovesUCI:  movesOf(s.history, func(m MoveRecord) string { return m.UCI }),
		MovesSAN:  movesOf(s.history, func(m MoveRecord) string { return m.SAN }),
		StartedAt: s.createdAt,
		EndedAt:   time.Now(),
	}
	if err := s.settler.Settle(ctx, st); err != nil {
		obslog.L().Error("settlement_error",
			zap.String("room_id", s.roomID),
			zap.String("game_id", s.gameID),
			zap.Error(err),
		)
	}
}

func (s *Session) publishLocked(lastMove string) {
	if s.sink == nil {
		return
	}
	seats := make(map[string]rules.Color, len(s.seats))
	for c, p := range s.seats {
		seats[p.ID] = c
	}
	s.sink.PublishState(Update{
		RoomID:   s.roomID,
		FEN:      s.game.FEN(),
		LastMove: lastMove,
		Seats:    seats,
		Over:     s.status == StatusFinished,
		Result:   s.result,
		Reason:   s.reason,
	})
}

func (s *Session) writeSnapshotLocked(ctx context.Context) {
	if s.snaps == nil {
		return
	}
	if err := s.snaps.Write(ctx, s.snapshotLocked()); err != nil {
		obslog.L().Warn("snapshot_write_error", zap.String("room_id", s.roomID), zap.Error(err))
	}
}

// Snapshot returns a copy of the externally visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		RoomID:    s.roomID,
		GameID:    s.gameID,
		FEN:       s.game.FEN(),
		Status:    s.status,
		MovesUCI:  movesOf(s.history, func(m MoveRecord) string { return m.UCI }),
		Result:    s.result,
		Reason:    s.reason,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if p, ok := s.seats[rules.White]; ok {
		white := p
		snap.White = &white
	}
	if p, ok := s.seats[rules.Black]; ok {
		black := p
		snap.Black = &black
	}
	return snap
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SeatOf reports the seat held by userID, if any.
func (s *Session) SeatOf(userID string) (rules.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seatOfLocked(userID)
}

// History returns a copy of the accepted move list.
func (s *Session) History() []MoveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MoveRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) seatOfLocked(userID string) (rules.Color, bool) {
	for c, p := range s.seats {
		if p.ID == userID {
			return c, true
		}
	}
	return "", false
}

func (s *Session) touchLocked() { s.updatedAt = time.Now() }

func movesOf(history []MoveRecord, f func(MoveRecord) string) []string {
	out := make([]string, len(history))
	for i, m := range history {
		out[i] = f(m)
	}
	return out
}

func normalizeUCI(uci string) string {
	return strings.ToLower(strings.TrimSpace(uci))
}
