package rating

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chess-arena/internal/obslog"
	"chess-arena/internal/session"
)

// Service settles finished games: it computes the Elo delta once from
// the pre-game ratings and persists it together with the game archive
// row. Persistence failures are retried with the same delta.
type Service struct {
	store   Store
	k       int
	floor   int
	retries int
	backoff time.Duration
}

func NewService(store Store, k, floor int) *Service {
	return &Service{
		store:   store,
		k:       k,
		floor:   floor,
		retries: 3,
		backoff: 200 * time.Millisecond,
	}
}

// Settle implements session.Settler. When either seat holder has no
// record in the store (guests), the game is archived without touching
// ratings.
func (s *Service) Settle(ctx context.Context, st session.Settlement) error {
	if s == nil || s.store == nil {
		return nil
	}

	white, err := s.store.User(ctx, st.White.ID)
	if err != nil {
		return fmt.Errorf("load white %s: %w", st.White.ID, err)
	}
	black, err := s.store.User(ctx, st.Black.ID)
	if err != nil {
		return fmt.Errorf("load black %s: %w", st.Black.ID, err)
	}

	var delta *Delta
	if white != nil && black != nil {
		d := ComputeDelta(*white, *black, st.Result, s.k, s.floor)
		delta = &d
	}

	game := CompletedGame{
		GameID:    st.GameID,
		RoomID:    st.RoomID,
		WhiteID:   st.White.ID,
		WhiteName: st.White.Name,
		BlackID:   st.Black.ID,
		BlackName: st.Black.Name,
		Result:    st.Result,
		Reason:    st.Reason,
		MovesUCI:  st.MovesUCI,
		MovesSAN:  st.MovesSAN,
		StartedAt: st.StartedAt,
		EndedAt:   st.EndedAt,
	}
	game.PGN = buildPGN(game)

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}
		if lastErr = s.store.SaveSettlement(ctx, game, delta); lastErr == nil {
			obslog.L().Info("settlement_applied",
				zap.String("game_id", game.GameID),
				zap.String("room_id", game.RoomID),
				zap.String("result", string(game.Result)),
				zap.Bool("rated", delta != nil),
			)
			return nil
		}
		obslog.L().Warn("settlement_retry",
			zap.String("game_id", game.GameID),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("settle game %s: %w", game.GameID, lastErr)
}

func buildPGN(g CompletedGame) string {
	var b strings.Builder
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(g.RoomID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(g.WhiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(g.BlackName)))
	if strings.TrimSpace(g.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(g.Reason))))
	}
	pgnResult := mapResultToPGN(string(g.Result))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(g.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", (i/2)+1, strings.TrimSpace(g.MovesSAN[i])))
		if i+1 < len(g.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
