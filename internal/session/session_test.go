package session

import (
	"context"
	"sync"
	"testing"

	"chess-arena/internal/rules"
)

type captureSink struct {
	mu      sync.Mutex
	updates []Update
}

func (c *captureSink) PublishState(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
}

func (c *captureSink) last(t *testing.T) Update {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.updates) == 0 {
		t.Fatalf("no updates published")
	}
	return c.updates[len(c.updates)-1]
}

type captureSettler struct {
	mu    sync.Mutex
	calls int
	last  Settlement
}

func (c *captureSettler) Settle(_ context.Context, st Settlement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.last = st
	return nil
}

func newTestSession(t *testing.T) (*Session, *captureSink, *captureSettler) {
	t.Helper()
	sink := &captureSink{}
	settler := &captureSettler{}
	s := New("r1", rules.NewEngine().NewGame(), sink, settler, nil)
	return s, sink, settler
}

func seatBoth(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	if c, seated := s.Join(ctx, Player{ID: "u1", Name: "Alice"}, PrefWhite); !seated || c != rules.White {
		t.Fatalf("u1: expected white seat, got %v seated=%v", c, seated)
	}
	if c, seated := s.Join(ctx, Player{ID: "u2", Name: "Bob"}, PrefAuto); !seated || c != rules.Black {
		t.Fatalf("u2: expected black seat, got %v seated=%v", c, seated)
	}
}

func TestAutoFirstJoinerGetsWhite(t *testing.T) {
	s, _, _ := newTestSession(t)
	c, seated := s.Join(context.Background(), Player{ID: "u1"}, PrefAuto)
	if !seated || c != rules.White {
		t.Fatalf("expected white, got %v seated=%v", c, seated)
	}
	if s.Status() != StatusAwaiting {
		t.Fatalf("one seated player should leave session awaiting, got %s", s.Status())
	}
}

func TestFirstJoinerPreferenceHonored(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	if c, _ := s.Join(ctx, Player{ID: "u1"}, PrefBlack); c != rules.Black {
		t.Fatalf("expected black for preference black, got %v", c)
	}
	if c, _ := s.Join(ctx, Player{ID: "u2"}, PrefBlack); c != rules.White {
		t.Fatalf("second joiner must take the free seat, got %v", c)
	}
	if s.Status() != StatusInProgress {
		t.Fatalf("two seated players should start the game, got %s", s.Status())
	}
}

func TestPreferenceCollisionGivesFreeSeat(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	if c, _ := s.Join(ctx, Player{ID: "a"}, PrefWhite); c != rules.White {
		t.Fatalf("a should get white")
	}
	if c, _ := s.Join(ctx, Player{ID: "b"}, PrefWhite); c != rules.Black {
		t.Fatalf("b wanted white but must get black")
	}
	if s.Status() != StatusInProgress {
		t.Fatalf("expected in progress, got %s", s.Status())
	}
}

func TestRejoinKeepsSeat(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	seatBoth(t, s)
	if c, seated := s.Join(ctx, Player{ID: "u1", Name: "Alice"}, PrefBlack); !seated || c != rules.White {
		t.Fatalf("rejoin must re-bind the original seat, got %v seated=%v", c, seated)
	}
}

func TestThirdJoinerSpectates(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	seatBoth(t, s)
	if _, seated := s.Join(ctx, Player{ID: "u3"}, PrefWhite); seated {
		t.Fatalf("third distinct joiner must be a spectator")
	}
	if err := s.SubmitMove(ctx, "u3", "e2e4"); err != ErrNotSeated {
		t.Fatalf("expected ErrNotSeated for spectator move, got %v", err)
	}
}

func TestMoveBeforeOpponentJoins(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	s.Join(ctx, Player{ID: "u1"}, PrefWhite)
	if err := s.SubmitMove(ctx, "u1", "e2e4"); err != ErrNotInProgress {
		t.Fatalf("expected ErrNotInProgress, got %v", err)
	}
}

func TestTurnAlternation(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	seatBoth(t, s)

	if err := s.SubmitMove(ctx, "u2", "e7e5"); err != ErrOutOfTurn {
		t.Fatalf("black moving first should be out of turn, got %v", err)
	}
	if err := s.SubmitMove(ctx, "u1", "e2e4"); err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	if err := s.SubmitMove(ctx, "u1", "d2d4"); err != ErrOutOfTurn {
		t.Fatalf("white moving twice should be out of turn, got %v", err)
	}
	if err := s.SubmitMove(ctx, "u2", "e7e5"); err != nil {
		t.Fatalf("e7e5: %v", err)
	}
	if got := len(s.History()); got != 2 {
		t.Fatalf("expected 2 accepted moves, got %d", got)
	}
}

func TestRejectionMutatesNothing(t *testing.T) {
	s, sink, _ := newTestSession(t)
	ctx := context.Background()
	seatBoth(t, s)
	if err := s.SubmitMove(ctx, "u1", "e2e4"); err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	before := s.Snapshot()
	published := len(sink.updates)

	if err := s.SubmitMove(ctx, "u2", "e2e4"); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	after := s.Snapshot()
	if after.FEN != before.FEN || len(after.MovesUCI) != len(before.MovesUCI) {
		t.Fatalf("rejected move mutated state: %+v vs %+v", before, after)
	}
	if len(sink.updates) != published {
		t.Fatalf("rejected move must not broadcast")
	}
}

func TestCheckmateFinishesAndSettlesOnce(t *testing.T) {
	s, sink, settler := newTestSession(t)
	ctx := context.Background()
	seatBoth(t, s)

	moves := []struct{ user, uci string }{
		{"u1", "f2f3"}, {"u2", "e7e5"}, {"u1", "g2g4"}, {"u2", "d8h4"},
	}
	for _, m := range moves {
		if err := s.SubmitMove(ctx, m.user, m.uci); err != nil {
			t.Fatalf("SubmitMove %s %s: %v", m.user, m.uci, err)
		}
	}

	if s.Status() != StatusFinished {
		t.Fatalf("expected finished, got %s", s.Status())
	}
	u := sink.last(t)
	if !u.Over || u.Result != rules.BlackWins || u.Reason != "checkmate" {
		t.Fatalf("terminal broadcast wrong: %+v", u)
	}
	if settler.calls != 1 {
		t.Fatalf("expected exactly one settlement, got %d", settler.calls)
	}
	if settler.last.White.ID != "u1" || settler.last.Black.ID != "u2" {
		t.Fatalf("settlement players wrong: %+v", settler.last)
	}
	if len(settler.last.MovesUCI) != 4 || len(settler.last.MovesSAN) != 4 {
		t.Fatalf("settlement move lists wrong: %+v", settler.last)
	}

	// terminal state is absorbing
	snapBefore := s.Snapshot()
	if err := s.SubmitMove(ctx, "u1", "a2a3"); err != ErrNotInProgress {
		t.Fatalf("expected ErrNotInProgress after finish, got %v", err)
	}
	if settler.calls != 1 {
		t.Fatalf("second settlement after finish: %d calls", settler.calls)
	}
	if got := s.Snapshot(); got.FEN != snapBefore.FEN || len(got.MovesUCI) != len(snapBefore.MovesUCI) {
		t.Fatalf("finished session mutated by move attempt")
	}
}

func TestForfeitAwardsOpponent(t *testing.T) {
	s, sink, settler := newTestSession(t)
	ctx := context.Background()
	seatBoth(t, s)

	if !s.Forfeit(ctx, "u2", "abandonment") {
		t.Fatalf("expected forfeit to apply")
	}
	if s.Status() != StatusFinished {
		t.Fatalf("expected finished, got %s", s.Status())
	}
	u := sink.last(t)
	if !u.Over || u.Result != rules.WhiteWins || u.Reason != "abandonment" {
		t.Fatalf("forfeit broadcast wrong: %+v", u)
	}
	if settler.calls != 1 {
		t.Fatalf("expected one settlement, got %d", settler.calls)
	}
	// repeat is a no-op
	if s.Forfeit(ctx, "u1", "abandonment") {
		t.Fatalf("forfeit on finished game must not apply")
	}
	if settler.calls != 1 {
		t.Fatalf("forfeit retriggered settlement")
	}
}

func TestForfeitIgnoresSpectatorsAndAwaiting(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	s.Join(ctx, Player{ID: "u1"}, PrefAuto)
	if s.Forfeit(ctx, "u1", "abandonment") {
		t.Fatalf("awaiting game must not forfeit")
	}
	s.Join(ctx, Player{ID: "u2"}, PrefAuto)
	if s.Forfeit(ctx, "ghost", "abandonment") {
		t.Fatalf("non-seated identity must not forfeit")
	}
}

func TestBroadcastOrderFollowsAcceptance(t *testing.T) {
	s, sink, _ := newTestSession(t)
	ctx := context.Background()
	seatBoth(t, s)

	moves := []struct{ user, uci string }{
		{"u1", "e2e4"}, {"u2", "e7e5"}, {"u1", "g1f3"}, {"u2", "b8c6"},
	}
	for _, m := range moves {
		if err := s.SubmitMove(ctx, m.user, m.uci); err != nil {
			t.Fatalf("SubmitMove %s: %v", m.uci, err)
		}
	}

	// skip the two join broadcasts, then check move broadcasts in order
	got := sink.updates[len(sink.updates)-len(moves):]
	hist := s.History()
	for i, u := range got {
		if u.LastMove != moves[i].uci {
			t.Fatalf("broadcast %d: expected last_move %s, got %s", i, moves[i].uci, u.LastMove)
		}
		if u.FEN != hist[i].FEN {
			t.Fatalf("broadcast %d: FEN does not match the applied move", i)
		}
	}
}

func TestParsePreference(t *testing.T) {
	cases := map[string]Preference{
		"white": PrefWhite, "W": PrefWhite, "black": PrefBlack, "b": PrefBlack,
		"auto": PrefAuto, "": PrefAuto, "any": PrefAuto, "purple": PrefAuto,
	}
	for in, want := range cases {
		if got := ParsePreference(in); got != want {
			t.Fatalf("ParsePreference(%q) = %v, want %v", in, got, want)
		}
	}
}
