package rules

import (
	"strings"
	"testing"
)

func TestApplyOpeningMove(t *testing.T) {
	g := NewEngine().NewGame()
	if g.Turn() != White {
		t.Fatalf("expected white to move first, got %s", g.Turn())
	}
	san, err := g.Apply("e2e4")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if san != "e4" {
		t.Fatalf("expected SAN e4, got %q", san)
	}
	if g.Turn() != Black {
		t.Fatalf("expected black to move after e2e4, got %s", g.Turn())
	}
	if !strings.Contains(g.FEN(), " b ") {
		t.Fatalf("FEN should record black to move: %s", g.FEN())
	}
}

func TestApplyRejectionLeavesPositionUnchanged(t *testing.T) {
	g := NewEngine().NewGame()
	before := g.FEN()
	for _, uci := range []string{"", "e2e5", "e7e5", "zzzz", "e2e4x"} {
		if _, err := g.Apply(uci); err == nil {
			t.Fatalf("expected rejection for %q", uci)
		}
		if g.FEN() != before {
			t.Fatalf("position changed by rejected move %q: %s", uci, g.FEN())
		}
	}
	if g.Turn() != White {
		t.Fatalf("turn changed by rejected moves: %s", g.Turn())
	}
}

func TestSameMoveTwiceRejected(t *testing.T) {
	g := NewEngine().NewGame()
	if _, err := g.Apply("e2e4"); err != nil {
		t.Fatalf("first e2e4: %v", err)
	}
	// e2 is now empty and it is black's turn
	if _, err := g.Apply("e2e4"); err == nil {
		t.Fatalf("expected second e2e4 to be rejected")
	}
}

func TestFoolsMateVerdict(t *testing.T) {
	g := NewEngine().NewGame()
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if _, err := g.Apply(uci); err != nil {
			t.Fatalf("Apply %s: %v", uci, err)
		}
	}
	v := g.Verdict()
	if !v.Over {
		t.Fatalf("expected game over after fool's mate")
	}
	if v.Result != BlackWins {
		t.Fatalf("expected black win, got %s", v.Result)
	}
	if v.Reason != "checkmate" {
		t.Fatalf("expected checkmate, got %q", v.Reason)
	}
}

func TestOngoingVerdict(t *testing.T) {
	g := NewEngine().NewGame()
	if v := g.Verdict(); v.Over {
		t.Fatalf("fresh game should not be over: %+v", v)
	}
	if _, err := g.Apply("e2e4"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v := g.Verdict(); v.Over {
		t.Fatalf("game should still be ongoing: %+v", v)
	}
}

func TestColorOther(t *testing.T) {
	if White.Other() != Black || Black.Other() != White {
		t.Fatalf("Other is not an involution")
	}
}
