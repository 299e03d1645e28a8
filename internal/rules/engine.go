// Package rules is the boundary to the chess rules engine. The rest of
// the server only sees positions as FEN strings, moves as two-square UCI
// notation and a terminal verdict; legality and termination detection are
// delegated here.
package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Result is the outcome of a finished game.
type Result string

const (
	WhiteWins Result = "white"
	BlackWins Result = "black"
	DrawGame  Result = "draw"
)

// ResultFor maps a winning side to its result token.
func ResultFor(winner Color) Result {
	if winner == Black {
		return BlackWins
	}
	return WhiteWins
}

// Verdict classifies a position. Over implies Result and Reason are set.
type Verdict struct {
	Over   bool
	Result Result
	Reason string
}

// Game is one game's evolving position.
type Game interface {
	// FEN returns the current position, turn owner and castling /
	// en-passant bookkeeping included.
	FEN() string
	// Turn returns the side to move.
	Turn() Color
	// Apply validates uci against the current position and plays it,
	// returning the SAN spelling of the move. The position is unchanged
	// when an error is returned.
	Apply(uci string) (san string, err error)
	// Verdict classifies the current position.
	Verdict() Verdict
}

// Engine creates games.
type Engine interface {
	NewGame() Game
}

type chessEngine struct{}

// NewEngine returns the corentings/chess backed engine.
func NewEngine() Engine { return chessEngine{} }

func (chessEngine) NewGame() Game { return &chessGame{g: nchess.NewGame()} }

type chessGame struct {
	g *nchess.Game
}

func (cg *chessGame) FEN() string { return cg.g.FEN() }

func (cg *chessGame) Turn() Color {
	if cg.g.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// Apply fails closed: any fault inside the engine delegation, panics
// included, is reported as a rejected move and never mutates the game.
func (cg *chessGame) Apply(uci string) (san string, err error) {
	defer func() {
		if r := recover(); r != nil {
			san, err = "", fmt.Errorf("rules engine fault: %v", r)
		}
	}()

	uci = strings.ToLower(strings.TrimSpace(uci))
	if uci == "" {
		return "", fmt.Errorf("empty move")
	}
	pos := cg.g.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return "", err
	}
	if err := cg.g.Move(mv, nil); err != nil {
		return "", err
	}
	san = nchess.AlgebraicNotation{}.Encode(pos, mv)
	cg.claimAutomaticDraws()
	return san, nil
}

// claimAutomaticDraws claims threefold-repetition and fifty-move draws on
// the players' behalf. The engine only ends such games when a side claims,
// but this server treats claimable draws as terminal.
func (cg *chessGame) claimAutomaticDraws() {
	if cg.g.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range cg.g.EligibleDraws() {
		switch m {
		case nchess.ThreefoldRepetition, nchess.FiftyMoveRule:
			_ = cg.g.Draw(m)
			return
		}
	}
}

func (cg *chessGame) Verdict() Verdict {
	switch cg.g.Outcome() {
	case nchess.WhiteWon:
		return Verdict{Over: true, Result: WhiteWins, Reason: reasonFrom(cg.g.Method())}
	case nchess.BlackWon:
		return Verdict{Over: true, Result: BlackWins, Reason: reasonFrom(cg.g.Method())}
	case nchess.Draw:
		return Verdict{Over: true, Result: DrawGame, Reason: reasonFrom(cg.g.Method())}
	default:
		return Verdict{}
	}
}

func reasonFrom(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.Resignation:
		return "resignation"
	default:
		return "draw"
	}
}
