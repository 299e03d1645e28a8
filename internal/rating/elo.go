// Package rating applies the one-time Elo settlement when a game ends.
package rating

import (
	"math"

	"chess-arena/internal/rules"
)

// User is the persisted rating record for one player.
type User struct {
	ID     string
	Name   string
	Rating int
	Wins   int
	Losses int
	Draws  int
}

// Delta is the precomputed outcome of one game for both players: new
// ratings plus counter increments. It is computed once and applied as-is
// on retry so a retried write can never double-count.
type Delta struct {
	WhiteID     string
	WhiteRating int
	WhiteWins   int
	WhiteLosses int
	WhiteDraws  int

	BlackID     string
	BlackRating int
	BlackWins   int
	BlackLosses int
	BlackDraws  int
}

// ComputeDelta derives both players' new ratings from the result.
// Expected score Ea = 1/(1+10^((Rb-Ra)/400)); R' = R + K*(S-E), rounded
// and floored.
func ComputeDelta(white, black User, result rules.Result, k, floor int) Delta {
	ea := expectedScore(white.Rating, black.Rating)
	eb := 1 - ea

	var sa float64
	d := Delta{WhiteID: white.ID, BlackID: black.ID}
	switch result {
	case rules.WhiteWins:
		sa = 1
		d.WhiteWins, d.BlackLosses = 1, 1
	case rules.BlackWins:
		sa = 0
		d.BlackWins, d.WhiteLosses = 1, 1
	default:
		sa = 0.5
		d.WhiteDraws, d.BlackDraws = 1, 1
	}
	sb := 1 - sa

	d.WhiteRating = clampRating(white.Rating, float64(k)*(sa-ea), floor)
	d.BlackRating = clampRating(black.Rating, float64(k)*(sb-eb), floor)
	return d
}

func expectedScore(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/400))
}

func clampRating(old int, change float64, floor int) int {
	r := int(math.Round(float64(old) + change))
	if r < floor {
		return floor
	}
	return r
}
