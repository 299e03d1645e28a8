// Package wire defines the JSON messages exchanged with clients.
// It stays dependency-free so transports and tests can share it.
package wire

// Message types.
const (
	TypeState = "state"
	TypeError = "error"
	TypeMove  = "move"
)

// ClientMessage is an inbound frame from a connected client.
type ClientMessage struct {
	Type string `json:"type"`
	Move string `json:"move,omitempty"`
}

// State carries the board position to one recipient. Color is the
// recipient's own seat ("white", "black" or "spectator"), so the same
// broadcast produces a different payload per connection.
type State struct {
	Type     string `json:"type"`
	FEN      string `json:"fen"`
	Color    string `json:"color"`
	LastMove string `json:"last_move,omitempty"`
	GameOver bool   `json:"game_over,omitempty"`
	Result   string `json:"result,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Error is sent only to the connection whose request was rejected.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Presence is one entry of the online-users snapshot.
type Presence struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
