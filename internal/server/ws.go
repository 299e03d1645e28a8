package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chess-arena/internal/obslog"
	"chess-arena/internal/rules"
	"chess-arena/internal/session"
	"chess-arena/pkg/wire"
)

// handleWS drives one client connection: handshake, seat assignment,
// then a read loop feeding the room's session until disconnect.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("user_id"))
	name := strings.TrimSpace(q.Get("username"))
	pref := session.ParsePreference(q.Get("preferred"))

	guest := userID == ""
	if guest {
		userID = "guest-" + uuid.NewString()[:8]
	}
	if name == "" {
		name = userID
	}

	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	defer sock.Close(websocket.StatusInternalError, "closing")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := s.reg.Register(userID, name, guest, sock)
	defer s.reg.Unregister(c)
	go c.WriteLoop(ctx, s.reg.WriteTimeout())

	// attach before joining so the joiner receives its own join
	// broadcast
	s.reg.Attach(c, roomID)
	sess, color, seated := s.rooms.Join(ctx, roomID, session.Player{ID: userID, Name: name}, pref)
	obslog.L().Info("ws_join",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.String("color", seatLabel(color, seated)),
		zap.Bool("guest", guest),
	)

	for {
		var msg wire.ClientMessage
		if err := wsjson.Read(ctx, sock, &msg); err != nil {
			break
		}
		switch msg.Type {
		case wire.TypeMove:
			if err := sess.SubmitMove(ctx, userID, msg.Move); err != nil {
				s.reg.SendError(c, rejectionMessage(err))
			}
		default:
			s.reg.SendError(c, "unknown message type")
		}
	}

	obslog.L().Info("ws_leave", zap.String("room_id", roomID), zap.String("user_id", userID))
	if s.cfg.DisconnectForfeit && seated {
		// detach ctx: the request context is already done
		sess.Forfeit(context.Background(), userID, "abandonment")
	}
	sock.Close(websocket.StatusNormalClosure, "bye")
}

func seatLabel(color rules.Color, seated bool) string {
	if !seated {
		return "spectator"
	}
	return string(color)
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNotInProgress):
		return "game is not in progress"
	case errors.Is(err, session.ErrNotSeated):
		return "spectators cannot make moves"
	case errors.Is(err, session.ErrOutOfTurn):
		return "it is not your turn"
	case errors.Is(err, session.ErrIllegalMove):
		return "invalid move"
	default:
		return "move rejected"
	}
}
