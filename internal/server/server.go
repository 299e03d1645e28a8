// Package server exposes the websocket and HTTP surface: game sockets,
// the presence snapshot and room state reads.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"chess-arena/internal/config"
	"chess-arena/internal/hub"
	"chess-arena/internal/obslog"
	"chess-arena/internal/room"
)

type Server struct {
	cfg   *config.Config
	reg   *hub.Registry
	rooms *room.Manager
	http  *http.Server
}

func New(cfg *config.Config, reg *hub.Registry, rooms *room.Manager) *Server {
	s := &Server{cfg: cfg, reg: reg, rooms: rooms}
	s.http = &http.Server{Addr: cfg.ListenAddr, Handler: s.Handler()}
	return s
}

// Handler builds the route table; exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /online-users", s.handleOnlineUsers)
	mux.HandleFunc("GET /rooms/{room}", s.handleRoomState)
	mux.HandleFunc("GET /ws/{room}", s.handleWS)
	return mux
}

func (s *Server) ListenAndServe() error {
	obslog.L().Info("server_listen", zap.String("addr", s.cfg.ListenAddr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "chess arena is running"})
}

func (s *Server) handleOnlineUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.ListActive())
}

func (s *Server) handleRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	snap, err := s.rooms.Snapshot(r.Context(), roomID)
	if err != nil {
		obslog.L().Warn("room_state_error", zap.String("room_id", roomID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "room lookup failed"})
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
