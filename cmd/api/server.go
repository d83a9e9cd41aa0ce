package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"github.com/SuperJunier666/Chatroom/internal/auth"
	"github.com/SuperJunier666/Chatroom/internal/config"
	"github.com/SuperJunier666/Chatroom/internal/data"
	"github.com/SuperJunier666/Chatroom/internal/middleware"
	"github.com/SuperJunier666/Chatroom/internal/pairing"
	"github.com/SuperJunier666/Chatroom/internal/presence"
	"github.com/SuperJunier666/Chatroom/internal/relay"
	"github.com/SuperJunier666/Chatroom/internal/session"
)

type apiServer struct {
	cfg      *config.Config
	log      *slog.Logger
	ctrl     *session.Controller
	store    relay.Store
	registry *presence.Registry
	pairing  *pairing.Machine
	tokens   *auth.TokenManager
	upgrader websocket.Upgrader
	started  time.Time
}

func newAPIServer(
	cfg *config.Config,
	log *slog.Logger,
	ctrl *session.Controller,
	store relay.Store,
	registry *presence.Registry,
	machine *pairing.Machine,
	tokens *auth.TokenManager,
) *apiServer {
	return &apiServer{
		cfg:      cfg,
		log:      log,
		ctrl:     ctrl,
		store:    store,
		registry: registry,
		pairing:  machine,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		started: time.Now(),
	}
}

func (s *apiServer) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger(s.log))
	r.Use(chimw.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/history", s.handleHistory)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *apiServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn, s.cfg.SendBuffer, s.log)
	s.ctrl.Connect(client.id, client)

	go client.writePump()
	go client.readPump(s.ctrl)
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type historyEntry struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.ListPublicHistory(r.Context(), s.cfg.HistoryLimit)
	if err != nil {
		s.log.Error("list history", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	entries := lo.Map(msgs, func(m *data.PublicMessage, _ int) historyEntry {
		return historyEntry{Username: m.Username, Message: m.Body, Timestamp: m.SentAt}
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"messages": entries})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.tokens != nil {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := s.tokens.Verify(token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"online_users":    s.registry.Count(),
		"active_sessions": s.pairing.ActiveSessions(),
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", "error", err)
	}
}
