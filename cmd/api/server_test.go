package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SuperJunier666/Chatroom/internal/auth"
	"github.com/SuperJunier666/Chatroom/internal/config"
	"github.com/SuperJunier666/Chatroom/internal/data"
	"github.com/SuperJunier666/Chatroom/internal/event"
	"github.com/SuperJunier666/Chatroom/internal/middleware"
	"github.com/SuperJunier666/Chatroom/internal/pairing"
	"github.com/SuperJunier666/Chatroom/internal/presence"
	"github.com/SuperJunier666/Chatroom/internal/relay"
	"github.com/SuperJunier666/Chatroom/internal/session"
)

type stubStore struct {
	mu      sync.Mutex
	public  []*data.PublicMessage
	private []*data.PrivateMessage
}

func (s *stubStore) AppendPublic(_ context.Context, username, body string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.public = append(s.public, &data.PublicMessage{Username: username, Body: body, SentAt: now})
	return now, nil
}

func (s *stubStore) AppendPrivate(_ context.Context, sender, recipient, body string, delivered bool) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.private = append(s.private, &data.PrivateMessage{
		Sender: sender, Recipient: recipient, Body: body, SentAt: now, Delivered: delivered,
	})
	return now, nil
}

func (s *stubStore) FetchUndelivered(_ context.Context, recipient string) ([]*data.PrivateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*data.PrivateMessage
	for _, m := range s.private {
		if m.Recipient == recipient && !m.Delivered {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStore) MarkDelivered(_ context.Context, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.private {
		if m.Recipient == recipient {
			m.Delivered = true
		}
	}
	return nil
}

func (s *stubStore) ListPublicHistory(_ context.Context, limit int64) ([]*data.PublicMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.public
	if int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	out := make([]*data.PublicMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func newTestAPI(t *testing.T, statsSecret string) (*apiServer, *stubStore) {
	t.Helper()

	cfg := &config.Config{
		HistoryLimit: 50,
		SendBuffer:   16,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := &stubStore{}
	registry := presence.NewRegistry()
	machine := pairing.NewMachine(registry)
	hub := relay.NewHub()
	rly := relay.NewRelay(registry, hub, store, logger)
	limiter := middleware.NewLimiterStore(600, 100, time.Minute)
	t.Cleanup(limiter.Stop)

	ctrl := session.NewController(registry, machine, rly, hub, limiter, logger)

	var tokens *auth.TokenManager
	if statsSecret != "" {
		tokens = auth.NewTokenManager(statsSecret, time.Hour)
	}

	return newAPIServer(cfg, logger, ctrl, store, registry, machine, tokens), store
}

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestHistory(t *testing.T) {
	api, store := newTestAPI(t, "")

	ctx := context.Background()
	if _, err := store.AppendPublic(ctx, "alice", "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AppendPublic(ctx, "bob", "second"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body struct {
		Messages []historyEntry `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(body.Messages))
	}
	if body.Messages[0].Username != "alice" || body.Messages[0].Message != "first" {
		t.Errorf("unexpected first entry: %+v", body.Messages[0])
	}
	if body.Messages[1].Username != "bob" || body.Messages[1].Message != "second" {
		t.Errorf("unexpected second entry: %+v", body.Messages[1])
	}
}

func TestStatsOpenWithoutSecret(t *testing.T) {
	api, _ := newTestAPI(t, "")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestStatsRequiresToken(t *testing.T) {
	api, _ := newTestAPI(t, "test-secret-key")
	router := api.routes()

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 with bad token, got %d", rec.Code)
	}

	token, _, err := api.tokens.Generate("ops")
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 with valid token, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, field := range []string{"online_users", "active_sessions", "uptime_seconds"} {
		if _, ok := body[field]; !ok {
			t.Errorf("stats response missing %q", field)
		}
	}
}

type wireEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wireEnvelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var env wireEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, eventName string, data any) {
	t.Helper()
	if err := conn.WriteJSON(event.Envelope{Event: eventName, Data: data}); err != nil {
		t.Fatalf("write envelope: %v", err)
	}
}

func TestWebSocketJoinAndChat(t *testing.T) {
	api, _ := newTestAPI(t, "")
	ts := httptest.NewServer(api.routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if env := readEnvelope(t, conn); env.Event != event.Connected {
		t.Fatalf("expected %q on connect, got %q", event.Connected, env.Event)
	}

	sendEnvelope(t, conn, event.Join, event.JoinPayload{Username: "alice"})

	if env := readEnvelope(t, conn); env.Event != event.JoinSuccessful {
		t.Fatalf("expected %q, got %q", event.JoinSuccessful, env.Event)
	}

	env := readEnvelope(t, conn)
	if env.Event != event.UserList {
		t.Fatalf("expected %q, got %q", event.UserList, env.Event)
	}
	var list event.UserListPayload
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode user list: %v", err)
	}
	if len(list.Users) != 1 || list.Users[0] != "alice" {
		t.Errorf("expected user list [alice], got %v", list.Users)
	}

	sendEnvelope(t, conn, event.ChatMessage, event.ChatMessagePayload{Username: "alice", Message: "hello room"})

	env = readEnvelope(t, conn)
	if env.Event != event.ChatMessage {
		t.Fatalf("expected %q broadcast, got %q", event.ChatMessage, env.Event)
	}
	var msg event.ChatMessageBroadcast
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if msg.Username != "alice" || msg.Message != "hello room" {
		t.Errorf("unexpected broadcast: %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected broadcast timestamp to be set")
	}
}

func TestWebSocketDuplicateUsername(t *testing.T) {
	api, _ := newTestAPI(t, "")
	ts := httptest.NewServer(api.routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()
	readEnvelope(t, first)
	sendEnvelope(t, first, event.Join, event.JoinPayload{Username: "alice"})
	if env := readEnvelope(t, first); env.Event != event.JoinSuccessful {
		t.Fatalf("expected %q, got %q", event.JoinSuccessful, env.Event)
	}

	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer second.Close()
	readEnvelope(t, second)
	sendEnvelope(t, second, event.Join, event.JoinPayload{Username: "alice"})
	if env := readEnvelope(t, second); env.Event != event.UsernameTaken {
		t.Fatalf("expected %q, got %q", event.UsernameTaken, env.Event)
	}
}
