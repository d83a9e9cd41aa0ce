package data

import (
	"context"
	"os"
	"testing"

	"github.com/SuperJunier666/Chatroom/internal/db"
)

func newTestStore(t *testing.T) *MessagesStore {
	t.Helper()

	// no env loader; require MONGODB_URI set externally for integration tests
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	// ensure clean collections
	_ = c.PublicMessages().Drop(ctx)
	_ = c.PrivateMessages().Drop(ctx)

	return NewMessagesStore(c.PublicMessages(), c.PrivateMessages())
}

func TestPublicHistoryOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.AppendPublic(ctx, "alice", "first"); err != nil {
		t.Fatalf("AppendPublic failed: %v", err)
	}
	if _, err := store.AppendPublic(ctx, "bob", "second"); err != nil {
		t.Fatalf("AppendPublic failed: %v", err)
	}
	if _, err := store.AppendPublic(ctx, "alice", "third"); err != nil {
		t.Fatalf("AppendPublic failed: %v", err)
	}

	history, err := store.ListPublicHistory(ctx, 2)
	if err != nil {
		t.Fatalf("ListPublicHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	// limited reads keep the newest messages, oldest first
	if history[0].Body != "second" || history[1].Body != "third" {
		t.Fatalf("unexpected history order: %q, %q", history[0].Body, history[1].Body)
	}
}

func TestBacklogLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// delivered messages never show up in the backlog
	if _, err := store.AppendPrivate(ctx, "alice", "carol", "seen already", true); err != nil {
		t.Fatalf("AppendPrivate failed: %v", err)
	}
	if _, err := store.AppendPrivate(ctx, "alice", "carol", "missed one", false); err != nil {
		t.Fatalf("AppendPrivate failed: %v", err)
	}
	if _, err := store.AppendPrivate(ctx, "bob", "carol", "missed two", false); err != nil {
		t.Fatalf("AppendPrivate failed: %v", err)
	}

	backlog, err := store.FetchUndelivered(ctx, "carol")
	if err != nil {
		t.Fatalf("FetchUndelivered failed: %v", err)
	}
	if len(backlog) != 2 {
		t.Fatalf("expected 2 undelivered messages, got %d", len(backlog))
	}
	if backlog[0].Body != "missed one" || backlog[1].Body != "missed two" {
		t.Fatalf("unexpected backlog order: %q, %q", backlog[0].Body, backlog[1].Body)
	}

	if err := store.MarkDelivered(ctx, "carol"); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	// replay is exactly-once: a second fetch finds nothing
	backlog, err = store.FetchUndelivered(ctx, "carol")
	if err != nil {
		t.Fatalf("FetchUndelivered failed: %v", err)
	}
	if len(backlog) != 0 {
		t.Fatalf("expected empty backlog after MarkDelivered, got %d", len(backlog))
	}
}

func TestUsernameNormalization(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// save with surrounding whitespace
	if _, err := store.AppendPrivate(ctx, " alice ", "  carol ", "hello", false); err != nil {
		t.Fatalf("AppendPrivate failed: %v", err)
	}

	backlog, err := store.FetchUndelivered(ctx, "carol")
	if err != nil {
		t.Fatalf("FetchUndelivered failed: %v", err)
	}
	if len(backlog) != 1 {
		t.Fatalf("expected 1 undelivered message, got %d", len(backlog))
	}
	if backlog[0].Sender != "alice" {
		t.Fatalf("expected normalized sender alice, got %q", backlog[0].Sender)
	}
}
