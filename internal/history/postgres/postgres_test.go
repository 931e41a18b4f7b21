package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/lunavoice/lunavoice/internal/history"
	"github.com/lunavoice/lunavoice/internal/history/postgres"
)

// newTestStore connects to the test database or skips the test when
// LUNAVOICE_TEST_POSTGRES_DSN is not set.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("LUNAVOICE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LUNAVOICE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	store, err := postgres.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPostgresRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uid, err := store.NewHistory(ctx, "luna-test")
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	t.Cleanup(func() { _ = store.Delete(ctx, "luna-test", uid) })

	want := []history.Message{
		{Role: history.RoleHuman, Content: "讲个故事", Name: "User"},
		{Role: history.RoleAI, Content: "从前有座山。", Name: "Luna", Avatar: "luna.png"},
		{Role: history.RoleSystem, Content: "[Interrupted by user]"},
	}
	for _, m := range want {
		if err := store.Append(ctx, "luna-test", uid, m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := store.Messages(ctx, "luna-test", uid)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("want %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Role != want[i].Role || got[i].Content != want[i].Content {
			t.Errorf("message %d: want (%s, %q), got (%s, %q)",
				i, want[i].Role, want[i].Content, got[i].Role, got[i].Content)
		}
	}

	infos, err := store.List(ctx, "luna-test")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var found bool
	for _, info := range infos {
		if info.HistoryUID != uid {
			continue
		}
		found = true
		if info.Latest == nil || info.Latest.Content != "[Interrupted by user]" {
			t.Errorf("latest message mismatch: %+v", info.Latest)
		}
	}
	if !found {
		t.Errorf("history %s missing from List", uid)
	}
}

func TestPostgresAppendUnknownHistory(t *testing.T) {
	store := newTestStore(t)

	err := store.Append(context.Background(), "luna-test", "does-not-exist", history.Message{
		Role:    history.RoleHuman,
		Content: "hi",
	})
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPostgresDeleteCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uid, err := store.NewHistory(ctx, "luna-test")
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	if err := store.Append(ctx, "luna-test", uid, history.Message{
		Role: history.RoleAI, Content: "bye",
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := store.Delete(ctx, "luna-test", uid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Messages(ctx, "luna-test", uid); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}
