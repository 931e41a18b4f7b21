package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lunavoice/lunavoice/internal/history"
)

func TestMemStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := history.NewMemStore()

	uid, err := store.NewHistory(ctx, "luna")
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	if uid == "" {
		t.Fatal("want non-empty history uid")
	}

	msgs := []history.Message{
		{Role: history.RoleHuman, Content: "你好", Name: "User"},
		{Role: history.RoleAI, Content: "你好呀！", Name: "Luna", Avatar: "luna.png"},
	}
	for _, m := range msgs {
		if err := store.Append(ctx, "luna", uid, m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := store.Messages(ctx, "luna", uid)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 messages, got %d", len(got))
	}
	if got[0].Role != history.RoleHuman || got[0].Content != "你好" {
		t.Errorf("first message mismatch: %+v", got[0])
	}
	if got[1].Avatar != "luna.png" {
		t.Errorf("avatar lost: %+v", got[1])
	}
	if got[0].Timestamp.IsZero() {
		t.Error("append must stamp messages")
	}
}

func TestMemStoreAppendUnknownHistory(t *testing.T) {
	t.Parallel()
	store := history.NewMemStore()

	err := store.Append(context.Background(), "luna", "missing", history.Message{
		Role:    history.RoleHuman,
		Content: "hi",
	})
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := store.Messages(context.Background(), "luna", "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("want ErrNotFound from Messages, got %v", err)
	}
}

func TestMemStoreListNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := history.NewMemStore()

	older, _ := store.NewHistory(ctx, "luna")
	time.Sleep(2 * time.Millisecond)
	newer, _ := store.NewHistory(ctx, "luna")
	if _, err := store.NewHistory(ctx, "other"); err != nil {
		t.Fatal(err)
	}

	if err := store.Append(ctx, "luna", newer, history.Message{
		Role: history.RoleAI, Content: "latest reply",
	}); err != nil {
		t.Fatal(err)
	}

	infos, err := store.List(ctx, "luna")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("want 2 histories for conf, got %d", len(infos))
	}
	if infos[0].HistoryUID != newer || infos[1].HistoryUID != older {
		t.Errorf("want newest first, got %q then %q", infos[0].HistoryUID, infos[1].HistoryUID)
	}
	if infos[0].Latest == nil || infos[0].Latest.Content != "latest reply" {
		t.Errorf("latest message missing: %+v", infos[0].Latest)
	}
	if infos[1].Latest != nil {
		t.Error("empty history must have nil latest message")
	}
}

func TestMemStoreDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := history.NewMemStore()

	uid, _ := store.NewHistory(ctx, "luna")
	if err := store.Delete(ctx, "luna", uid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Messages(ctx, "luna", uid); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}

	// Deleting again is not an error.
	if err := store.Delete(ctx, "luna", uid); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}
