package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	d, err := New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), log)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	return d
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for range 2 {
		d, err := New(context.Background(), path, log)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}

		if err = d.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
	}
}

func TestMessagesKeepOrderPerChat(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	entries := []struct {
		chatID int64
		text   string
		isUser bool
	}{
		{1, "hello", true},
		{2, "other chat", true},
		{1, "hi there", false},
		{1, "how are you", true},
	}

	for _, e := range entries {
		if err := d.AppendMessage(ctx, e.chatID, e.text, e.isUser); err != nil {
			t.Fatalf("failed to append message: %v", err)
		}
	}

	messages, err := d.ListMessages(ctx, 1, 0)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}

	want := []string{"hello", "hi there", "how are you"}
	if len(messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(messages))
	}

	for i, m := range messages {
		if m.Text != want[i] {
			t.Errorf("message %d: expected %q, got %q", i, want[i], m.Text)
		}
		if m.ChatID != 1 {
			t.Errorf("message %d: expected chat 1, got %d", i, m.ChatID)
		}
	}

	if !messages[0].IsUser || messages[1].IsUser {
		t.Fatalf("author flags are not preserved")
	}

	recent, err := d.ListMessages(ctx, 1, 2)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}

	if len(recent) != 2 || recent[0].Text != "hi there" || recent[1].Text != "how are you" {
		t.Fatalf("expected the two most recent messages in order, got %+v", recent)
	}
}

func TestAppendMessageRejectsEmptyText(t *testing.T) {
	d := newTestDatabase(t)

	if err := d.AppendMessage(context.Background(), 1, "", true); err == nil {
		t.Fatalf("expected error for empty message")
	}
}

func TestClearMessages(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	for _, chatID := range []int64{1, 2} {
		if err := d.AppendMessage(ctx, chatID, "text", true); err != nil {
			t.Fatalf("failed to append message: %v", err)
		}
	}

	if err := d.ClearMessages(ctx, 1); err != nil {
		t.Fatalf("failed to clear messages: %v", err)
	}

	cleared, _ := d.ListMessages(ctx, 1, 0)
	kept, _ := d.ListMessages(ctx, 2, 0)

	if len(cleared) != 0 || len(kept) != 1 {
		t.Fatalf("expected only chat 1 to be cleared, got %d and %d", len(cleared), len(kept))
	}
}

func TestPruneMessages(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	d.now = fixedClock(now.Add(-48 * time.Hour))
	if err := d.AppendMessage(ctx, 1, "old", true); err != nil {
		t.Fatalf("failed to append message: %v", err)
	}

	d.now = fixedClock(now)
	if err := d.AppendMessage(ctx, 1, "new", true); err != nil {
		t.Fatalf("failed to append message: %v", err)
	}

	pruned, err := d.PruneMessages(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to prune messages: %v", err)
	}

	if pruned != 1 {
		t.Fatalf("expected 1 pruned message, got %d", pruned)
	}

	messages, _ := d.ListMessages(ctx, 1, 0)
	if len(messages) != 1 || messages[0].Text != "new" {
		t.Fatalf("expected only the new message to remain, got %+v", messages)
	}

	if !messages[0].CreatedAt.Equal(now) {
		t.Fatalf("expected creation time %v, got %v", now, messages[0].CreatedAt)
	}
}

func TestSaveSummaryBumpsCollidingIDs(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	d.now = fixedClock(now)

	first, err := d.SaveSummary(ctx, 1, "Go", "A language.")
	if err != nil {
		t.Fatalf("failed to save summary: %v", err)
	}

	second, err := d.SaveSummary(ctx, 1, "Rust", "Another language.")
	if err != nil {
		t.Fatalf("failed to save summary: %v", err)
	}

	if first != now.UnixMilli() {
		t.Fatalf("expected timestamp id %d, got %d", now.UnixMilli(), first)
	}

	if second != first+1 {
		t.Fatalf("expected colliding id to be bumped to %d, got %d", first+1, second)
	}

	summaries, err := d.ListSummaries(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list summaries: %v", err)
	}

	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	if got := summaries[0].Display(); got != "Go: A language." {
		t.Fatalf("unexpected display: %q", got)
	}
}

func TestSaveSummaryValidation(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	if _, err := d.SaveSummary(ctx, 1, "Title", "  "); err == nil {
		t.Fatalf("expected error for empty content")
	}

	id, err := d.SaveSummary(ctx, 1, " ", "content")
	if err != nil {
		t.Fatalf("failed to save summary: %v", err)
	}

	s, err := d.GetSummary(ctx, 1, id)
	if err != nil {
		t.Fatalf("failed to get summary: %v", err)
	}

	if s.Title != "Untitled" {
		t.Fatalf("expected default title, got %q", s.Title)
	}
}

func TestGetAndDeleteSummary(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	id, err := d.SaveSummary(ctx, 1, "Title", "Content")
	if err != nil {
		t.Fatalf("failed to save summary: %v", err)
	}

	if _, err = d.GetSummary(ctx, 2, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other chats not to see the summary, got %v", err)
	}

	if err = d.DeleteSummary(ctx, 2, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other chats not to delete the summary, got %v", err)
	}

	if err = d.DeleteSummary(ctx, 1, id); err != nil {
		t.Fatalf("failed to delete summary: %v", err)
	}

	if _, err = d.GetSummary(ctx, 1, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted summary to be gone, got %v", err)
	}
}

func TestDeleteAllSummaries(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	for _, chatID := range []int64{1, 1, 2} {
		if _, err := d.SaveSummary(ctx, chatID, "Title", "Content"); err != nil {
			t.Fatalf("failed to save summary: %v", err)
		}
	}

	deleted, err := d.DeleteAllSummaries(ctx, 1)
	if err != nil {
		t.Fatalf("failed to delete summaries: %v", err)
	}

	if deleted != 2 {
		t.Fatalf("expected 2 deleted summaries, got %d", deleted)
	}

	kept, _ := d.ListSummaries(ctx, 2)
	if len(kept) != 1 {
		t.Fatalf("expected other chat summaries to survive, got %d", len(kept))
	}
}
