package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"aaxsplit/internal/history"
	"aaxsplit/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	if store.Path() != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected path %q", store.Path())
	}
	runs, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty ledger, got %d runs", len(runs))
	}

	// Reopening an initialized database must accept the stored version.
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = reopened.Close()
}

func TestBeginFinishAndLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	run := &history.Run{
		RunID:     "run-1",
		InputPath: "/books/book.aax",
		InputSize: 4096,
		Title:     "The Book",
		Author:    "A. Author",
		Chapters:  12,
		OutputDir: "/out/A. Author/The Book",
	}
	if err := store.Begin(ctx, run); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if run.ID == 0 || run.Status != history.StatusRunning {
		t.Fatalf("expected inserted running run, got %+v", run)
	}

	found, err := store.LastCompleted(ctx, run.InputPath, run.InputSize)
	if err != nil {
		t.Fatalf("LastCompleted: %v", err)
	}
	if found != nil {
		t.Fatalf("running run must not count as completed: %+v", found)
	}

	if err := store.Finish(ctx, "run-1", history.StatusCompleted, nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	found, err = store.LastCompleted(ctx, run.InputPath, run.InputSize)
	if err != nil {
		t.Fatalf("LastCompleted: %v", err)
	}
	if found == nil {
		t.Fatal("expected completed run")
	}
	if found.Title != "The Book" || found.Chapters != 12 || found.OutputDir != run.OutputDir {
		t.Fatalf("unexpected run: %+v", found)
	}
	if found.FinishedAt.IsZero() || found.Duration() < 0 {
		t.Fatalf("expected finish timestamp, got %+v", found)
	}

	other, err := store.LastCompleted(ctx, run.InputPath, 1)
	if err != nil {
		t.Fatalf("LastCompleted: %v", err)
	}
	if other != nil {
		t.Fatal("expected size mismatch to miss")
	}
}

func TestFinishRecordsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.Begin(ctx, &history.Run{RunID: "run-f", InputPath: "/a.aax", StartedAt: started}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := store.Finish(ctx, "run-f", history.StatusFailed, errors.New("ffmpeg exploded")); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	runs, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != history.StatusFailed || runs[0].ErrorMessage != "ffmpeg exploded" {
		t.Fatalf("unexpected run: %+v", runs[0])
	}
	if !runs[0].StartedAt.Equal(started) {
		t.Fatalf("expected start %v, got %v", started, runs[0].StartedAt)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if err := store.Finish(context.Background(), "missing", history.StatusCompleted, nil); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestBeginRequiresRunID(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if err := store.Begin(context.Background(), &history.Run{InputPath: "/a.aax"}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestListOrderAndLimitAndClear(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Begin(ctx, &history.Run{RunID: id, InputPath: "/" + id + ".aax"}); err != nil {
			t.Fatalf("Begin %s: %v", id, err)
		}
	}
	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Fatalf("expected newest first, got %+v", runs)
	}
	deleted, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}
}
