package journal_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"treegift/internal/journal"
	"treegift/internal/testsupport"
)

func TestOpenCreatesJournalInDataDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	want := filepath.Join(cfg.Paths.DataDir, journal.FileName)
	if store.Path() != want {
		t.Fatalf("unexpected path: got %q want %q", store.Path(), want)
	}

	// Reopening an initialized database passes the version check.
	_ = store.Close()
	again, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	_ = again.Close()
}

func TestAttemptLifecycle(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	id, err := store.BeginAttempt(ctx, journal.AttemptInfo{
		RequestID:      "req-1",
		UserEmail:      "donor@example.com",
		RequestType:    "Gift Cards",
		TreeCount:      3,
		RecipientCount: 2,
	})
	if err != nil {
		t.Fatalf("BeginAttempt failed: %v", err)
	}

	running, err := store.Attempt(ctx, id)
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if running == nil || running.Status != journal.StatusRunning || running.FinishedAt != nil {
		t.Fatalf("expected running attempt, got %#v", running)
	}

	if err := store.RecordStep(ctx, id, "logo", journal.StepSkipped, "logo unchanged"); err != nil {
		t.Fatalf("RecordStep logo: %v", err)
	}
	if err := store.RecordStep(ctx, id, "payment", journal.StepFailed, "remote service error"); err != nil {
		t.Fatalf("RecordStep payment: %v", err)
	}
	if err := store.FinishAttempt(ctx, id, journal.StatusFailed, "remote", errors.New("payment rejected")); err != nil {
		t.Fatalf("FinishAttempt failed: %v", err)
	}

	finished, err := store.Attempt(ctx, id)
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if finished.Status != journal.StatusFailed || finished.ErrorKind != "remote" || finished.ErrorMessage != "payment rejected" {
		t.Fatalf("unexpected finished attempt: %#v", finished)
	}
	if finished.FinishedAt == nil || finished.Duration() < 0 {
		t.Fatalf("expected finish time, got %#v", finished.FinishedAt)
	}

	steps, err := store.Steps(ctx, id)
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}
	if len(steps) != 2 || steps[0].Step != "logo" || steps[1].Status != journal.StepFailed {
		t.Fatalf("unexpected steps: %#v", steps)
	}
}

func TestListAttemptsNewestFirstAndFiltered(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, req := range []string{"a", "b", "a"} {
		if _, err := store.BeginAttempt(ctx, journal.AttemptInfo{RequestID: req}); err != nil {
			t.Fatalf("BeginAttempt %s: %v", req, err)
		}
	}

	all, err := store.ListAttempts(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(all) != 3 || all[0].ID < all[2].ID {
		t.Fatalf("expected newest first, got %#v", all)
	}

	onlyA, err := store.ListAttempts(ctx, "a", 1)
	if err != nil {
		t.Fatalf("ListAttempts filtered failed: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].RequestID != "a" || onlyA[0].ID != all[0].ID {
		t.Fatalf("unexpected filtered attempts: %#v", onlyA)
	}
}

func TestBeginAttemptRequiresRequestID(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	if _, err := store.BeginAttempt(context.Background(), journal.AttemptInfo{}); err == nil {
		t.Fatal("expected error without request id")
	}
}

func TestFinishUnknownAttempt(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	if err := store.FinishAttempt(context.Background(), 42, journal.StatusCompleted, "", nil); err == nil {
		t.Fatal("expected error for unknown attempt")
	}
	missing, err := store.Attempt(context.Background(), 42)
	if err != nil || missing != nil {
		t.Fatalf("expected nil attempt, got %#v err=%v", missing, err)
	}
}
