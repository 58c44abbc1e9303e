package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

func TestRunStore_Lifecycle(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := &domain.RunRecord{RunID: "r1", StartedAt: started, Status: domain.RunStatusRunning}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	finished := started.Add(time.Minute)
	run.Status = domain.RunStatusSucceeded
	run.FinishedAt = &finished
	run.OutputRows = 42
	if err := store.Finish(ctx, run); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.RunStatusSucceeded || got.OutputRows != 42 || got.FinishedAt == nil {
		t.Errorf("Unexpected run: %+v", got)
	}
}

func TestRunStore_NotFound(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.Latest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on empty ledger, got %v", err)
	}
	if err := store.Finish(ctx, &domain.RunRecord{RunID: "missing"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_Latest(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_ = store.Insert(ctx, &domain.RunRecord{RunID: "b", StartedAt: base.Add(time.Hour)})
	_ = store.Insert(ctx, &domain.RunRecord{RunID: "a", StartedAt: base})

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.RunID != "b" {
		t.Errorf("Expected run b, got %s", latest.RunID)
	}
}
