package series_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"limner/internal/logging"
	"limner/internal/series"
	"limner/internal/services"
)

func newCoordinator(t *testing.T) *series.Coordinator {
	t.Helper()
	return series.NewCoordinator(t.TempDir(), logging.NewNop())
}

func TestLoadAbsentFile(t *testing.T) {
	coord := newCoordinator(t)
	cfg, err := coord.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != series.CurrentVersion || len(cfg.Documents) != 0 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
}

func TestInitializePreservesDocuments(t *testing.T) {
	coord := newCoordinator(t)
	ctx := context.Background()

	if err := coord.Initialize(ctx, "The Hollowmere Cycle", "cumulative"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := coord.AddDocument(ctx, series.DocumentInfo{ID: "book-1", Title: "The Weir", Order: 1}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	// Re-initializing renames the series but keeps membership.
	if err := coord.Initialize(ctx, "The Hollowmere Cycle, Revised", "cumulative"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	cfg, err := coord.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "The Hollowmere Cycle, Revised" {
		t.Fatalf("name = %q", cfg.Name)
	}
	if len(cfg.Documents) != 1 || cfg.Documents[0].ID != "book-1" {
		t.Fatalf("documents = %#v", cfg.Documents)
	}
	if cfg.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
}

func TestAddDocumentDefaultsToPending(t *testing.T) {
	coord := newCoordinator(t)
	if err := coord.AddDocument(context.Background(), series.DocumentInfo{ID: "book-1", Title: "The Weir", Order: 1}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	cfg, _ := coord.Load()
	if cfg.Documents[0].Status != series.DocumentPending {
		t.Fatalf("status = %q", cfg.Documents[0].Status)
	}
}

func TestAddDocumentDuplicateLeavesFileUntouched(t *testing.T) {
	coord := newCoordinator(t)
	ctx := context.Background()

	if err := coord.AddDocument(ctx, series.DocumentInfo{ID: "book-1", Title: "The Weir", Order: 1}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	before, err := os.ReadFile(coord.Path())
	if err != nil {
		t.Fatalf("read series config: %v", err)
	}

	err = coord.AddDocument(ctx, series.DocumentInfo{ID: "book-1", Title: "Another Title", Order: 9})
	if !errors.Is(err, services.ErrDuplicateDocument) {
		t.Fatalf("expected duplicate-document error, got %v", err)
	}

	after, err := os.ReadFile(coord.Path())
	if err != nil {
		t.Fatalf("read series config: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("failed AddDocument mutated the persisted config")
	}
}

func TestUpdateDocumentStatusStampsOnce(t *testing.T) {
	coord := newCoordinator(t)
	ctx := context.Background()

	if err := coord.AddDocument(ctx, series.DocumentInfo{ID: "book-1", Title: "The Weir", Order: 1}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	if err := coord.UpdateDocumentStatus(ctx, "book-1", series.DocumentInProgress); err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	cfg, _ := coord.Load()
	started := cfg.Documents[0].StartedAt
	if started == nil {
		t.Fatal("started_at not stamped")
	}

	// A second pass through in_progress keeps the original stamp.
	if err := coord.UpdateDocumentStatus(ctx, "book-1", series.DocumentError); err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	if err := coord.UpdateDocumentStatus(ctx, "book-1", series.DocumentInProgress); err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	cfg, _ = coord.Load()
	if !cfg.Documents[0].StartedAt.Equal(*started) {
		t.Fatal("started_at restamped on repeat transition")
	}

	if err := coord.UpdateDocumentStatus(ctx, "book-1", series.DocumentCompleted); err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	cfg, _ = coord.Load()
	if cfg.Documents[0].CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
}

func TestUpdateDocumentStatusUnknownID(t *testing.T) {
	coord := newCoordinator(t)
	err := coord.UpdateDocumentStatus(context.Background(), "missing", series.DocumentCompleted)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetStats(t *testing.T) {
	coord := newCoordinator(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		info := series.DocumentInfo{ID: fmt.Sprintf("book-%d", i), Title: fmt.Sprintf("Volume %d", i), Order: i}
		if err := coord.AddDocument(ctx, info); err != nil {
			t.Fatalf("AddDocument failed: %v", err)
		}
	}
	if err := coord.UpdateDocumentStatus(ctx, "book-1", series.DocumentCompleted); err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	if err := coord.UpdateDocumentStatus(ctx, "book-2", series.DocumentInProgress); err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	if err := coord.UpdateDocumentStatus(ctx, "book-3", series.DocumentError); err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}

	stats, err := coord.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	want := series.Stats{Total: 4, Pending: 1, InProgress: 1, Completed: 1, Errored: 1}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestConcurrentAddsAllSurvive(t *testing.T) {
	coord := newCoordinator(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			info := series.DocumentInfo{ID: fmt.Sprintf("book-%d", i), Title: fmt.Sprintf("Volume %d", i), Order: i}
			if err := coord.AddDocument(ctx, info); err != nil {
				t.Errorf("AddDocument %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	stats, err := coord.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != writers {
		t.Fatalf("total = %d, want %d", stats.Total, writers)
	}
}
