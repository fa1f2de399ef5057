package manifest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"limner/internal/logging"
	"limner/internal/manifest"
	"limner/internal/services"
)

func newStore(t *testing.T) (*manifest.Store, string) {
	t.Helper()
	dir := t.TempDir()
	return manifest.NewStore(dir, logging.NewNop()), dir
}

func TestLoadAbsentFileReturnsDefaults(t *testing.T) {
	store, _ := newStore(t)
	m, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Version != manifest.CurrentVersion {
		t.Fatalf("version = %d, want %d", m.Version, manifest.CurrentVersion)
	}
	if m.KnowledgeBase != manifest.KBPending {
		t.Fatalf("kb status = %s, want pending", m.KnowledgeBase)
	}
	if len(m.Units) != 0 {
		t.Fatalf("expected no units, got %d", len(m.Units))
	}
}

func TestLoadCorruptFileClassified(t *testing.T) {
	store, dir := newStore(t)
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	_, err := store.Load()
	if !errors.Is(err, services.ErrCorruptState) {
		t.Fatalf("expected corrupt-state classification, got %v", err)
	}
}

func TestInitializeSeedsPendingUnits(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Initialize(ctx, "book-1", []string{"1", "2", "3"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	m, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.DocumentID != "book-1" {
		t.Fatalf("document id = %q", m.DocumentID)
	}
	for _, id := range []string{"1", "2", "3"} {
		if m.Units[id].Status != manifest.UnitPending {
			t.Fatalf("unit %s status = %s, want pending", id, m.Units[id].Status)
		}
	}
	if m.LastUpdated.IsZero() {
		t.Fatal("expected LastUpdated stamped")
	}
}

func TestInitializePreservesExistingUnitState(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Initialize(ctx, "book-1", []string{"1", "2"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := store.UpdateUnit(ctx, "1", manifest.UnitAnalyzed, nil); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}
	if err := store.Initialize(ctx, "book-1", []string{"1", "2", "3"}); err != nil {
		t.Fatalf("re-Initialize failed: %v", err)
	}

	m, _ := store.Load()
	if m.Units["1"].Status != manifest.UnitAnalyzed {
		t.Fatalf("unit 1 status lost on re-initialize: %s", m.Units["1"].Status)
	}
	if m.Units["3"].Status != manifest.UnitPending {
		t.Fatalf("unit 3 not seeded: %s", m.Units["3"].Status)
	}
}

func TestConcurrentUnitUpdatesConverge(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Initialize(ctx, "book-1", []string{"1", "2", "3"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := store.UpdateUnit(ctx, "1", manifest.UnitAnalyzed, nil); err != nil {
			t.Errorf("update unit 1: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := store.UpdateUnit(ctx, "2", manifest.UnitAnalyzed, nil); err != nil {
			t.Errorf("update unit 2: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := store.UpdateUnit(ctx, "3", manifest.UnitError, &manifest.UnitPatch{Error: "x"}); err != nil {
			t.Errorf("update unit 3: %v", err)
		}
	}()
	wg.Wait()

	m, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Units["1"].Status != manifest.UnitAnalyzed || m.Units["2"].Status != manifest.UnitAnalyzed {
		t.Fatalf("units 1/2 not analyzed: %#v", m.Units)
	}
	if m.Units["3"].Status != manifest.UnitError || m.Units["3"].Error != "x" {
		t.Fatalf("unit 3 state wrong: %#v", m.Units["3"])
	}

	analyzed, err := store.UnitsByStatus(manifest.UnitAnalyzed)
	if err != nil {
		t.Fatalf("UnitsByStatus failed: %v", err)
	}
	if len(analyzed) != 2 || analyzed[0] != "1" || analyzed[1] != "2" {
		t.Fatalf("analyzed = %v, want [1 2]", analyzed)
	}
}

func TestUnitsByStatusNumericOrdering(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Initialize(ctx, "book-1", []string{"10", "2", "1"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	pending, err := store.UnitsByStatus(manifest.UnitPending)
	if err != nil {
		t.Fatalf("UnitsByStatus failed: %v", err)
	}
	want := []string{"1", "2", "10"}
	for i, id := range want {
		if pending[i] != id {
			t.Fatalf("pending = %v, want %v", pending, want)
		}
	}
}

func TestUpdateUnitMergesMetadata(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	facts := 4
	if err := store.UpdateUnit(ctx, "7", manifest.UnitAnalyzed, &manifest.UnitPatch{
		AnalyzedAt: &now,
		FactCount:  &facts,
	}); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}

	m, _ := store.Load()
	unit := m.Units["7"]
	if unit.Status != manifest.UnitAnalyzed {
		t.Fatalf("status = %s", unit.Status)
	}
	if unit.AnalyzedAt == nil || !unit.AnalyzedAt.Equal(now) {
		t.Fatalf("analyzed at = %v", unit.AnalyzedAt)
	}
	if unit.FactCount == nil || *unit.FactCount != 4 {
		t.Fatalf("fact count = %v", unit.FactCount)
	}

	// Clearing the error on a non-error transition.
	if err := store.UpdateUnit(ctx, "7", manifest.UnitError, &manifest.UnitPatch{Error: "boom"}); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}
	if err := store.UpdateUnit(ctx, "7", manifest.UnitAnalyzed, nil); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}
	m, _ = store.Load()
	if m.Units["7"].Error != "" {
		t.Fatalf("error not cleared: %q", m.Units["7"].Error)
	}
}

func TestResetUnit(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.UpdateUnit(ctx, "3", manifest.UnitError, &manifest.UnitPatch{Error: "capability failed"}); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}
	if err := store.ResetUnit(ctx, "3"); err != nil {
		t.Fatalf("ResetUnit failed: %v", err)
	}
	m, _ := store.Load()
	if got := m.Units["3"]; got.Status != manifest.UnitPending || got.Error != "" {
		t.Fatalf("unit not reset: %#v", got)
	}

	if err := store.ResetUnit(ctx, "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for unknown unit, got %v", err)
	}
}

func TestClaimUnit(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Initialize(ctx, "book-1", []string{"2", "1"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := store.UpdateUnit(ctx, "1", manifest.UnitAnalyzed, nil); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}
	if err := store.UpdateUnit(ctx, "2", manifest.UnitAnalyzed, nil); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}

	id, ok, err := store.ClaimUnit(ctx, manifest.UnitAnalyzed, manifest.UnitIllustrating)
	if err != nil || !ok {
		t.Fatalf("ClaimUnit = %q, %v, %v", id, ok, err)
	}
	if id != "1" {
		t.Fatalf("expected lowest unit claimed first, got %q", id)
	}

	m, _ := store.Load()
	if m.Units["1"].Status != manifest.UnitIllustrating {
		t.Fatalf("claimed unit status = %s", m.Units["1"].Status)
	}

	if _, ok, _ := store.ClaimUnit(ctx, manifest.UnitAnalyzed, manifest.UnitIllustrating); !ok {
		t.Fatal("expected second claim to succeed")
	}
	if _, ok, _ := store.ClaimUnit(ctx, manifest.UnitAnalyzed, manifest.UnitIllustrating); ok {
		t.Fatal("expected no unit left to claim")
	}
}

func TestPhaseFlags(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.MarkAnalyzeComplete(ctx); err != nil {
		t.Fatalf("MarkAnalyzeComplete failed: %v", err)
	}
	if err := store.MarkIllustrateComplete(ctx); err != nil {
		t.Fatalf("MarkIllustrateComplete failed: %v", err)
	}
	m, _ := store.Load()
	if !m.AnalyzeComplete || !m.IllustrateComplete {
		t.Fatalf("phase flags not set: %+v", m)
	}
}

func TestWaitForKnowledgeBaseReady(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = store.SetKnowledgeBaseStatus(ctx, manifest.KBComplete)
	}()

	if err := store.WaitForKnowledgeBaseReady(ctx, 10*time.Millisecond, 2*time.Second); err != nil {
		t.Fatalf("barrier did not open: %v", err)
	}
}

func TestWaitForKnowledgeBaseTimesOut(t *testing.T) {
	store, _ := newStore(t)
	err := store.WaitForKnowledgeBaseReady(context.Background(), 10*time.Millisecond, 50*time.Millisecond)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected barrier timeout, got %v", err)
	}
}

func TestWaitForKnowledgeBaseErrorState(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	if err := store.SetKnowledgeBaseStatus(ctx, manifest.KBError); err != nil {
		t.Fatalf("SetKnowledgeBaseStatus failed: %v", err)
	}
	start := time.Now()
	err := store.WaitForKnowledgeBaseReady(ctx, 10*time.Millisecond, 5*time.Second)
	if err == nil {
		t.Fatal("expected error for kb error state")
	}
	if time.Since(start) > time.Second {
		t.Fatal("error state should fail fast, not wait for the deadline")
	}
}

func TestParseUnitStatus(t *testing.T) {
	if status, ok := manifest.ParseUnitStatus(" Analyzed "); !ok || status != manifest.UnitAnalyzed {
		t.Fatalf("ParseUnitStatus = %q, %v", status, ok)
	}
	if _, ok := manifest.ParseUnitStatus("bogus"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
