package knowledge_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"limner/internal/knowledge"
	"limner/internal/logging"
	"limner/internal/services"
)

func newBase(t *testing.T) (*knowledge.Base, string) {
	t.Helper()
	dir := t.TempDir()
	return knowledge.NewBase(dir, logging.NewNop()), dir
}

func TestLoadEmptyWorkdir(t *testing.T) {
	base, _ := newBase(t)
	catalog, err := base.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(catalog.Entities) != 0 {
		t.Fatalf("expected empty catalog, got %d entities", len(catalog.Entities))
	}
}

func TestLoadBootstrapsFromProjection(t *testing.T) {
	base, dir := newBase(t)
	projection := "# Elements\n\n## Characters\n\n### Serra\nDescription: A quiet archivist.\n- holding a brass key (unit 2)\n"
	if err := os.WriteFile(filepath.Join(dir, knowledge.ProjectionFileName), []byte(projection), 0o644); err != nil {
		t.Fatalf("write projection: %v", err)
	}

	catalog, err := base.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	serra, ok := catalog.Lookup("Serra")
	if !ok {
		t.Fatal("Serra not bootstrapped")
	}
	if serra.BaseDescription != "A quiet archivist." {
		t.Fatalf("base description = %q", serra.BaseDescription)
	}
	if len(serra.Enrichments) != 1 || serra.Enrichments[0].SourceUnit != "2" {
		t.Fatalf("enrichments = %#v", serra.Enrichments)
	}
}

func TestLoadCorruptCatalogClassified(t *testing.T) {
	base, dir := newBase(t)
	if err := os.WriteFile(filepath.Join(dir, knowledge.CatalogFileName), []byte("{oops"), 0o644); err != nil {
		t.Fatalf("write corrupt catalog: %v", err)
	}
	if _, err := base.Load(); !errors.Is(err, services.ErrCorruptState) {
		t.Fatalf("expected corrupt-state classification, got %v", err)
	}
}

func TestSeedEntities(t *testing.T) {
	base, _ := newBase(t)
	ctx := context.Background()

	added, err := base.SeedEntities(ctx, []knowledge.Seed{
		{Name: "Aldric", Kind: knowledge.KindCharacter, Context: "A weathered knight."},
		{Name: "Hollowmere", Kind: knowledge.KindPlace, Context: "A drowned village."},
	})
	if err != nil {
		t.Fatalf("SeedEntities failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}

	// Re-seeding the same names (any case) is a no-op.
	added, err = base.SeedEntities(ctx, []knowledge.Seed{
		{Name: "ALDRIC", Kind: knowledge.KindCharacter, Context: "Someone else's description."},
	})
	if err != nil {
		t.Fatalf("SeedEntities failed: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected existing entity preserved, added = %d", added)
	}

	catalog, _ := base.Load()
	aldric, _ := catalog.Lookup("Aldric")
	if aldric.BaseDescription != "A weathered knight." {
		t.Fatalf("base description overwritten: %q", aldric.BaseDescription)
	}
}

func TestEnrichFromScenesDedupAcrossCalls(t *testing.T) {
	base, _ := newBase(t)
	ctx := context.Background()

	if _, err := base.SeedEntities(ctx, []knowledge.Seed{
		{Name: "Aldric", Kind: knowledge.KindCharacter, Context: "A weathered knight."},
	}); err != nil {
		t.Fatalf("SeedEntities failed: %v", err)
	}

	scene := []string{"Aldric waits by the ford wearing a grey travel cloak."}
	first, err := base.EnrichFromScenes(ctx, scene, "1")
	if err != nil {
		t.Fatalf("EnrichFromScenes failed: %v", err)
	}
	if first.FactsAdded != 1 || len(first.Entities) != 1 || first.Entities[0] != "Aldric" {
		t.Fatalf("first result = %+v", first)
	}

	second, err := base.EnrichFromScenes(ctx, scene, "4")
	if err != nil {
		t.Fatalf("EnrichFromScenes failed: %v", err)
	}
	if second.FactsAdded != 0 {
		t.Fatalf("identical phrase enriched twice: %+v", second)
	}

	catalog, _ := base.Load()
	aldric, _ := catalog.Lookup("Aldric")
	if len(aldric.Enrichments) != 1 {
		t.Fatalf("enrichments = %#v", aldric.Enrichments)
	}
}

func TestEnrichRegeneratesProjection(t *testing.T) {
	base, _ := newBase(t)
	ctx := context.Background()

	if _, err := base.SeedEntities(ctx, []knowledge.Seed{
		{Name: "Serra", Kind: knowledge.KindCharacter, Context: "A quiet archivist."},
	}); err != nil {
		t.Fatalf("SeedEntities failed: %v", err)
	}
	if _, err := base.EnrichFromScenes(ctx, []string{"Serra descends holding a brass key."}, "2"); err != nil {
		t.Fatalf("EnrichFromScenes failed: %v", err)
	}

	data, err := os.ReadFile(base.ProjectionPath())
	if err != nil {
		t.Fatalf("read projection: %v", err)
	}
	catalog, err := base.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != string(knowledge.RenderProjection(catalog)) {
		t.Fatal("projection on disk does not match catalog state")
	}
}

func TestConcurrentEnrichersLoseNothing(t *testing.T) {
	base, _ := newBase(t)
	ctx := context.Background()

	if _, err := base.SeedEntities(ctx, []knowledge.Seed{
		{Name: "Aldric", Kind: knowledge.KindCharacter, Context: "A weathered knight."},
	}); err != nil {
		t.Fatalf("SeedEntities failed: %v", err)
	}

	const workers = 6
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			// Each worker sees its own Base value, as separate processes would.
			worker := knowledge.NewBase(filepath.Dir(base.CatalogPath()), logging.NewNop())
			scene := fmt.Sprintf("Aldric passes the gate carrying bundle number %d.", i)
			if _, err := worker.EnrichFromScenes(ctx, []string{scene}, fmt.Sprintf("%d", i)); err != nil {
				t.Errorf("worker %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	catalog, err := base.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	aldric, _ := catalog.Lookup("Aldric")
	if len(aldric.Enrichments) != workers {
		t.Fatalf("expected %d distinct enrichments, got %d: %#v", workers, len(aldric.Enrichments), aldric.Enrichments)
	}
}
