package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"limner/internal/atomicfile"
	"limner/internal/logging"
	"limner/internal/manifest"
	"limner/internal/services"
)

// runSeedPhase populates the entity catalog from the whole document before
// any enrichment. Seeding is idempotent: existing entities keep their base
// descriptions, so a rerun after a crash only fills gaps.
func (m *Manager) runSeedPhase(ctx context.Context) error {
	if err := m.store.SetKnowledgeBaseStatus(ctx, manifest.KBInProgress); err != nil {
		return err
	}

	unitIDs, err := m.discoverUnits()
	if err != nil {
		return m.failKnowledgeBase(ctx, err)
	}

	var text strings.Builder
	for _, unitID := range unitIDs {
		unitText, err := m.readUnit(unitID)
		if err != nil {
			return m.failKnowledgeBase(ctx, err)
		}
		text.WriteString(unitText)
		text.WriteString("\n")
	}

	seeds, err := m.seeder.DiscoverEntities(ctx, m.documentID, text.String())
	if err != nil {
		return m.failKnowledgeBase(ctx, err)
	}

	added, err := m.base.SeedEntities(ctx, seeds)
	if err != nil {
		return m.failKnowledgeBase(ctx, err)
	}

	m.logger.Info("entity catalog seeded",
		logging.String(logging.FieldDocumentID, m.documentID),
		logging.String(logging.FieldPhase, "seed"),
		logging.Int("discovered", len(seeds)),
		logging.Int("added", added),
	)
	return nil
}

// runAnalyzePhase fans pending units out to analysis workers. Each worker
// turns its unit into scene descriptions, persists them, enriches the shared
// knowledge base, and records progress in the manifest. The knowledge base
// only transitions to complete once every unit is past analysis, which is
// what opens the illustration phase barrier.
func (m *Manager) runAnalyzePhase(ctx context.Context) error {
	pending, err := m.store.UnitsByStatus(manifest.UnitPending)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		workers := m.cfg.Workflow.AnalyzeWorkers
		if workers < 1 {
			workers = 1
		}
		if workers > len(pending) {
			workers = len(pending)
		}

		units := make(chan string)
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				for unitID := range units {
					m.analyzeUnit(ctx, unitID)
				}
			}()
		}
		for _, unitID := range pending {
			select {
			case <-ctx.Done():
			case units <- unitID:
			}
		}
		close(units)
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	snapshot, err := m.store.Load()
	if err != nil {
		return err
	}
	if errored := snapshot.CountByStatus(manifest.UnitError); errored > 0 {
		if err := m.store.SetKnowledgeBaseStatus(ctx, manifest.KBError); err != nil {
			return err
		}
		return services.Wrap(errUnitsFailed, "workflow", "analyze",
			fmt.Sprintf("%d of %d units failed", errored, len(snapshot.Units)), nil)
	}

	if err := m.store.SetKnowledgeBaseStatus(ctx, manifest.KBComplete); err != nil {
		return err
	}
	if err := m.store.MarkAnalyzeComplete(ctx); err != nil {
		return err
	}
	m.logger.Info("analysis phase complete",
		logging.String(logging.FieldDocumentID, m.documentID),
		logging.String(logging.FieldPhase, "analyze"),
		logging.Int("units", len(snapshot.Units)),
	)
	return nil
}

func (m *Manager) analyzeUnit(ctx context.Context, unitID string) {
	ctx = services.WithDocumentID(ctx, m.documentID)
	ctx = services.WithUnitID(ctx, unitID)
	ctx = services.WithPhase(ctx, "analyze")
	logger := logging.WithContext(ctx, m.logger)

	err := func() error {
		text, err := m.readUnit(unitID)
		if err != nil {
			return err
		}

		scenes, err := m.analyzer.AnalyzeUnit(ctx, AnalyzeRequest{
			DocumentID: m.documentID,
			UnitID:     unitID,
			Text:       text,
		})
		if err != nil {
			return err
		}
		if len(scenes) == 0 {
			return services.Wrap(services.ErrExternalTool, "analyzer", "analyze unit", "no scenes produced", nil)
		}

		// Scenes persist so illustration can run in a later process.
		if err := atomicfile.WriteJSON(m.scenesPath(unitID), scenes); err != nil {
			return err
		}

		result, err := m.base.EnrichFromScenes(ctx, scenes, unitID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		facts := result.FactsAdded
		if err := m.store.UpdateUnit(ctx, unitID, manifest.UnitAnalyzed, &manifest.UnitPatch{
			AnalyzedAt: &now,
			FactCount:  &facts,
		}); err != nil {
			return err
		}

		logger.Info("unit analyzed",
			logging.Int("scenes", len(scenes)),
			logging.Int("facts_added", facts),
		)
		return nil
	}()
	if err == nil {
		return
	}

	logger.Error("unit analysis failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, "unit_analyze_failed"),
		logging.String(logging.FieldErrorHint, "inspect the unit text and analyzer output, then run limner units reset"),
	)
	if updateErr := m.store.UpdateUnit(ctx, unitID, manifest.UnitError, &manifest.UnitPatch{
		Error: err.Error(),
	}); updateErr != nil {
		logger.Error("recording unit failure failed", logging.Error(updateErr))
	}
}

func (m *Manager) failKnowledgeBase(ctx context.Context, cause error) error {
	if err := m.store.SetKnowledgeBaseStatus(ctx, manifest.KBError); err != nil {
		m.logger.Error("marking knowledge base errored failed", logging.Error(err))
	}
	return cause
}
