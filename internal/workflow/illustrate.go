package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"limner/internal/illustrationcache"
	"limner/internal/logging"
	"limner/internal/manifest"
	"limner/internal/services"
)

// runIllustratePhase blocks on the knowledge base barrier, then lets workers
// claim analyzed units through the manifest until none remain. Claims go
// through ClaimUnit so concurrent workers, including ones in other
// processes, never render the same unit twice.
func (m *Manager) runIllustratePhase(ctx context.Context) error {
	poll := time.Duration(m.cfg.Workflow.BarrierPollSeconds) * time.Second
	timeout := time.Duration(m.cfg.Workflow.BarrierTimeoutMins) * time.Minute
	if err := m.store.WaitForKnowledgeBaseReady(ctx, poll, timeout); err != nil {
		return err
	}

	workers := m.cfg.Workflow.IllustrateWorkers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				unitID, ok, err := m.store.ClaimUnit(ctx, manifest.UnitAnalyzed, manifest.UnitIllustrating)
				if err != nil {
					m.logger.Error("claiming unit failed",
						logging.Error(err),
						logging.String(logging.FieldEventType, "unit_claim_failed"),
					)
					return
				}
				if !ok {
					return
				}
				m.illustrateUnit(ctx, unitID)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot, err := m.store.Load()
	if err != nil {
		return err
	}
	if errored := snapshot.CountByStatus(manifest.UnitError); errored > 0 {
		return services.Wrap(errUnitsFailed, "workflow", "illustrate",
			fmt.Sprintf("%d of %d units failed", errored, len(snapshot.Units)), nil)
	}
	if snapshot.CountByStatus(manifest.UnitIllustrated) != len(snapshot.Units) {
		// Another process may still hold claims; leave completion to it.
		return nil
	}

	if err := m.store.MarkIllustrateComplete(ctx); err != nil {
		return err
	}
	m.logger.Info("illustration phase complete",
		logging.String(logging.FieldDocumentID, m.documentID),
		logging.String(logging.FieldPhase, "illustrate"),
		logging.Int("units", len(snapshot.Units)),
	)
	return nil
}

func (m *Manager) illustrateUnit(ctx context.Context, unitID string) {
	ctx = services.WithDocumentID(ctx, m.documentID)
	ctx = services.WithUnitID(ctx, unitID)
	ctx = services.WithPhase(ctx, "illustrate")
	logger := logging.WithContext(ctx, m.logger)

	err := func() error {
		scenes, err := m.readScenes(unitID)
		if err != nil {
			return err
		}

		projection, err := os.ReadFile(m.base.ProjectionPath())
		if err != nil {
			return fmt.Errorf("read knowledge base projection: %w", err)
		}

		outDir := filepath.Join(m.workdir, IllustrationsDirName)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create illustrations directory: %w", err)
		}

		style := m.cfg.Illustration.Style
		rendered := 0
		reused := 0
		for i, scene := range scenes {
			sceneHash := illustrationcache.HashScene(style, scene)
			if m.cache != nil {
				entry, err := m.cache.Lookup(ctx, sceneHash)
				if err != nil {
					return err
				}
				if entry != nil {
					if _, statErr := os.Stat(entry.ImagePath); statErr == nil {
						reused++
						continue
					}
				}
			}

			outputPath := filepath.Join(outDir, fmt.Sprintf("unit-%s-%02d.png", unitID, i+1))
			imagePath, err := m.illustrator.Illustrate(ctx, IllustrateRequest{
				DocumentID:    m.documentID,
				UnitID:        unitID,
				Scene:         scene,
				Style:         style,
				KnowledgeBase: string(projection),
				OutputPath:    outputPath,
			})
			if err != nil {
				return err
			}
			rendered++

			if m.cache != nil {
				if err := m.cache.Put(ctx, illustrationcache.Entry{
					SceneHash:  sceneHash,
					DocumentID: m.documentID,
					UnitID:     unitID,
					Style:      style,
					ImagePath:  imagePath,
				}); err != nil {
					return err
				}
			}
		}

		now := time.Now().UTC()
		if err := m.store.UpdateUnit(ctx, unitID, manifest.UnitIllustrated, &manifest.UnitPatch{
			IllustratedAt: &now,
		}); err != nil {
			return err
		}

		logger.Info("unit illustrated",
			logging.Int("scenes", len(scenes)),
			logging.Int("rendered", rendered),
			logging.Int("cache_hits", reused),
		)
		return nil
	}()
	if err == nil {
		return
	}

	logger.Error("unit illustration failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, "unit_illustrate_failed"),
		logging.String(logging.FieldErrorHint, "inspect illustrator output, then run limner units reset"),
	)
	if updateErr := m.store.UpdateUnit(ctx, unitID, manifest.UnitError, &manifest.UnitPatch{
		Error: err.Error(),
	}); updateErr != nil {
		logger.Error("recording unit failure failed", logging.Error(updateErr))
	}
}
