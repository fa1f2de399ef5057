package workflow

import (
	"time"

	"log/slog"

	"limner/internal/knowledge"
	"limner/internal/manifest"
)

// Status is an eventually consistent snapshot of one document's progress,
// assembled from lock-free manifest and catalog reads.
type Status struct {
	DocumentID         string
	KnowledgeBase      manifest.KBStatus
	AnalyzeComplete    bool
	IllustrateComplete bool
	TotalUnits         int
	UnitCounts         map[manifest.UnitStatus]int
	Entities           int
	Facts              int
	LastUpdated        time.Time
}

// Snapshot reads current progress for a document working directory.
func Snapshot(workdir string, logger *slog.Logger) (Status, error) {
	store := manifest.NewStore(workdir, logger)
	m, err := store.Load()
	if err != nil {
		return Status{}, err
	}

	catalog, err := knowledge.NewBase(workdir, logger).Load()
	if err != nil {
		return Status{}, err
	}

	counts := make(map[manifest.UnitStatus]int, len(manifest.AllUnitStatuses()))
	for _, status := range manifest.AllUnitStatuses() {
		if n := m.CountByStatus(status); n > 0 {
			counts[status] = n
		}
	}

	facts := 0
	for _, entity := range catalog.Entities {
		facts += len(entity.Enrichments)
	}

	return Status{
		DocumentID:         m.DocumentID,
		KnowledgeBase:      m.KnowledgeBase,
		AnalyzeComplete:    m.AnalyzeComplete,
		IllustrateComplete: m.IllustrateComplete,
		TotalUnits:         len(m.Units),
		UnitCounts:         counts,
		Entities:           len(catalog.Entities),
		Facts:              facts,
		LastUpdated:        m.LastUpdated,
	}, nil
}
