package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"limner/internal/atomicfile"
	"limner/internal/lockdir"
	"limner/internal/logging"
	"limner/internal/services"
)

// CatalogFileName is the structured catalog file inside a working directory.
const CatalogFileName = ".knowledge-base.json"

// ProjectionFileName is the human-readable projection regenerated after
// every catalog change. The compilation stage reads this file directly.
const ProjectionFileName = "Elements.md"

// DefaultLockTimeout bounds how long a mutator waits for the catalog lock.
const DefaultLockTimeout = 30 * time.Second

// Base binds knowledge-base operations to one working directory. Multiple
// workers (and processes) may hold their own Base for the same directory;
// correctness comes from the lock-serialized reload-mutate-persist cycle,
// not from sharing this value.
type Base struct {
	catalogPath    string
	projectionPath string
	lock           *lockdir.Lock
	lockTimeout    time.Duration
	logger         *slog.Logger
}

// BaseOption configures optional Base behavior.
type BaseOption func(*Base)

// WithLockTimeout overrides the lock acquisition deadline for mutations.
func WithLockTimeout(timeout time.Duration) BaseOption {
	return func(b *Base) {
		if timeout > 0 {
			b.lockTimeout = timeout
		}
	}
}

// NewBase returns a knowledge base rooted at the given working directory.
func NewBase(workdir string, logger *slog.Logger, opts ...BaseOption) *Base {
	catalogPath := filepath.Join(workdir, CatalogFileName)
	b := &Base{
		catalogPath:    catalogPath,
		projectionPath: filepath.Join(workdir, ProjectionFileName),
		lock:           lockdir.New(catalogPath),
		lockTimeout:    DefaultLockTimeout,
		logger:         logging.NewComponentLogger(logger, "knowledge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CatalogPath returns the structured catalog file path.
func (b *Base) CatalogPath() string {
	return b.catalogPath
}

// ProjectionPath returns the text projection file path.
func (b *Base) ProjectionPath() string {
	return b.projectionPath
}

// Load reads the structured catalog. When the JSON file is absent it
// bootstraps from an existing text projection; when neither exists it
// returns an empty catalog. A catalog file that exists but does not parse is
// corrupt state.
func (b *Base) Load() (*Catalog, error) {
	data, err := os.ReadFile(b.catalogPath)
	if err == nil {
		catalog := NewCatalog()
		if err := json.Unmarshal(data, catalog); err != nil {
			return nil, services.Wrap(services.ErrCorruptState, "knowledge", "load", b.catalogPath, err)
		}
		if catalog.Entities == nil {
			catalog.Entities = make(map[string]*Entity)
		}
		return catalog, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	projection, err := os.ReadFile(b.projectionPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewCatalog(), nil
		}
		return nil, fmt.Errorf("read projection: %w", err)
	}
	catalog, err := ParseProjection(projection)
	if err != nil {
		return nil, services.Wrap(services.ErrCorruptState, "knowledge", "bootstrap", b.projectionPath, err)
	}
	b.logger.Info("catalog bootstrapped from projection",
		logging.Int("entities", len(catalog.Entities)),
	)
	return catalog, nil
}

// SeedEntities registers newly discovered entities. Existing entities keep
// their base description; a seed's context becomes the base description for
// new entities only. Returns the number of entities added.
func (b *Base) SeedEntities(ctx context.Context, seeds []Seed) (int, error) {
	if len(seeds) == 0 {
		return 0, nil
	}
	added := 0
	err := b.mutate(ctx, func(catalog *Catalog) (bool, error) {
		now := time.Now().UTC()
		for _, seed := range seeds {
			name := seed.Name
			if name == "" {
				continue
			}
			if _, exists := catalog.Lookup(name); exists {
				continue
			}
			kind := seed.Kind
			if _, ok := ParseKind(string(kind)); !ok {
				kind = KindCharacter
			}
			catalog.Entities[name] = &Entity{
				Name:            name,
				Kind:            kind,
				BaseDescription: seed.Context,
				LastUpdated:     now,
			}
			added++
		}
		return added > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// ApplyUpdates appends each qualifying detail under the catalog lock. The
// dedup check reruns against the freshest persisted state: updates extracted
// from a stale snapshot may have been added by another worker in between.
// Returns the number of enrichments actually appended.
func (b *Base) ApplyUpdates(ctx context.Context, updates []Update) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	added := 0
	err := b.mutate(ctx, func(catalog *Catalog) (bool, error) {
		now := time.Now().UTC()
		for _, update := range updates {
			entity, ok := catalog.Lookup(update.Entity)
			if !ok || entity.HasDetail(update.Detail) {
				continue
			}
			entity.Enrichments = append(entity.Enrichments, Enrichment{
				Detail:     update.Detail,
				SourceUnit: update.SourceUnit,
				AddedAt:    now,
			})
			entity.LastUpdated = now
			added++
		}
		return added > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// EnrichFromScenes batches extraction and application for one unit's worth
// of scene descriptions. This is the single call a worker makes per
// completed unit.
func (b *Base) EnrichFromScenes(ctx context.Context, scenes []string, sourceUnit string) (Result, error) {
	snapshot, err := b.Load()
	if err != nil {
		return Result{}, err
	}

	var updates []Update
	for _, scene := range scenes {
		updates = append(updates, snapshot.ExtractNewDetails(scene, sourceUnit)...)
	}
	if len(updates) == 0 {
		return Result{}, nil
	}

	added, err := b.ApplyUpdates(ctx, updates)
	if err != nil {
		return Result{}, err
	}

	affected := make(map[string]struct{})
	for _, update := range updates {
		affected[update.Entity] = struct{}{}
	}
	names := make([]string, 0, len(affected))
	for name := range affected {
		names = append(names, name)
	}
	sortNames(names)

	result := Result{FactsAdded: added, Entities: names}
	b.logger.Debug("unit enrichment applied",
		logging.String(logging.FieldUnit, sourceUnit),
		logging.Int("facts_added", added),
		logging.Int("entities", len(names)),
	)
	return result, nil
}

// mutate runs the lock-serialized reload-mutate-persist cycle. fn reports
// whether anything changed; unchanged catalogs skip the write and the
// projection regeneration.
func (b *Base) mutate(ctx context.Context, fn func(*Catalog) (bool, error)) error {
	return b.lock.WithLock(ctx, b.lockTimeout, func() error {
		catalog, err := b.Load()
		if err != nil {
			return err
		}
		changed, err := fn(catalog)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := atomicfile.WriteJSON(b.catalogPath, catalog); err != nil {
			return err
		}
		return atomicfile.Write(b.projectionPath, RenderProjection(catalog))
	})
}
