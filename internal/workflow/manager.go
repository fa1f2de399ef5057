package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"limner/internal/config"
	"limner/internal/illustrationcache"
	"limner/internal/knowledge"
	"limner/internal/logging"
	"limner/internal/manifest"
	"limner/internal/services"
)

// Working directory layout under <library>/<document-id>/.
const (
	UnitsDirName         = "units"
	ScenesDirName        = ".scenes"
	IllustrationsDirName = "illustrations"
)

// Manager runs the pipeline phases for one document working directory.
type Manager struct {
	cfg        *config.Config
	workdir    string
	documentID string
	logger     *slog.Logger

	store *manifest.Store
	base  *knowledge.Base
	cache *illustrationcache.Store

	seeder      Seeder
	analyzer    Analyzer
	illustrator Illustrator
}

// ManagerOption configures optional Manager behavior, mainly capability
// injection for tests.
type ManagerOption func(*Manager)

// WithSeeder overrides the entity-seeding capability.
func WithSeeder(s Seeder) ManagerOption {
	return func(m *Manager) { m.seeder = s }
}

// WithAnalyzer overrides the scene-analysis capability.
func WithAnalyzer(a Analyzer) ManagerOption {
	return func(m *Manager) { m.analyzer = a }
}

// WithIllustrator overrides the illustration capability.
func WithIllustrator(i Illustrator) ManagerOption {
	return func(m *Manager) { m.illustrator = i }
}

// WithCache injects an illustration cache in place of the config-driven one.
func WithCache(cache *illustrationcache.Store) ManagerOption {
	return func(m *Manager) { m.cache = cache }
}

// NewManager constructs a manager for one document working directory.
// Capabilities default to the external commands from the config; the
// illustration cache is opened lazily by Run when enabled.
func NewManager(cfg *config.Config, workdir, documentID string, logger *slog.Logger, opts ...ManagerOption) *Manager {
	lockTimeout := time.Duration(cfg.Workflow.LockTimeoutSeconds) * time.Second

	m := &Manager{
		cfg:        cfg,
		workdir:    workdir,
		documentID: documentID,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		store:      manifest.NewStore(workdir, logger, manifest.WithLockTimeout(lockTimeout)),
		base:       knowledge.NewBase(workdir, logger, knowledge.WithLockTimeout(lockTimeout)),

		seeder:      NewExternalSeeder(cfg.Capabilities.SeedCommand, cfg.Capabilities.TimeoutSeconds),
		analyzer:    NewExternalAnalyzer(cfg.Capabilities.AnalyzeCommand, cfg.Capabilities.TimeoutSeconds),
		illustrator: NewExternalIllustrator(cfg.Capabilities.IllustrateCommand, cfg.Capabilities.TimeoutSeconds),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Workdir returns the document working directory.
func (m *Manager) Workdir() string {
	return m.workdir
}

// Manifest returns the manifest store for status reads.
func (m *Manager) Manifest() *manifest.Store {
	return m.store
}

// KnowledgeBase returns the knowledge base for status reads.
func (m *Manager) KnowledgeBase() *knowledge.Base {
	return m.base
}

// Run executes all outstanding phases for the document. It is safe to rerun
// after a crash or partial failure: completed phases are skipped and unit
// progress recorded in the manifest is preserved.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.validateCapabilities(); err != nil {
		return err
	}

	unitIDs, err := m.discoverUnits()
	if err != nil {
		return err
	}
	if len(unitIDs) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "discover units",
			fmt.Sprintf("no unit files under %s", filepath.Join(m.workdir, UnitsDirName)), nil)
	}

	if err := m.store.Initialize(ctx, m.documentID, unitIDs); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(m.workdir, ScenesDirName), 0o755); err != nil {
		return fmt.Errorf("create scenes directory: %w", err)
	}

	if m.cache == nil && m.cfg.Illustration.CacheEnabled && strings.TrimSpace(m.cfg.Illustration.CachePath) != "" {
		cache, err := illustrationcache.Open(m.cfg.Illustration.CachePath)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		m.cache = cache
	}

	snapshot, err := m.store.Load()
	if err != nil {
		return err
	}

	if !snapshot.AnalyzeComplete {
		if err := m.runSeedPhase(ctx); err != nil {
			return err
		}
		if err := m.runAnalyzePhase(ctx); err != nil {
			return err
		}
	}

	if err := m.runIllustratePhase(ctx); err != nil {
		return err
	}

	m.logger.Info("document pipeline complete",
		logging.String(logging.FieldDocumentID, m.documentID),
		logging.Int("units", len(unitIDs)),
	)
	return nil
}

func (m *Manager) validateCapabilities() error {
	missing := make([]string, 0, 3)
	if m.seeder == nil {
		missing = append(missing, "seed_command")
	}
	if m.analyzer == nil {
		missing = append(missing, "analyze_command")
	}
	if m.illustrator == nil {
		missing = append(missing, "illustrate_command")
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "workflow", "capabilities",
		"not configured: "+strings.Join(missing, ", "), nil)
}

// discoverUnits lists unit ids from the units directory. The id is the file
// name without extension, so units/3.txt is unit "3".
func (m *Manager) discoverUnits() ([]string, error) {
	dir := filepath.Join(m.workdir, UnitsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read units directory: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if id != "" {
			ids = append(ids, id)
		}
	}
	manifest.SortUnitIDs(ids)
	return ids, nil
}

func (m *Manager) unitPath(unitID string) (string, error) {
	dir := filepath.Join(m.workdir, UnitsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read units directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == unitID {
			return filepath.Join(dir, name), nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "workflow", "unit file", unitID, nil)
}

func (m *Manager) readUnit(unitID string) (string, error) {
	path, err := m.unitPath(unitID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read unit %s: %w", unitID, err)
	}
	return string(data), nil
}

func (m *Manager) scenesPath(unitID string) string {
	return filepath.Join(m.workdir, ScenesDirName, unitID+".json")
}

func (m *Manager) readScenes(unitID string) ([]string, error) {
	data, err := os.ReadFile(m.scenesPath(unitID))
	if err != nil {
		return nil, fmt.Errorf("read scenes for unit %s: %w", unitID, err)
	}
	var scenes []string
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, services.Wrap(services.ErrCorruptState, "workflow", "scenes", m.scenesPath(unitID), err)
	}
	return scenes, nil
}

var errUnitsFailed = errors.New("units failed")
