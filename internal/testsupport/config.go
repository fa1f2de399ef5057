package testsupport

import (
	"path/filepath"
	"testing"

	"limner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Worker counts stay small and the barrier timing tight so concurrency tests
// finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.IntakeDir = filepath.Join(base, "intake")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workflow.AnalyzeWorkers = 2
	cfgVal.Workflow.IllustrateWorkers = 2
	cfgVal.Workflow.LockTimeoutSeconds = 5
	cfgVal.Workflow.BarrierPollSeconds = 1
	cfgVal.Workflow.BarrierTimeoutMins = 1
	cfgVal.Illustration.CacheEnabled = false
	cfgVal.Illustration.CachePath = filepath.Join(base, "cache", "illustrations.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCacheEnabled turns the illustration cache on for the test config.
func WithCacheEnabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Illustration.CacheEnabled = true
	}
}

// WithWorkers overrides both worker counts.
func WithWorkers(analyze, illustrate int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.AnalyzeWorkers = analyze
		b.cfg.Workflow.IllustrateWorkers = illustrate
	}
}

// WithStyle overrides the illustration style.
func WithStyle(style string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Illustration.Style = style
	}
}
