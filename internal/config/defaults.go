package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default returns a configuration populated with default values.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: "~/limner/library",
			IntakeDir:  "~/limner/intake",
			LogDir:     "~/limner/logs",
		},
		Workflow: Workflow{
			AnalyzeWorkers:     2,
			IllustrateWorkers:  2,
			LockTimeoutSeconds: 30,
			BarrierPollSeconds: 2,
			BarrierTimeoutMins: 30,
		},
		Illustration: Illustration{
			Style:        "ink and wash",
			CacheEnabled: true,
			CachePath:    defaultCachePath(),
		},
		Capabilities: Capabilities{
			TimeoutSeconds: 300,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

func defaultCachePath() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "limner", "illustrations.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/limner/illustrations.db"
	}
	return filepath.Join(home, ".cache", "limner", "illustrations.db")
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return err
	}
	if c.Paths.IntakeDir, err = expandPath(c.Paths.IntakeDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Illustration.CachePath, err = expandPath(c.Illustration.CachePath); err != nil {
		return err
	}
	if c.Workflow.AnalyzeWorkers <= 0 {
		c.Workflow.AnalyzeWorkers = 1
	}
	if c.Workflow.IllustrateWorkers <= 0 {
		c.Workflow.IllustrateWorkers = 1
	}
	return nil
}
