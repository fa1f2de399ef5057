package config

import (
	"fmt"
	"strings"
)

// Validate reports configuration values that cannot be used at runtime.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		problems = append(problems, "paths.library_dir must be set")
	}
	if c.Workflow.LockTimeoutSeconds <= 0 {
		problems = append(problems, "workflow.lock_timeout_seconds must be positive")
	}
	if c.Workflow.BarrierPollSeconds <= 0 {
		problems = append(problems, "workflow.barrier_poll_seconds must be positive")
	}
	if c.Workflow.BarrierTimeoutMins <= 0 {
		problems = append(problems, "workflow.barrier_timeout_minutes must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}
	if c.Illustration.CacheEnabled && strings.TrimSpace(c.Illustration.CachePath) == "" {
		problems = append(problems, "illustration.cache_path must be set when the cache is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
