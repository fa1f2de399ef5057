// Package config loads, normalizes, and validates limner configuration.
//
// Configuration lives in a TOML file (default ~/.config/limner/config.toml).
// Absent files are valid: Load falls back to defaults so read-only commands
// work without any setup. All path fields are expanded (~ and relative paths)
// before validation.
package config
