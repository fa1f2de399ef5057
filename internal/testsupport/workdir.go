package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// NewWorkdir creates a document working directory with one unit file per
// provided text, numbered from 1.
func NewWorkdir(t testing.TB, unitTexts ...string) string {
	t.Helper()

	workdir := t.TempDir()
	unitsDir := filepath.Join(workdir, "units")
	if err := os.MkdirAll(unitsDir, 0o755); err != nil {
		t.Fatalf("mkdir units dir: %v", err)
	}
	for i, text := range unitTexts {
		path := filepath.Join(unitsDir, fmt.Sprintf("%d.txt", i+1))
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			t.Fatalf("write unit %d: %v", i+1, err)
		}
	}
	return workdir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
