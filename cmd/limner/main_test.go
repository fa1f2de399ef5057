package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"limner/internal/atomicfile"
	"limner/internal/lockdir"
	"limner/internal/logging"
	"limner/internal/manifest"
)

func writeCLIConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
library_dir = %q
intake_dir = %q
log_dir = %q

[workflow]
analyze_workers = 1
illustrate_workers = 1
lock_timeout_seconds = 5
`,
		filepath.Join(base, "library"),
		filepath.Join(base, "intake"),
		filepath.Join(base, "logs"),
	)

	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSampleFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Fatalf("expected output to mention %s, got %q", target, output)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[capabilities]") {
		t.Fatal("sample config missing capabilities section")
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestUnitsListAndReset(t *testing.T) {
	configPath := writeCLIConfig(t)
	workdir := t.TempDir()

	store := manifest.NewStore(workdir, logging.NewNop())
	if err := store.Initialize(context.Background(), "doc-1", []string{"1", "2"}); err != nil {
		t.Fatalf("initialize manifest: %v", err)
	}
	if err := store.UpdateUnit(context.Background(), "2", manifest.UnitError, &manifest.UnitPatch{Error: "analyze failed"}); err != nil {
		t.Fatalf("mark unit errored: %v", err)
	}

	output, err := runCLI(t, configPath, "units", "list", workdir)
	if err != nil {
		t.Fatalf("units list: %v", err)
	}
	if !strings.Contains(output, "analyze failed") {
		t.Fatalf("expected error column in output, got %q", output)
	}
	if !strings.Contains(output, string(manifest.UnitPending)) {
		t.Fatalf("expected pending unit in output, got %q", output)
	}

	if _, err := runCLI(t, configPath, "units", "reset", workdir, "2"); err != nil {
		t.Fatalf("units reset: %v", err)
	}
	m, err := store.Load()
	if err != nil {
		t.Fatalf("reload manifest: %v", err)
	}
	if m.Units["2"].Status != manifest.UnitPending {
		t.Fatalf("expected unit 2 pending after reset, got %s", m.Units["2"].Status)
	}
}

func TestSeriesCommands(t *testing.T) {
	configPath := writeCLIConfig(t)
	root := t.TempDir()

	if _, err := runCLI(t, configPath, "series", "init", root, "--name", "Hollowmere"); err != nil {
		t.Fatalf("series init: %v", err)
	}
	if _, err := runCLI(t, configPath, "series", "add", root, "book-one", "--title", "The Hollowmere Road", "--order", "1"); err != nil {
		t.Fatalf("series add: %v", err)
	}

	if _, err := runCLI(t, configPath, "series", "mark", root, "book-one", "in_progress"); err != nil {
		t.Fatalf("series mark: %v", err)
	}
	if _, err := runCLI(t, configPath, "series", "mark", root, "book-one", "sideways"); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	output, err := runCLI(t, configPath, "series", "status", root)
	if err != nil {
		t.Fatalf("series status: %v", err)
	}
	if !strings.Contains(output, "Hollowmere") {
		t.Fatalf("expected series name in output, got %q", output)
	}
	if !strings.Contains(output, "book-one") {
		t.Fatalf("expected document id in output, got %q", output)
	}
	if !strings.Contains(output, "in_progress") {
		t.Fatalf("expected marked status in output, got %q", output)
	}
}

func TestLocksClear(t *testing.T) {
	configPath := writeCLIConfig(t)
	resource := filepath.Join(t.TempDir(), ".manifest.json")
	if err := atomicfile.Write(resource, []byte("{}\n")); err != nil {
		t.Fatalf("write resource: %v", err)
	}

	output, err := runCLI(t, configPath, "locks", "clear", resource)
	if err != nil {
		t.Fatalf("locks clear without lock: %v", err)
	}
	if !strings.Contains(output, "No lock held") {
		t.Fatalf("expected no-lock message, got %q", output)
	}

	lockPath := resource + lockdir.Suffix
	if err := os.Mkdir(lockPath, 0o755); err != nil {
		t.Fatalf("create stale lock: %v", err)
	}
	if _, err := runCLI(t, configPath, "locks", "clear", resource); err != nil {
		t.Fatalf("locks clear: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatalf("expected lock directory removed, stat err = %v", err)
	}
}

func TestKnowledgeBaseShowEmpty(t *testing.T) {
	configPath := writeCLIConfig(t)
	workdir := t.TempDir()

	output, err := runCLI(t, configPath, "kb", "show", workdir)
	if err != nil {
		t.Fatalf("kb show: %v", err)
	}
	if !strings.Contains(output, "Knowledge base is empty") {
		t.Fatalf("expected empty message, got %q", output)
	}
}
