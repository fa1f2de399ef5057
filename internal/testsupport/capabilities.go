package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"limner/internal/knowledge"
	"limner/internal/workflow"
)

// FakeSeeder returns a fixed entity list and records calls.
type FakeSeeder struct {
	Seeds []knowledge.Seed
	Err   error

	mu    sync.Mutex
	calls int
}

func (f *FakeSeeder) DiscoverEntities(_ context.Context, _, _ string) ([]knowledge.Seed, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Seeds, nil
}

// Calls reports how many times the seeder ran.
func (f *FakeSeeder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeAnalyzer maps unit ids to scene lists. Units without an entry fail
// with Err when set, otherwise produce a single default scene.
type FakeAnalyzer struct {
	Scenes   map[string][]string
	FailUnit string
	Err      error
}

func (f *FakeAnalyzer) AnalyzeUnit(_ context.Context, req workflow.AnalyzeRequest) ([]string, error) {
	if f.FailUnit != "" && req.UnitID == f.FailUnit {
		return nil, f.Err
	}
	if scenes, ok := f.Scenes[req.UnitID]; ok {
		return scenes, nil
	}
	return []string{"A quiet scene in unit " + req.UnitID + "."}, nil
}

// FakeIllustrator writes a placeholder file at the requested output path and
// records every rendered scene.
type FakeIllustrator struct {
	FailUnit string
	Err      error

	mu       sync.Mutex
	rendered []workflow.IllustrateRequest
}

func (f *FakeIllustrator) Illustrate(_ context.Context, req workflow.IllustrateRequest) (string, error) {
	if f.FailUnit != "" && req.UnitID == f.FailUnit {
		return "", f.Err
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(req.OutputPath, []byte("png"), 0o644); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.rendered = append(f.rendered, req)
	f.mu.Unlock()
	return req.OutputPath, nil
}

// Rendered returns a copy of all successful render requests.
func (f *FakeIllustrator) Rendered() []workflow.IllustrateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]workflow.IllustrateRequest(nil), f.rendered...)
}
