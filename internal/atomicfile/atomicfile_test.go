package atomicfile_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"limner/internal/atomicfile"
	"limner/internal/services"
)

func TestWriteReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := atomicfile.Write(path, []byte("first")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := atomicfile.Write(path, []byte("second")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("content = %q, want %q", data, "second")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := atomicfile.Write(path, []byte("payload")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestWriteFailureClassified(t *testing.T) {
	// Target directory does not exist.
	path := filepath.Join(t.TempDir(), "missing", "state.json")
	err := atomicfile.Write(path, []byte("payload"))
	if !errors.Is(err, services.ErrAtomicWrite) {
		t.Fatalf("expected atomic-write classification, got %v", err)
	}
}

func TestConcurrentWritersNeverInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.bin")
	const writers = 10
	payloads := make([][]byte, writers)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 64*1024)
	}

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			if err := atomicfile.Write(path, payloads[i]); err != nil {
				t.Errorf("writer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	for _, payload := range payloads {
		if bytes.Equal(data, payload) {
			return
		}
	}
	t.Fatalf("final content matches no single writer (len=%d, first byte=%q)", len(data), data[0])
}

func TestWriteJSONDeterministicShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	value := map[string]any{"name": "Aldric", "order": 1}
	if err := atomicfile.WriteJSON(path, value); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Fatal("expected trailing newline")
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if decoded["name"] != "Aldric" {
		t.Fatalf("unexpected round-trip value: %#v", decoded)
	}
}
