// Package atomicfile provides crash-safe file persistence.
//
// Writes go to a uniquely named temporary file beside the target, then the
// temporary is renamed onto the target path. Rename is atomic within one
// filesystem, so a reader always observes either the complete prior content
// or the complete new content; a crash before the rename leaves at most an
// orphaned .tmp file.
package atomicfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"limner/internal/services"
)

const component = "atomicfile"

// Write persists data to path atomically. On any failure during the write
// step the temporary file is removed on a best-effort basis and the original
// error is returned, tagged as an atomic-write failure.
func Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf("%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return services.Wrap(services.ErrAtomicWrite, component, "create temp", path, err)
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrAtomicWrite, component, "write temp", path, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrAtomicWrite, component, "sync temp", path, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrAtomicWrite, component, "close temp", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrAtomicWrite, component, "rename", path, err)
	}
	return nil
}

// WriteJSON serializes value with two-space indentation and delegates to
// Write. A trailing newline keeps the persisted files diff-friendly.
func WriteJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrAtomicWrite, component, "marshal", path, err)
	}
	return Write(path, append(data, '\n'))
}
