package daemon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"limner/internal/atomicfile"
	"limner/internal/services"
	"limner/internal/textutil"
	"limner/internal/workflow"
)

// IngestDocument turns one intake file into a document working directory
// under libraryDir and returns the document id and workdir. Markdown files
// split into one unit per top-level heading; plain text becomes a single
// unit. The original file is preserved as source inside the workdir and
// removed from the intake directory.
func IngestDocument(libraryDir, path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read intake document: %w", err)
	}

	base := filepath.Base(path)
	documentID := textutil.SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)))
	workdir := filepath.Join(libraryDir, documentID)

	unitsDir := filepath.Join(workdir, workflow.UnitsDirName)
	if entries, err := os.ReadDir(unitsDir); err == nil && len(entries) > 0 {
		return "", "", services.Wrap(services.ErrDuplicateDocument, "daemon", "ingest", documentID, nil)
	}
	if err := os.MkdirAll(unitsDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create units directory: %w", err)
	}

	units := SplitUnits(base, string(data))
	for i, unit := range units {
		unitPath := filepath.Join(unitsDir, fmt.Sprintf("%d.txt", i+1))
		if err := atomicfile.Write(unitPath, []byte(unit)); err != nil {
			return "", "", err
		}
	}

	sourcePath := filepath.Join(workdir, "source"+filepath.Ext(base))
	if err := moveFile(path, sourcePath); err != nil {
		return "", "", err
	}

	return documentID, workdir, nil
}

// SplitUnits breaks document text into processing units. Markdown splits on
// top-level headings; anything else is one unit. Text before the first
// heading joins the first unit.
func SplitUnits(name, text string) []string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".md" && ext != ".markdown" {
		return []string{text}
	}

	var units []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if strings.HasPrefix(line, "# ") && strings.TrimSpace(current.String()) != "" {
			units = append(units, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if strings.TrimSpace(current.String()) != "" {
		units = append(units, current.String())
	}
	if len(units) == 0 {
		return []string{text}
	}
	return units
}

// moveFile renames when possible and falls back to copy+remove for
// cross-device intake directories.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy document: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return os.Remove(src)
}
