package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"limner/internal/logging"
	"limner/internal/services"
)

func TestConsoleHandlerPrefixesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	child := logging.NewComponentLogger(logger, "manifest")
	child.Info("manifest updated", logging.String(logging.FieldUnit, "ch01"))

	line := buf.String()
	if !strings.Contains(line, "INFO manifest: manifest updated") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "unit=ch01") {
		t.Fatalf("missing unit attr: %q", line)
	}
}

func TestJSONHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("probe")
	line := buf.String()
	for _, key := range []string{`"ts"`, `"level"`, `"msg"`} {
		if !strings.Contains(line, key) {
			t.Fatalf("missing %s in %q", key, line)
		}
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithDocumentID(context.Background(), "book-9")
	ctx = services.WithPhase(ctx, "illustrate")
	logging.WithContext(ctx, logger).Info("claimed unit")

	line := buf.String()
	if !strings.Contains(line, "document_id=book-9") || !strings.Contains(line, "phase=illustrate") {
		t.Fatalf("context fields missing: %q", line)
	}
}
