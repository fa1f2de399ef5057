package services_test

import (
	"errors"
	"strings"
	"testing"

	"limner/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("disk full")
	err := services.Wrap(services.ErrAtomicWrite, "atomicfile", "write", "/tmp/x.json", cause)
	if !errors.Is(err, services.ErrAtomicWrite) {
		t.Fatalf("expected wrapped error to match marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error to retain cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "atomicfile: write: /tmp/x.json") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected generic detail, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"lock timeout", services.Wrap(services.ErrLockTimeout, "lockdir", "acquire", "", nil), true},
		{"barrier timeout", services.ErrTimeout, true},
		{"corrupt state", services.Wrap(services.ErrCorruptState, "manifest", "load", "", nil), false},
		{"duplicate document", services.ErrDuplicateDocument, false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.retryable {
			t.Fatalf("%s: expected retryable=%v, got %v", tc.name, tc.retryable, got)
		}
	}
}
