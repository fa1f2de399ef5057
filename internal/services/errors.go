package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLockTimeout marks a failure to acquire a filesystem lock before the
	// caller's deadline. Retryable.
	ErrLockTimeout = errors.New("lock timeout")
	// ErrAtomicWrite marks an I/O or permission failure during a temp+rename
	// write. Fatal for that write.
	ErrAtomicWrite = errors.New("atomic write failure")
	// ErrCorruptState marks a persisted manifest/catalog file that exists but
	// fails to parse. Operator intervention required; never auto-recovered.
	ErrCorruptState = errors.New("corrupt state")
	// ErrDuplicateDocument marks an attempt to register a document id that
	// already exists in a series. The call fails without mutation.
	ErrDuplicateDocument = errors.New("duplicate document")
	// ErrTimeout marks a poll loop that exhausted its deadline (phase barrier).
	ErrTimeout = errors.New("timeout")

	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the caller may reasonably retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransient)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
