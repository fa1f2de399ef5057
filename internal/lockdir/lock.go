package lockdir

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"limner/internal/services"
	"limner/internal/waitfor"
)

// RetryInterval is the fixed delay between acquisition attempts.
const RetryInterval = 100 * time.Millisecond

// Suffix is appended to the protected resource path to form the lock path.
const Suffix = ".lock"

var errHeld = errors.New("lock held")

// Lock guards a single resource path. The zero value is not usable; construct
// with New.
type Lock struct {
	resource string
	path     string
}

// New returns a lock for the named resource. The lock directory lives at
// <resource>.lock so concurrent processes agree on the location without
// further coordination.
func New(resource string) *Lock {
	return &Lock{resource: resource, path: resource + Suffix}
}

// Path returns the lock directory path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire attempts atomic creation of the lock directory, retrying every
// RetryInterval until it succeeds or timeout elapses. Timeout produces a
// lock-timeout error naming the lock path; any filesystem error other than
// "already exists" propagates immediately.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) error {
	err := waitfor.Poll(ctx, RetryInterval, timeout, func() error {
		switch err := os.Mkdir(l.path, 0o755); {
		case err == nil:
			return nil
		case errors.Is(err, fs.ErrExist):
			return errHeld
		default:
			return waitfor.Fatal(err)
		}
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, errHeld) {
		return services.Wrap(services.ErrLockTimeout, "lockdir", "acquire", l.path, nil)
	}
	return err
}

// Release removes the lock directory. Releasing an already-released lock is
// a no-op so callers can release unconditionally in deferred cleanup.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// WithLock acquires the lock, runs fn to completion, and always releases
// afterward regardless of fn's outcome. fn's error wins over a release error.
func (l *Lock) WithLock(ctx context.Context, timeout time.Duration, fn func() error) error {
	if err := l.Acquire(ctx, timeout); err != nil {
		return err
	}
	fnErr := fn()
	if relErr := l.Release(); relErr != nil && fnErr == nil {
		return relErr
	}
	return fnErr
}
