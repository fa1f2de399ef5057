// Package waitfor provides the shared fixed-interval poll loop used by the
// filesystem lock and the knowledge-base phase barrier. Both concerns reduce
// to "retry a predicate every interval until it succeeds or the deadline
// passes", so the loop lives here once.
package waitfor

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Fatal marks an error as non-retryable: Poll stops immediately and returns it.
var Fatal = retry.Unrecoverable

// Poll invokes fn every interval until fn returns nil, fn returns a Fatal
// error, ctx is done, or timeout elapses. The first attempt runs immediately.
// On exhaustion the last error from fn is returned.
func Poll(ctx context.Context, interval, timeout time.Duration, fn func() error) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	attempts := uint(timeout/interval) + 1
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
