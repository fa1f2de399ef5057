package waitfor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"limner/internal/waitfor"
)

func TestPollSucceedsOnceConditionHolds(t *testing.T) {
	var calls atomic.Int32
	err := waitfor.Poll(context.Background(), 5*time.Millisecond, time.Second, func() error {
		if calls.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestPollReturnsLastErrorOnDeadline(t *testing.T) {
	sentinel := errors.New("still held")
	start := time.Now()
	err := waitfor.Poll(context.Background(), 20*time.Millisecond, 100*time.Millisecond, func() error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	// Deadline plus one retry interval is the documented bound.
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("poll overran deadline: %v", elapsed)
	}
}

func TestPollStopsOnFatal(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("permission denied")
	err := waitfor.Poll(context.Background(), 5*time.Millisecond, time.Second, func() error {
		calls.Add(1)
		return waitfor.Fatal(boom)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fatal error surfaced, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestPollHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitfor.Poll(ctx, 10*time.Millisecond, time.Second, func() error {
		return errors.New("never")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
