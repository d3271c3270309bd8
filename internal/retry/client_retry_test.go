package retry

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	return NewClient(log.New(new(discard), "", 0), cfg)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		Timeout:        time.Second,
	}
}

func TestDo_SucceedsImmediately(t *testing.T) {
	c := testClient(t, fastConfig())
	var calls int32

	err := c.Do(context.Background(), "test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	c := testClient(t, fastConfig())
	var calls int32

	err := c.Do(context.Background(), "test", func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls before success, got %d", calls)
	}
}

func TestDo_DoesNotRetryPermanentError(t *testing.T) {
	c := testClient(t, fastConfig())
	var calls int32
	permanent := errors.New("invalid strikes for spread")

	err := c.Do(context.Background(), "test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return permanent
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call for a non-transient error, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	c := testClient(t, cfg)
	var calls int32

	err := c.Do(context.Background(), "test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("503 service unavailable")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries, got nil")
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	c := testClient(t, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Do(ctx, "test", func(ctx context.Context) error {
		t.Fatal("op should not run with an already-cancelled context")
		return nil
	})
	if err == nil {
		t.Fatal("expected error for a cancelled context, got nil")
	}
}
