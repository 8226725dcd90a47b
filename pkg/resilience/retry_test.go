package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/openserv-labs/agent-go/pkg/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	cfg := fastRetry(3).WithIsRecoverable(func(error) bool { return true })
	err := cfg.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return stderrors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryStopsOnNonRecoverable(t *testing.T) {
	calls := 0
	fatal := errors.New(errors.CodeInvalidInput, "bad input", nil) // not recoverable
	err := fastRetry(5).Do(context.Background(), func() error {
		calls++
		return fatal
	})
	if err != fatal {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-recoverable error should not retry, got %d attempts", calls)
	}
}

func TestRetryHonorsRecoverableFlag(t *testing.T) {
	calls := 0
	transient := errors.New(errors.CodePlatformError, "upstream 502", nil).WithRecoverable(true)
	err := fastRetry(3).Do(context.Background(), func() error {
		calls++
		return transient
	})
	if err != transient {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("recoverable error should exhaust attempts, got %d", calls)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Minute, // never elapses; cancellation must win
		MaxDelay:     time.Minute,
	}.WithIsRecoverable(func(error) bool { return true })

	err := cfg.Do(ctx, func() error { return stderrors.New("transient") })
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) {
		t.Fatalf("expected AgentError, got %v", err)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation in chain: %v", err)
	}
}
