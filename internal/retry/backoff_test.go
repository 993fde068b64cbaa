package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		return nil
	})

	if !result.Success {
		t.Error("Expected success")
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
}

func TestWithBackoff_RetriesRetryableError(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if !result.Success {
		t.Errorf("Expected eventual success, got error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
}

func TestWithBackoff_StopsOnNonRetryableError(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("invalid api key")
	})

	if result.Success {
		t.Error("Expected failure")
	}
	if calls != 1 {
		t.Errorf("Expected a single attempt for a non-retryable error, got %d", calls)
	}
}

func TestWithBackoff_ExhaustsRetries(t *testing.T) {
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		return errors.New("503 service unavailable")
	})

	if result.Success {
		t.Error("Expected failure after exhausting retries")
	}
	if result.Attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", result.Attempts)
	}
}

func TestWithBackoff_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := WithBackoff(ctx, fastConfig(), func() error {
		return errors.New("timeout")
	})

	if result.Success {
		t.Error("Expected failure with cancelled context")
	}
	if !errors.Is(result.LastError, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", result.LastError)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(errors.New("HTTP 429 Too Many Requests")) {
		t.Error("Rate limit errors should be retryable")
	}
	if !IsRetryable(errors.New("dial tcp: Connection Refused")) {
		t.Error("Connection errors should be retryable, case-insensitively")
	}
	if IsRetryable(errors.New("model not found")) {
		t.Error("Unknown-model errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	config := Config{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10}

	if d := calculateDelay(config, 5); d > 3*time.Second {
		t.Errorf("Expected delay capped at max, got %v", d)
	}
}
