package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "seedharvest/pkg/errors"
)

// recordSleep captures requested delays without waiting
func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt yet"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestDoublingBackoffIsUncapped(t *testing.T) {
	backoff := DoublingBackoff(5 * time.Second)

	if got := backoff.NextDelay(1); got != 5*time.Second {
		t.Errorf("attempt 1: got %v", got)
	}
	if got := backoff.NextDelay(5); got != 80*time.Second {
		t.Errorf("attempt 5: got %v", got)
	}
	if got := backoff.NextDelay(200); got <= 0 {
		t.Errorf("huge attempt must not overflow to %v", got)
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("jittered delay %v outside bounds", delay)
		}
		delays[delay] = true
	}

	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := Do(op, &Config{
		MaxAttempts: 5,
		Backoff:     DoublingBackoff(time.Second),
		RetryIf:     func(err error) bool { return true },
		Sleep:       recordSleep(&delays),
	})
	if err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Errorf("Expected delays [1s 2s], got %v", delays)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	persistent := errors.New("persistent error")
	var callbacks []int

	err := Do(func() error {
		attempts++
		return persistent
	}, &Config{
		MaxAttempts: 3,
		Backoff:     DoublingBackoff(5 * time.Second),
		RetryIf:     func(err error) bool { return true },
		Sleep:       recordSleep(&delays),
		OnRetry: func(attempt int, err error, delay time.Duration) {
			callbacks = append(callbacks, attempt)
		},
	})

	if !errors.Is(err, errs.ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got %v", err)
	}
	if !errors.Is(err, persistent) {
		t.Errorf("Expected last error to be wrapped, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	// no wait after the final attempt
	if len(delays) != 2 || delays[0] != 5*time.Second || delays[1] != 10*time.Second {
		t.Errorf("Expected delays [5s 10s], got %v", delays)
	}
	if len(callbacks) != 2 {
		t.Errorf("Expected 2 OnRetry calls, got %v", callbacks)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	cfgError := errs.New(errs.ErrorTypeConfig, "load", "missing API key")

	err := Do(func() error {
		attempts++
		return cfgError
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		RetryIf:     DefaultRetryIf,
	})

	if err != cfgError {
		t.Errorf("Expected config error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for config error), got %d", attempts)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"quota", errs.Download("retrieve", errs.ErrQuotaExhausted), false},
		{"catalog", errs.Catalog("search", errors.New("502")), true},
		{"consumer", errs.Consumer("add", errors.New("refused")), false},
		{"unknown", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	op := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}

	err := Do(op, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 100 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     ctx,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts before cancellation, got %d", attempts)
	}
}

func TestUnlimitedAttempts(t *testing.T) {
	attempts := 0
	var delays []time.Duration

	err := Do(func() error {
		attempts++
		if attempts < 10 {
			return errors.New("page fetch failed")
		}
		return nil
	}, &Config{
		Backoff: &ConstantBackoff{Delay: 10 * time.Second},
		RetryIf: func(err error) bool { return true },
		Sleep:   recordSleep(&delays),
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if len(delays) != 9 {
		t.Errorf("Expected 9 waits, got %d", len(delays))
	}
	for _, d := range delays {
		if d != 10*time.Second {
			t.Errorf("Expected constant 10s delay, got %v", d)
		}
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}

	result, err := DoWithResult(op, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
	})
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got '%s'", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestWait(t *testing.T) {
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("zero wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
