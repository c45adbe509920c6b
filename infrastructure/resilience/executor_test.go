package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var errBroker = errors.New("broker unavailable")

func TestDefaultExecutorConfig(t *testing.T) {
	t.Parallel()

	config := DefaultExecutorConfig()
	if config.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", config.MaxConcurrent)
	}
	if config.CircuitBreakerThreshold != 5 {
		t.Errorf("CircuitBreakerThreshold = %d, want 5", config.CircuitBreakerThreshold)
	}
	if config.RetryMaxAttempts != 3 {
		t.Errorf("RetryMaxAttempts = %d, want 3", config.RetryMaxAttempts)
	}
	if config.DefaultTimeout != 10*time.Second {
		t.Errorf("DefaultTimeout = %v, want 10s", config.DefaultTimeout)
	}
}

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int32
		once      bool
		wantCalls int32
		wantErr   bool
	}{
		{"success", 0, false, 1, false},
		{"retried until success", 2, false, 3, false},
		{"retries exhausted", 5, false, 3, true},
		{"once is not retried", 1, true, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewExecutorWithOptions(WithRetry(3, time.Millisecond))

			var calls atomic.Int32
			fn := func(context.Context) error {
				if calls.Add(1) <= tt.failures {
					return errBroker
				}
				return nil
			}

			var err error
			if tt.once {
				err = e.ExecuteOnce(context.Background(), fn)
			} else {
				err = e.Execute(context.Background(), fn)
			}

			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestExecutor_NonRetryable(t *testing.T) {
	t.Parallel()

	e := NewExecutorWithOptions(WithRetry(5, time.Millisecond), WithNonRetryable(errBroker))

	var calls atomic.Int32
	err := e.Execute(context.Background(), func(context.Context) error {
		calls.Add(1)
		return errBroker
	})
	if err == nil {
		t.Fatal("Execute() should fail")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestExecutor_Timeout(t *testing.T) {
	t.Parallel()

	e := NewExecutorWithOptions(WithRetry(1, time.Millisecond), WithTimeout(50*time.Millisecond))

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	if err == nil {
		t.Error("Execute() should fail when the timeout expires")
	}
}

func TestExecutor_CircuitBreakerOpens(t *testing.T) {
	t.Parallel()

	e := NewExecutorWithOptions(
		WithRetry(1, time.Millisecond),
		WithCircuitBreaker(2, time.Minute),
	)
	if got := e.CircuitBreakerState().String(); got != "closed" {
		t.Fatalf("initial state = %s, want closed", got)
	}

	fail := func(context.Context) error { return errBroker }
	for i := 0; i < 2; i++ {
		_ = e.ExecuteOnce(context.Background(), fail)
	}

	if got := e.CircuitBreakerState().String(); got != "open" {
		t.Errorf("state after failures = %s, want open", got)
	}

	var called bool
	err := e.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Errorf("open breaker should reject calls: err=%v called=%v", err, called)
	}
}

func TestNewExecutor_NonPositiveConfig(t *testing.T) {
	t.Parallel()

	e := NewExecutor(ExecutorConfig{
		MaxConcurrent:           -1,
		CircuitBreakerThreshold: -1,
		RetryMaxAttempts:        0,
	})

	if err := e.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("Execute() error = %v", err)
	}
}
