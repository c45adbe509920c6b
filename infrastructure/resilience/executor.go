// Package resilience guards calls to external services (the MQTT broker)
// using fortify.
package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// Executor runs outbound calls behind a bulkhead, a circuit breaker and,
// for idempotent calls, a retrier.
type Executor struct {
	bulkhead bulkhead.Bulkhead[struct{}]
	breaker  circuitbreaker.CircuitBreaker[struct{}]
	retry    retry.Retry[struct{}]
	timeout  time.Duration
}

// ExecutorConfig configures the executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent calls.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts for idempotent calls.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between attempts.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// NonRetryable lists errors that stop retrying immediately.
	NonRetryable []error

	// DefaultTimeout bounds a single Execute call including retries.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns the configuration used for broker publishing.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           4,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       200 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		DefaultTimeout:          10 * time.Second,
	}
}

// NewExecutor creates a new executor.
func NewExecutor(config ExecutorConfig) *Executor {
	defaults := DefaultExecutorConfig()
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaults.MaxConcurrent
	}
	threshold := config.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = defaults.CircuitBreakerThreshold
	}
	attempts := config.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := config.DefaultTimeout
	if timeout <= 0 {
		timeout = defaults.DefaultTimeout
	}
	multiplier := config.RetryBackoffMultiplier
	if multiplier <= 0 {
		multiplier = defaults.RetryBackoffMultiplier
	}

	return &Executor{
		bulkhead: bulkhead.New[struct{}](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- bounds checked above
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		retry: retry.New[struct{}](retry.Config{
			MaxAttempts:        attempts,
			InitialDelay:       config.RetryInitialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         multiplier,
			NonRetryableErrors: config.NonRetryable,
		}),
		timeout: timeout,
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// Execute runs an idempotent call.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry.
func (e *Executor) Execute(ctx context.Context, fn func(context.Context) error) error {
	return e.run(ctx, fn, true)
}

// ExecuteOnce runs a call that must not be repeated. It still counts
// towards the circuit breaker.
func (e *Executor) ExecuteOnce(ctx context.Context, fn func(context.Context) error) error {
	return e.run(ctx, fn, false)
}

func (e *Executor) run(ctx context.Context, fn func(context.Context) error, idempotent bool) error {
	call := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}

	_, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		return e.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			if idempotent {
				return e.retry.Do(ctx, call)
			}
			return call(ctx)
		})
	})
	return err
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (e *Executor) CircuitBreakerState() circuitbreaker.State {
	return e.breaker.State()
}
