// Package retry re-runs load-decide-append cycles that lost an optimistic concurrency race.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	metricRetryDelay      = "eventstore_retry_delay_seconds"
	metricRetries         = "eventstore_retries_total"
	metricRetriesExceeded = "eventstore_retries_exhausted_total"

	labelOperation      = "operation"
	labelAttemptNumber  = "attempt_number"
	labelErrorType      = "error_type"
	labelFinalErrorType = "final_error_type"

	errorTypeNone             = "none"
	errorTypeConflict         = "concurrency_conflict"
	errorTypeCanceled         = "context_canceled"
	errorTypeDeadlineExceeded = "context_deadline_exceeded"
	errorTypeOther            = "other"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperation is returned when an empty operation name is provided to WithMetrics.
	ErrEmptyOperation = errors.New("operation must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Func is one attempt, typically loading a stream, deciding, and appending.
type Func func(ctx context.Context) error

// Result describes how a retried call went.
type Result struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type config struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector eventstore.MetricsCollector
	operation        string
}

// Option configures retry behavior.
type Option func(*config) error

// WithExponentialBackoff runs fn until it succeeds, fails with an error other than
// eventstore.ErrConcurrencyConflict, or maxAttempts is reached.
//
// Default schedule: 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, 160 ms, each plus up to 30% jitter.
// Timeouts and cancellations are never retried.
func WithExponentialBackoff(ctx context.Context, fn Func, options ...Option) (Result, error) {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return Result{}, err
		}
	}

	var result Result
	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter needs no crypto rand
			backoffDelay := delay + time.Duration(jitter)

			cfg.recordDuration(ctx, metricRetryDelay, backoffDelay, map[string]string{
				labelOperation:     cfg.operation,
				labelAttemptNumber: strconv.Itoa(attempt),
			})

			select {
			case <-time.After(backoffDelay):
				result.TotalDelay += backoffDelay
			case <-ctx.Done():
				result.LastErrorType = errorType(ctx.Err())
				return result, ctx.Err()
			}
		}

		result.Attempts++

		lastErr = fn(ctx)
		result.LastErrorType = errorType(lastErr)

		if lastErr == nil {
			return result, nil
		}

		if !errors.Is(lastErr, eventstore.ErrConcurrencyConflict) {
			return result, lastErr
		}

		if attempt < cfg.maxAttempts-1 {
			cfg.incrementCounter(ctx, metricRetries, map[string]string{
				labelOperation:     cfg.operation,
				labelAttemptNumber: strconv.Itoa(attempt + 1),
				labelErrorType:     result.LastErrorType,
			})
		}
	}

	cfg.incrementCounter(ctx, metricRetriesExceeded, map[string]string{
		labelOperation:      cfg.operation,
		labelFinalErrorType: result.LastErrorType,
	})

	return result, lastErr
}

func errorType(err error) string {
	switch {
	case err == nil:
		return errorTypeNone
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		return errorTypeConflict
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeDeadlineExceeded
	default:
		return errorTypeOther
	}
}

func (c *config) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if c.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := c.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	c.metricsCollector.RecordDuration(metric, duration, labels)
}

func (c *config) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if c.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := c.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	c.metricsCollector.IncrementCounter(metric, labels)
}

// WithMaxAttempts sets the maximum number of attempts, the first one included.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		c.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay before the second attempt. It doubles for every further attempt.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		c.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the random share added to each delay, from 0.0 (none) to 1.0 (up to double).
func WithJitterFactor(factor float64) Option {
	return func(c *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		c.jitterFactor = factor

		return nil
	}
}

// WithMetrics sets the metrics collector, operation labels the recorded metrics.
func WithMetrics(collector eventstore.MetricsCollector, operation string) Option {
	return func(c *config) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		c.metricsCollector = collector
		c.operation = operation

		return nil
	}
}
