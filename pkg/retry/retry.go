// Package retry runs a fallible ledger operation under a bounded attempt budget,
// retrying only the error kinds on an explicit allow-list.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
	"github.com/speedrun-hq/pairlauncher/pkg/metrics"
)

const (
	// DefaultMaxRetries is the total attempt budget of one operation
	DefaultMaxRetries = 3
	// DefaultInterval is the fixed wait between attempts
	DefaultInterval = 2 * time.Second
)

// Operation is one attempt of a remote call
type Operation func(ctx context.Context) error

// ExhaustedError is returned when every attempt failed with a transient error
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Executor retries transient failures of an Operation
type Executor struct {
	maxRetries int
	backoff    Backoff
	transient  map[ledger.ErrorKind]bool
	logger     logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor
type Option func(*Executor)

// WithBackoff replaces the default fixed interval
func WithBackoff(b Backoff) Option {
	return func(e *Executor) { e.backoff = b }
}

// WithTransientKinds replaces the retry allow-list
func WithTransientKinds(kinds ...ledger.ErrorKind) Option {
	return func(e *Executor) {
		e.transient = make(map[ledger.ErrorKind]bool, len(kinds))
		for _, k := range kinds {
			e.transient[k] = true
		}
	}
}

// WithLogger sets the logger used for retry notices
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an executor allowing maxRetries attempts in total
func New(maxRetries int, opts ...Option) *Executor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	e := &Executor{
		maxRetries: maxRetries,
		backoff:    Fixed(DefaultInterval),
		logger:     &logger.EmptyLogger{},
		sleep:      sleepContext,
	}
	WithTransientKinds(ledger.DefaultTransientKinds...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxRetries returns the attempt budget
func (e *Executor) MaxRetries() int {
	return e.maxRetries
}

// IsTransient reports whether err is on the allow-list
func (e *Executor) IsTransient(err error) bool {
	return e.transient[ledger.KindOf(err)]
}

// Execute runs op until it succeeds, fails permanently, or the budget is spent.
// It returns the number of attempts consumed.
func (e *Executor) Execute(ctx context.Context, name string, op Operation) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, ledger.NewError(ledger.KindCancelled, name, err)
		}

		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		kind := ledger.KindOf(err)
		if !e.transient[kind] {
			e.logger.Debug("%s failed with permanent error (%s) on attempt %d: %v", name, kind, attempt, err)
			return attempt, err
		}
		if attempt == e.maxRetries {
			break
		}

		delay := e.backoff.Delay(attempt)
		metrics.Retries.WithLabelValues(name, string(kind)).Inc()
		e.logger.Notice("%s hit transient error (%s) on attempt %d/%d, retrying in %v",
			name, kind, attempt, e.maxRetries, delay)

		if err := e.sleep(ctx, delay); err != nil {
			return attempt, ledger.NewError(ledger.KindCancelled, name, fmt.Errorf("%w while waiting to retry: %v", err, lastErr))
		}
	}

	metrics.MaxRetriesReached.WithLabelValues(name, string(ledger.KindOf(lastErr))).Inc()
	e.logger.Error("%s exhausted %d attempts: %v", name, e.maxRetries, lastErr)
	return e.maxRetries, &ExhaustedError{Attempts: e.maxRetries, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
