// Package batch drives the saga over an ordered list of work items, one at a
// time, and collects every outcome.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/models"
	"github.com/speedrun-hq/pairlauncher/pkg/pending"
)

// Runner processes one work item
type Runner interface {
	Run(ctx context.Context, item models.WorkItem) (models.OperationOutcome, error)
}

// Detector is the advisory in-flight check run before the first item
type Detector interface {
	Check(ctx context.Context, identity common.Address) (pending.Report, error)
}

// Orchestrator runs a batch sequentially. All writes share one identity, so
// items are never processed concurrently.
type Orchestrator struct {
	runner    Runner
	detector  Detector
	observers multiObserver
	now       func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithObservers registers observers notified of batch progress
func WithObservers(obs ...Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs...) }
}

// New creates an orchestrator. detector may be nil to skip the advisory check.
func New(runner Runner, detector Detector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:   runner,
		detector: detector,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes items in order and returns one outcome per item. It never
// fails: item errors, panics and cancellation all become failed outcomes.
func (o *Orchestrator) Run(ctx context.Context, meta models.RunMetadata, items []models.WorkItem) *models.BatchResult {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = o.now().UTC()
	}
	result := models.NewBatchResult(meta)
	o.observers.BatchStarted(meta, len(items))

	if o.detector != nil {
		report, err := o.detector.Check(ctx, meta.SubmittingIdentity)
		o.observers.PendingChecked(report, err)
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			outcome := failedOutcome(item.Symbol, "", ledger.NewError(ledger.KindCancelled, "batch", err))
			result.Append(outcome)
			o.observers.ItemFinished(i, item, outcome)
			continue
		}

		o.observers.ItemStarted(i, item)
		outcome := o.runItem(ctx, item)
		result.Append(outcome)
		o.observers.ItemFinished(i, item, outcome)
	}

	o.observers.BatchFinished(result)
	return result
}

// runItem is the failure isolation boundary of one item
func (o *Orchestrator) runItem(ctx context.Context, item models.WorkItem) (outcome models.OperationOutcome) {
	started := o.now()
	defer func() {
		if r := recover(); r != nil {
			outcome = failedOutcome(item.Symbol, "", ledger.NewError(ledger.KindInternal, "saga", fmt.Errorf("panic: %v", r)))
			outcome.DurationMs = o.now().Sub(started).Milliseconds()
		}
	}()

	outcome, err := o.runner.Run(ctx, item)
	if outcome.Symbol == "" {
		outcome.Symbol = item.Symbol
	}

	switch {
	case err != nil:
		outcome.Status = models.StatusFailed
		if outcome.ErrorKind == "" {
			outcome.ErrorKind = string(ledger.KindOf(err))
		}
		if outcome.Error == "" {
			outcome.Error = err.Error()
		}
	case outcome.Status == "":
		outcome = failedOutcome(item.Symbol, "", ledger.NewError(ledger.KindInternal, "saga", errors.New("runner returned no status")))
	}
	if outcome.DurationMs == 0 {
		outcome.DurationMs = o.now().Sub(started).Milliseconds()
	}
	return outcome
}

func failedOutcome(symbol, step string, err error) models.OperationOutcome {
	return models.OperationOutcome{
		Symbol:     symbol,
		Status:     models.StatusFailed,
		FailedStep: step,
		ErrorKind:  string(ledger.KindOf(err)),
		Error:      err.Error(),
	}
}
