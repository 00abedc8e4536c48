// Package saga runs the ordered steps that create one trading pair.
package saga

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
	"github.com/speedrun-hq/pairlauncher/pkg/metrics"
	"github.com/speedrun-hq/pairlauncher/pkg/models"
	"github.com/speedrun-hq/pairlauncher/pkg/retry"
)

// Step names, also used as metric labels
const (
	StepIdempotency = "idempotency"
	StepApproveA    = "approve-a"
	StepApproveB    = "approve-b"
	StepCreate      = "create"
	StepVerify      = "verify"
)

// DefaultStepTimeout bounds one step including its retries
const DefaultStepTimeout = 5 * time.Minute

// priceScale is the fixed point exponent of pair prices
const priceScale = 18

// FeeEstimator prices a write of the given class
type FeeEstimator interface {
	Estimate(ctx context.Context, class ledger.FeeClass) (ledger.FeeSettings, error)
}

// Saga creates pairs through a ledger client
type Saga struct {
	client      ledger.Client
	fees        FeeEstimator
	retry       *retry.Executor
	spender     common.Address
	stepTimeout time.Duration
	logger      logger.Logger
	now         func() time.Time
}

// Option configures a Saga
type Option func(*Saga)

// WithStepTimeout sets the deadline of each step
func WithStepTimeout(d time.Duration) Option {
	return func(s *Saga) {
		if d > 0 {
			s.stepTimeout = d
		}
	}
}

// WithLogger sets the saga logger
func WithLogger(l logger.Logger) Option {
	return func(s *Saga) { s.logger = l }
}

// New creates a saga approving allowances to spender, the pair factory
func New(client ledger.Client, fees FeeEstimator, executor *retry.Executor, spender common.Address, opts ...Option) *Saga {
	s := &Saga{
		client:      client,
		fees:        fees,
		retry:       executor,
		spender:     spender,
		stepTimeout: DefaultStepTimeout,
		logger:      &logger.EmptyLogger{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run accumulates the outcome of one item while its steps execute
type run struct {
	outcome models.OperationOutcome
	started time.Time
	saga    *Saga
}

// Run executes the steps for item. The returned error is non-nil exactly when
// the outcome is failed; the outcome is always complete.
func (s *Saga) Run(ctx context.Context, item models.WorkItem) (models.OperationOutcome, error) {
	log := s.logger.With(item.Symbol)
	r := &run{
		outcome: models.OperationOutcome{Symbol: item.Symbol},
		started: s.now(),
		saga:    s,
	}
	if !item.TargetPrice.IsZero() {
		r.outcome.TargetPrice = item.TargetPrice.String()
	}

	// 1. skip pairs created by an earlier run
	var status ledger.QueryResult
	if _, err := r.step(ctx, StepIdempotency, func(ctx context.Context) error {
		res, err := s.client.Query(ctx, ledger.QueryPairStatus, pairParams(item))
		if err != nil {
			return err
		}
		status = res
		return nil
	}); err != nil {
		return r.fail(StepIdempotency, err)
	}
	if status.Exists && status.Active {
		log.Info("Pair already exists at %s, skipping", status.Pair.Hex())
		r.outcome.Status = models.StatusSkippedDuplicate
		r.outcome.Pair = status.Pair.Hex()
		return r.finish(), nil
	}
	if status.Exists {
		log.Notice("Pair %s exists but is inactive, creating anyway", status.Pair.Hex())
	}

	// 2, 3. allowances for the factory
	approvals := []struct {
		step   string
		token  common.Address
		amount *big.Int
	}{
		{StepApproveA, item.TokenA, item.AmountA},
		{StepApproveB, item.TokenB, item.AmountB},
	}
	for _, a := range approvals {
		receipt, err := r.submit(ctx, a.step, ledger.OpApprove, ledger.FeeClassApproval, ledger.Params{
			Token:   a.token,
			Spender: s.spender,
			Amount:  a.amount,
		})
		if err != nil {
			return r.fail(a.step, err)
		}
		log.Info("Approved %s of %s in tx %s", a.amount, a.token.Hex(), receipt.TxHash.Hex())
	}

	// 4. create
	params := pairParams(item)
	params.AmountA = item.AmountA
	params.AmountB = item.AmountB
	receipt, err := r.submit(ctx, StepCreate, ledger.OpCreatePair, ledger.FeeClassCreation, params)
	if err != nil {
		return r.fail(StepCreate, err)
	}
	r.outcome.Status = models.StatusSucceeded
	if receipt.Pair != (common.Address{}) {
		r.outcome.Pair = receipt.Pair.Hex()
	}
	log.Info("Created pair in tx %s (block %d, gas %d)", receipt.TxHash.Hex(), receipt.BlockNumber, receipt.GasUsed)

	// 5. verify; a failure here does not undo the committed steps
	price, pair, err := r.verify(ctx, item, receipt.Pair)
	if err != nil {
		log.Notice("Verification failed: %v", err)
		r.outcome.VerifyError = err.Error()
		return r.finish(), nil
	}
	r.outcome.Pair = pair.Hex()
	r.outcome.Price = price
	log.Info("Verified pair %s, price %s", pair.Hex(), price)
	return r.finish(), nil
}

// verify reads the price of the new pair, resolving its address first when the
// creation receipt did not carry it.
func (r *run) verify(ctx context.Context, item models.WorkItem, pair common.Address) (string, common.Address, error) {
	var price *big.Int
	_, err := r.step(ctx, StepVerify, func(ctx context.Context) error {
		if pair == (common.Address{}) {
			res, err := r.saga.client.Query(ctx, ledger.QueryPairStatus, pairParams(item))
			if err != nil {
				return err
			}
			if !res.Exists {
				return ledger.NewError(ledger.KindValidation, StepVerify, errors.New("pair not found after creation"))
			}
			pair = res.Pair
		}
		res, err := r.saga.client.Query(ctx, ledger.QueryPairPrice, ledger.Params{Pair: pair})
		if err != nil {
			return err
		}
		if res.Price == nil {
			return ledger.NewError(ledger.KindValidation, StepVerify, errors.New("pair returned no price"))
		}
		price = res.Price
		return nil
	})
	if err != nil {
		return "", pair, err
	}
	return decimal.NewFromBigInt(price, -priceScale).String(), pair, nil
}

// submit sends one write, re-estimating the fee on every attempt
func (r *run) submit(ctx context.Context, name string, kind ledger.OperationKind, class ledger.FeeClass, params ledger.Params) (*ledger.Receipt, error) {
	var receipt *ledger.Receipt
	idx, err := r.step(ctx, name, func(ctx context.Context) error {
		fees, err := r.saga.fees.Estimate(ctx, class)
		if err != nil {
			return ledger.NewError(ledger.KindInternal, name, err)
		}
		rc, err := r.saga.client.Submit(ctx, kind, params, fees)
		if err != nil {
			return err
		}
		receipt = rc
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.outcome.Steps[idx].TxHash = receipt.TxHash.Hex()
	r.outcome.Steps[idx].GasUsed = receipt.GasUsed
	metrics.GasUsed.WithLabelValues(name).Observe(float64(receipt.GasUsed))
	return receipt, nil
}

// step runs op through the retry executor under the step deadline and
// appends its audit record. It returns the index of that record.
func (r *run) step(ctx context.Context, name string, op retry.Operation) (int, error) {
	stepCtx, cancel := context.WithTimeout(ctx, r.saga.stepTimeout)
	defer cancel()

	attempts, err := r.saga.retry.Execute(stepCtx, name, op)
	if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		err = ledger.NewError(ledger.KindConfirmationTimeout, name,
			fmt.Errorf("step did not finish within %s: %w", r.saga.stepTimeout, err))
	}

	metrics.StepAttempts.WithLabelValues(name).Add(float64(attempts))
	if attempts > r.outcome.Attempts {
		r.outcome.Attempts = attempts
	}

	record := models.StepRecord{Name: name, Attempts: attempts}
	if err != nil {
		record.Error = err.Error()
	}
	r.outcome.Steps = append(r.outcome.Steps, record)
	return len(r.outcome.Steps) - 1, err
}

func (r *run) fail(step string, err error) (models.OperationOutcome, error) {
	r.outcome.Status = models.StatusFailed
	r.outcome.FailedStep = step
	r.outcome.ErrorKind = string(ledger.KindOf(err))
	r.outcome.Error = err.Error()
	r.saga.logger.With(r.outcome.Symbol).Error("Step %s failed after %d attempt(s): %v",
		step, r.outcome.Steps[len(r.outcome.Steps)-1].Attempts, err)
	return r.finish(), fmt.Errorf("%s: %s: %w", r.outcome.Symbol, step, err)
}

func (r *run) finish() models.OperationOutcome {
	r.outcome.DurationMs = r.saga.now().Sub(r.started).Milliseconds()
	return r.outcome
}

func pairParams(item models.WorkItem) ledger.Params {
	return ledger.Params{TokenA: item.TokenA, TokenB: item.TokenB, FeeRate: item.FeeRate}
}
