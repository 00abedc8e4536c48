package saga

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/pairlauncher/pkg/fees"
	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/ledger/ledgertest"
	"github.com/speedrun-hq/pairlauncher/pkg/models"
	"github.com/speedrun-hq/pairlauncher/pkg/retry"
)

var (
	factory = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	tokenA  = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB  = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func testItem() models.WorkItem {
	return models.WorkItem{
		Symbol:      "A-B",
		TokenA:      tokenA,
		TokenB:      tokenB,
		AmountA:     big.NewInt(2_000),
		AmountB:     big.NewInt(5_000),
		FeeRate:     3000,
		TargetPrice: decimal.RequireFromString("2.5"),
	}
}

func newTestSaga(t *testing.T, client ledger.Client, opts ...Option) *Saga {
	estimator, err := fees.NewEstimator(client, fees.DefaultConfig(), nil)
	require.NoError(t, err)
	executor := retry.New(3, retry.WithBackoff(retry.Fixed(0)))
	return New(client, estimator, executor, factory, opts...)
}

func stepNames(o models.OperationOutcome) []string {
	names := make([]string, 0, len(o.Steps))
	for _, s := range o.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestRunCreatesPair(t *testing.T) {
	fake := ledgertest.New()
	s := newTestSaga(t, fake)

	outcome, err := s.Run(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, ledgertest.PairAddress(tokenA, tokenB, 3000).Hex(), outcome.Pair)
	assert.Equal(t, "2.5", outcome.Price)
	assert.Equal(t, "2.5", outcome.TargetPrice)
	assert.Empty(t, outcome.VerifyError)
	assert.Equal(t, []string{StepIdempotency, StepApproveA, StepApproveB, StepCreate, StepVerify}, stepNames(outcome))

	create, ok := outcome.StepByName(StepCreate)
	require.True(t, ok)
	assert.NotEmpty(t, create.TxHash)
	assert.Equal(t, uint64(fees.DefaultCreationGasLimit/2), create.GasUsed)
}

func TestRunSubmitsInOrderWithClassFees(t *testing.T) {
	fake := ledgertest.New()
	s := newTestSaga(t, fake)

	_, err := s.Run(context.Background(), testItem())
	require.NoError(t, err)

	var submits []ledgertest.Call
	for _, c := range fake.Calls() {
		if !c.Query {
			submits = append(submits, c)
		}
	}
	require.Len(t, submits, 3)

	assert.Equal(t, string(ledger.OpApprove), submits[0].Op)
	assert.Equal(t, tokenA, submits[0].Param.Token)
	assert.Equal(t, factory, submits[0].Param.Spender)
	assert.Equal(t, uint64(fees.DefaultApprovalGasLimit), submits[0].Fees.GasLimit)

	assert.Equal(t, tokenB, submits[1].Param.Token)
	assert.Equal(t, big.NewInt(5_000), submits[1].Param.Amount)

	assert.Equal(t, string(ledger.OpCreatePair), submits[2].Op)
	assert.Equal(t, uint64(fees.DefaultCreationGasLimit), submits[2].Fees.GasLimit)
	assert.Equal(t, uint32(3000), submits[2].Param.FeeRate)

	// 1 gwei base with the default 50% buffer
	for _, c := range submits {
		assert.Equal(t, big.NewInt(1_500_000_000), c.Fees.FeeRate)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	fake := ledgertest.New()
	s := newTestSaga(t, fake)

	first, err := s.Run(context.Background(), testItem())
	require.NoError(t, err)
	second, err := s.Run(context.Background(), testItem())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSucceeded, first.Status)
	assert.Equal(t, models.StatusSkippedDuplicate, second.Status)
	assert.Equal(t, first.Pair, second.Pair)
	assert.Equal(t, []string{StepIdempotency}, stepNames(second))
	assert.Equal(t, 1, fake.SubmitCount(ledger.OpCreatePair))
}

func TestRunInactivePairIsRecreated(t *testing.T) {
	fake := ledgertest.New()
	fake.SeedPair(tokenA, tokenB, 3000, false)
	s := newTestSaga(t, fake)

	outcome, err := s.Run(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, outcome.Status)
	assert.Equal(t, 1, fake.SubmitCount(ledger.OpCreatePair))
}

func TestRunRetriesTransientStep(t *testing.T) {
	fake := ledgertest.New()
	fake.FailSubmit(ledger.OpApprove, ledgertest.ForToken(tokenB), ledgertest.Transient("approve"))
	s := newTestSaga(t, fake)

	outcome, err := s.Run(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, outcome.Status)
	assert.Equal(t, 2, outcome.Attempts)

	approveB, ok := outcome.StepByName(StepApproveB)
	require.True(t, ok)
	assert.Equal(t, 2, approveB.Attempts)
	assert.Equal(t, 3, fake.SubmitCount(ledger.OpApprove))
}

func TestRunReestimatesFeePerAttempt(t *testing.T) {
	fake := ledgertest.New()
	fake.FailSubmit(ledger.OpCreatePair, ledgertest.Any, ledgertest.Transient("create_pair"), ledgertest.Transient("create_pair"))
	counter := &countingEstimator{}
	s := New(fake, counter, retry.New(3, retry.WithBackoff(retry.Fixed(0))), factory)

	_, err := s.Run(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, 3, counter.calls[ledger.FeeClassCreation])
	assert.Equal(t, 2, counter.calls[ledger.FeeClassApproval])
}

func TestRunPermanentFailureStopsSaga(t *testing.T) {
	fake := ledgertest.New()
	fake.FailSubmit(ledger.OpCreatePair, ledgertest.Any, ledgertest.Permanent("create_pair"))
	s := newTestSaga(t, fake)

	outcome, err := s.Run(context.Background(), testItem())

	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, outcome.Status)
	assert.Equal(t, StepCreate, outcome.FailedStep)
	assert.Equal(t, string(ledger.KindReverted), outcome.ErrorKind)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Contains(t, outcome.Error, "PAIR_EXISTS")
	assert.Equal(t, []string{StepIdempotency, StepApproveA, StepApproveB, StepCreate}, stepNames(outcome))
	assert.Equal(t, 1, fake.SubmitCount(ledger.OpCreatePair))
}

func TestRunExhaustedRetries(t *testing.T) {
	fake := ledgertest.New()
	fake.FailSubmit(ledger.OpApprove, ledgertest.ForToken(tokenA),
		ledgertest.Transient("approve"), ledgertest.Transient("approve"), ledgertest.Transient("approve"))
	s := newTestSaga(t, fake)

	outcome, err := s.Run(context.Background(), testItem())

	require.Error(t, err)
	var exhausted *retry.ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
	assert.Equal(t, StepApproveA, outcome.FailedStep)
	assert.Equal(t, string(ledger.KindNonceTooLow), outcome.ErrorKind)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Zero(t, fake.SubmitCount(ledger.OpCreatePair))
}

func TestRunIdempotencyQueryFailure(t *testing.T) {
	fake := ledgertest.New()
	fake.FailQuery(ledger.QueryPairStatus, ledgertest.Any,
		ledger.NewError(ledger.KindNetwork, "pair_status", errors.New("connection refused")))
	s := newTestSaga(t, fake)

	outcome, err := s.Run(context.Background(), testItem())

	require.Error(t, err)
	assert.Equal(t, StepIdempotency, outcome.FailedStep)
	assert.Equal(t, string(ledger.KindNetwork), outcome.ErrorKind)
	assert.Zero(t, fake.SubmitCount(ledger.OpApprove))
}

func TestRunVerifyFailureKeepsSuccess(t *testing.T) {
	fake := ledgertest.New()
	fake.FailQuery(ledger.QueryPairPrice, ledgertest.Any,
		ledger.NewError(ledger.KindReverted, "pair_price", errors.New("execution reverted")))
	s := newTestSaga(t, fake)

	outcome, err := s.Run(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, outcome.Status)
	assert.Contains(t, outcome.VerifyError, "execution reverted")
	assert.Empty(t, outcome.Price)
	assert.NotEmpty(t, outcome.Pair)
}

func TestRunStepTimeout(t *testing.T) {
	client := &stallingClient{Fake: ledgertest.New()}
	s := newTestSaga(t, client, WithStepTimeout(50*time.Millisecond))

	outcome, err := s.Run(context.Background(), testItem())

	require.Error(t, err)
	assert.Equal(t, StepApproveA, outcome.FailedStep)
	assert.Equal(t, string(ledger.KindConfirmationTimeout), outcome.ErrorKind)
}

func TestRunCancelledBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestSaga(t, ledgertest.New())

	outcome, err := s.Run(ctx, testItem())

	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, outcome.Status)
	assert.Equal(t, string(ledger.KindCancelled), outcome.ErrorKind)
	assert.Equal(t, 0, outcome.Attempts)
}

type countingEstimator struct {
	calls map[ledger.FeeClass]int
}

func (c *countingEstimator) Estimate(_ context.Context, class ledger.FeeClass) (ledger.FeeSettings, error) {
	if c.calls == nil {
		c.calls = make(map[ledger.FeeClass]int)
	}
	c.calls[class]++
	return ledger.FeeSettings{Class: class, FeeRate: big.NewInt(1), GasLimit: 1}, nil
}

// stallingClient never confirms a write before the context ends
type stallingClient struct {
	*ledgertest.Fake
}

func (c *stallingClient) Submit(ctx context.Context, kind ledger.OperationKind, _ ledger.Params, _ ledger.FeeSettings) (*ledger.Receipt, error) {
	<-ctx.Done()
	return nil, ledger.NewError(ledger.KindCancelled, string(kind), ctx.Err())
}
