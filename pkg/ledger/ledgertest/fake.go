// Package ledgertest provides a scripted in-memory ledger for tests.
package ledgertest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
)

// Call records one interaction with the fake
type Call struct {
	Op    string
	Query bool
	Param ledger.Params
	Fees  ledger.FeeSettings
}

// Matcher selects the calls a scripted failure applies to
type Matcher func(p ledger.Params) bool

// Any matches every call
func Any(_ ledger.Params) bool { return true }

// ForToken matches approvals of token
func ForToken(token common.Address) Matcher {
	return func(p ledger.Params) bool { return p.Token == token }
}

// ForPair matches creations and lookups of the (a, b) pair
func ForPair(a, b common.Address) Matcher {
	return func(p ledger.Params) bool { return p.TokenA == a && p.TokenB == b }
}

type script struct {
	match Matcher
	errs  []error
}

type pairState struct {
	address common.Address
	active  bool
	price   *big.Int
}

// Fake implements ledger.Client in memory. Writes succeed unless a scripted
// failure matches; created pairs become visible to QueryPairStatus.
type Fake struct {
	mu sync.Mutex

	BaseFee  *big.Int
	FeeErr   error
	Sequence ledger.SequenceNumbers
	SeqErr   error

	submitScripts map[ledger.OperationKind][]*script
	queryScripts  map[ledger.QueryKind][]*script
	pairs         map[common.Hash]*pairState
	calls         []Call
	blockNumber   uint64
}

var _ ledger.Client = (*Fake)(nil)

// New creates a fake with a base fee of 1 gwei
func New() *Fake {
	return &Fake{
		BaseFee:       big.NewInt(1_000_000_000),
		submitScripts: make(map[ledger.OperationKind][]*script),
		queryScripts:  make(map[ledger.QueryKind][]*script),
		pairs:         make(map[common.Hash]*pairState),
	}
}

// FailSubmit queues errs for successive matching submits of kind; once the
// queue drains the submits succeed.
func (f *Fake) FailSubmit(kind ledger.OperationKind, match Matcher, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitScripts[kind] = append(f.submitScripts[kind], &script{match: match, errs: errs})
}

// FailQuery queues errs for successive matching queries of kind
func (f *Fake) FailQuery(kind ledger.QueryKind, match Matcher, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryScripts[kind] = append(f.queryScripts[kind], &script{match: match, errs: errs})
}

// SeedPair registers an existing pair, e.g. one created by an earlier run
func (f *Fake) SeedPair(a, b common.Address, feeRate uint32, active bool) common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := &pairState{address: PairAddress(a, b, feeRate), active: active, price: big.NewInt(0)}
	f.pairs[pairKey(a, b, feeRate)] = st
	return st.address
}

// Calls returns a copy of every recorded interaction
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// SubmitCount returns how many submits of kind were attempted
func (f *Fake) SubmitCount(kind ledger.OperationKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if !c.Query && c.Op == string(kind) {
			n++
		}
	}
	return n
}

func (f *Fake) Submit(ctx context.Context, kind ledger.OperationKind, params ledger.Params, fees ledger.FeeSettings) (*ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: string(kind), Param: params, Fees: fees})
	if err := ctx.Err(); err != nil {
		return nil, ledger.NewError(ledger.KindCancelled, string(kind), err)
	}
	if err := nextError(f.submitScripts[kind], params); err != nil {
		return nil, err
	}

	f.blockNumber++
	receipt := &ledger.Receipt{
		TxHash:      crypto.Keccak256Hash(big.NewInt(int64(len(f.calls))).Bytes()),
		BlockNumber: f.blockNumber,
		GasUsed:     fees.GasLimit / 2,
	}

	if kind == ledger.OpCreatePair {
		key := pairKey(params.TokenA, params.TokenB, params.FeeRate)
		st := &pairState{
			address: PairAddress(params.TokenA, params.TokenB, params.FeeRate),
			active:  true,
			price:   spotPrice(params.AmountA, params.AmountB),
		}
		f.pairs[key] = st
		receipt.Pair = st.address
	}
	return receipt, nil
}

func (f *Fake) Query(ctx context.Context, kind ledger.QueryKind, params ledger.Params) (ledger.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: string(kind), Query: true, Param: params})
	if err := ctx.Err(); err != nil {
		return ledger.QueryResult{}, ledger.NewError(ledger.KindCancelled, string(kind), err)
	}
	if err := nextError(f.queryScripts[kind], params); err != nil {
		return ledger.QueryResult{}, err
	}

	switch kind {
	case ledger.QueryPairStatus:
		st, ok := f.pairs[pairKey(params.TokenA, params.TokenB, params.FeeRate)]
		if !ok {
			return ledger.QueryResult{}, nil
		}
		return ledger.QueryResult{Pair: st.address, Exists: true, Active: st.active}, nil
	case ledger.QueryPairPrice:
		for _, st := range f.pairs {
			if st.address == params.Pair {
				return ledger.QueryResult{Pair: st.address, Exists: true, Active: st.active, Price: new(big.Int).Set(st.price)}, nil
			}
		}
		return ledger.QueryResult{}, ledger.NewError(ledger.KindValidation, string(kind), errPairNotFound)
	}
	return ledger.QueryResult{}, ledger.NewError(ledger.KindValidation, string(kind), errUnknownQuery)
}

func (f *Fake) FeeSnapshot(_ context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FeeErr != nil {
		return nil, f.FeeErr
	}
	if f.BaseFee == nil {
		return nil, nil
	}
	return new(big.Int).Set(f.BaseFee), nil
}

func (f *Fake) SequenceNumbers(_ context.Context, _ common.Address) (ledger.SequenceNumbers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Sequence, f.SeqErr
}

// PairAddress derives the deterministic address the fake assigns to a pair
func PairAddress(a, b common.Address, feeRate uint32) common.Address {
	return common.BytesToAddress(pairKey(a, b, feeRate).Bytes())
}

func pairKey(a, b common.Address, feeRate uint32) common.Hash {
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes(), big.NewInt(int64(feeRate)).Bytes())
}

// spotPrice is amountB per unit of amountA scaled by 1e18
func spotPrice(amountA, amountB *big.Int) *big.Int {
	if amountA == nil || amountB == nil || amountA.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amountB, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	return scaled.Quo(scaled, amountA)
}

func nextError(scripts []*script, params ledger.Params) error {
	for _, s := range scripts {
		if len(s.errs) == 0 || !s.match(params) {
			continue
		}
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return nil
}
