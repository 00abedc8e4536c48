// Package ledger defines the narrow interface the batch needs from the remote ledger
// and the typed errors its implementations return.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OperationKind identifies a write submitted to the ledger
type OperationKind string

const (
	// OpApprove grants the pair factory an allowance over one token
	OpApprove OperationKind = "approve"
	// OpCreatePair creates and seeds a trading pair
	OpCreatePair OperationKind = "create_pair"
)

// QueryKind identifies a read-only ledger query
type QueryKind string

const (
	// QueryPairStatus looks up the pair for (TokenA, TokenB, FeeRate) and whether it is active
	QueryPairStatus QueryKind = "pair_status"
	// QueryPairPrice reads the current unit price of an existing pair
	QueryPairPrice QueryKind = "pair_price"
)

// FeeClass selects fee settings for a class of write
type FeeClass string

const (
	// FeeClassApproval is the lightweight class used for allowances
	FeeClassApproval FeeClass = "approval"
	// FeeClassCreation is the heavier class used for pair creation
	FeeClassCreation FeeClass = "creation"
)

// FeeSettings is the pricing attached to one submitted write
type FeeSettings struct {
	Class    FeeClass
	FeeRate  *big.Int
	GasLimit uint64
}

// Params carries the arguments of an operation or query. Only the fields
// relevant to the kind are read.
type Params struct {
	// approvals
	Token   common.Address
	Spender common.Address
	Amount  *big.Int

	// pair creation and lookups
	TokenA  common.Address
	TokenB  common.Address
	AmountA *big.Int
	AmountB *big.Int
	FeeRate uint32

	// price lookups
	Pair common.Address
}

// Receipt describes a confirmed write
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	// Pair is set for OpCreatePair when the implementation can decode it
	Pair common.Address
}

// QueryResult is the answer to a Query
type QueryResult struct {
	Pair   common.Address
	Exists bool
	Active bool
	Price  *big.Int
}

// SequenceNumbers holds both nonce views of an identity
type SequenceNumbers struct {
	Confirmed        uint64
	IncludingPending uint64
}

// InFlight returns the number of writes submitted but not yet confirmed
func (s SequenceNumbers) InFlight() uint64 {
	if s.IncludingPending <= s.Confirmed {
		return 0
	}
	return s.IncludingPending - s.Confirmed
}

// Client is the ledger as seen by the batch orchestrator
type Client interface {
	// Submit sends a write and blocks until it is confirmed or fails.
	// Errors are *Error values carrying a Kind.
	Submit(ctx context.Context, kind OperationKind, params Params, fees FeeSettings) (*Receipt, error)

	// Query performs a read-only call.
	Query(ctx context.Context, kind QueryKind, params Params) (QueryResult, error)

	// FeeSnapshot returns the current base fee, or nil when none is available.
	FeeSnapshot(ctx context.Context) (*big.Int, error)

	// SequenceNumbers returns the confirmed and pending nonces of identity.
	SequenceNumbers(ctx context.Context, identity common.Address) (SequenceNumbers, error)
}
