// Package chainclient implements ledger.Client on top of an EVM JSON-RPC endpoint.
package chainclient

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/speedrun-hq/pairlauncher/pkg/contracts"
	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
)

// DefaultConfirmationTimeout bounds the wait for one write to be mined
const DefaultConfirmationTimeout = 3 * time.Minute

// Backend is the RPC surface the client needs. *ethclient.Client and the
// simulated backend client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client contains the connection and signing identity for one network
type Client struct {
	backend             Backend
	auth                *bind.TransactOpts
	chainID             *big.Int
	factory             *contracts.PairFactory
	nonces              *NonceTracker
	confirmationTimeout time.Duration
	logger              logger.Logger
	closer              func()
}

var _ ledger.Client = (*Client)(nil)

// Dial connects to rpcURL and creates a client signing with privateKeyHex
func Dial(ctx context.Context, rpcURL, privateKeyHex string, factory common.Address, confirmationTimeout time.Duration, log logger.Logger) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}

	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", rpcURL, err)
	}

	client, err := New(ctx, rpc, privateKey, factory, confirmationTimeout, log)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	client.closer = rpc.Close
	return client, nil
}

// New creates a client over an existing backend
func New(ctx context.Context, backend Backend, privateKey *ecdsa.PrivateKey, factory common.Address, confirmationTimeout time.Duration, log logger.Logger) (*Client, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if confirmationTimeout <= 0 {
		confirmationTimeout = DefaultConfirmationTimeout
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %v", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %v", err)
	}

	factoryContract, err := contracts.NewPairFactory(factory, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize factory contract: %v", err)
	}

	return &Client{
		backend:             backend,
		auth:                auth,
		chainID:             chainID,
		factory:             factoryContract,
		nonces:              NewNonceTracker(backend, auth.From, log.With("nonce")),
		confirmationTimeout: confirmationTimeout,
		logger:              log,
	}, nil
}

// Identity returns the submitting address
func (c *Client) Identity() common.Address {
	return c.auth.From
}

// ChainID returns the chain ID reported by the endpoint
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Factory returns the pair factory address
func (c *Client) Factory() common.Address {
	return c.factory.Address()
}

// Close releases the RPC connection when the client owns it
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Submit signs and sends a write with an explicit nonce and fee, then waits
// for it to be mined.
func (c *Client) Submit(ctx context.Context, kind ledger.OperationKind, params ledger.Params, fees ledger.FeeSettings) (*ledger.Receipt, error) {
	op := string(kind)
	if fees.FeeRate == nil || fees.FeeRate.Sign() <= 0 || fees.GasLimit == 0 {
		return nil, ledger.NewError(ledger.KindValidation, op, errors.New("fee rate and gas limit are required"))
	}

	nonce, err := c.nonces.Next(ctx)
	if err != nil {
		return nil, classify(op, err)
	}

	opts := *c.auth
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasPrice = new(big.Int).Set(fees.FeeRate)
	opts.GasLimit = fees.GasLimit

	tx, err := c.send(&opts, kind, params)
	if err != nil {
		classified := classify(op, err)
		c.nonces.Failed(nonce, nonceTaken(ledger.KindOf(classified)))
		return nil, classified
	}
	c.nonces.Track(nonce, tx.Hash())
	c.logger.Info("%s sent: tx %s, nonce %d, fee rate %s, gas limit %d", op, tx.Hash().Hex(), nonce, fees.FeeRate, fees.GasLimit)

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmationTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ledger.NewError(ledger.KindCancelled, op, fmt.Errorf("tx %s: %w", tx.Hash().Hex(), ctx.Err()))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ledger.NewError(ledger.KindConfirmationTimeout, op,
				fmt.Errorf("tx %s not mined within %s", tx.Hash().Hex(), c.confirmationTimeout))
		}
		return nil, classify(op, err)
	}
	c.nonces.Confirm(nonce)

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, ledger.NewError(ledger.KindReverted, op,
			fmt.Errorf("tx %s reverted in block %d", tx.Hash().Hex(), receipt.BlockNumber))
	}

	result := &ledger.Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	if kind == ledger.OpCreatePair {
		if pair, ok := c.factory.PairCreatedFromReceipt(receipt); ok {
			result.Pair = pair
		}
	}
	return result, nil
}

// nonceTaken reports whether a send failure means the nonce is already used
// by another transaction on the node or in its pool
func nonceTaken(kind ledger.ErrorKind) bool {
	switch kind {
	case ledger.KindNonceTooLow, ledger.KindReplacementUnderpriced, ledger.KindAlreadyKnown:
		return true
	}
	return false
}

func (c *Client) send(opts *bind.TransactOpts, kind ledger.OperationKind, params ledger.Params) (*types.Transaction, error) {
	switch kind {
	case ledger.OpApprove:
		token, err := contracts.NewERC20(params.Token, c.backend)
		if err != nil {
			return nil, ledger.NewError(ledger.KindInternal, string(kind), err)
		}
		return token.Approve(opts, params.Spender, params.Amount)
	case ledger.OpCreatePair:
		return c.factory.CreatePair(opts, params.TokenA, params.TokenB, params.AmountA, params.AmountB, params.FeeRate)
	default:
		return nil, ledger.NewError(ledger.KindValidation, string(kind), fmt.Errorf("unsupported operation"))
	}
}

// Query performs a read-only contract call
func (c *Client) Query(ctx context.Context, kind ledger.QueryKind, params ledger.Params) (ledger.QueryResult, error) {
	op := string(kind)
	callOpts := &bind.CallOpts{Context: ctx}

	switch kind {
	case ledger.QueryPairStatus:
		pairAddr, err := c.factory.GetPair(callOpts, params.TokenA, params.TokenB, params.FeeRate)
		if err != nil {
			return ledger.QueryResult{}, classify(op, err)
		}
		if pairAddr == (common.Address{}) {
			return ledger.QueryResult{}, nil
		}
		pair, err := contracts.NewPair(pairAddr, c.backend)
		if err != nil {
			return ledger.QueryResult{}, ledger.NewError(ledger.KindInternal, op, err)
		}
		active, err := pair.Active(callOpts)
		if err != nil {
			return ledger.QueryResult{}, classify(op, err)
		}
		return ledger.QueryResult{Pair: pairAddr, Exists: true, Active: active}, nil

	case ledger.QueryPairPrice:
		if params.Pair == (common.Address{}) {
			return ledger.QueryResult{}, ledger.NewError(ledger.KindValidation, op, errors.New("pair address is required"))
		}
		pair, err := contracts.NewPair(params.Pair, c.backend)
		if err != nil {
			return ledger.QueryResult{}, ledger.NewError(ledger.KindInternal, op, err)
		}
		price, err := pair.Price(callOpts)
		if err != nil {
			return ledger.QueryResult{}, classify(op, err)
		}
		return ledger.QueryResult{Pair: params.Pair, Exists: true, Price: price}, nil

	default:
		return ledger.QueryResult{}, ledger.NewError(ledger.KindValidation, op, fmt.Errorf("unsupported query"))
	}
}

// FeeSnapshot returns the gas price suggested by the node
func (c *Client) FeeSnapshot(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify("fee_snapshot", err)
	}
	return gasPrice, nil
}

// SequenceNumbers returns the latest-block and pending nonces of identity
func (c *Client) SequenceNumbers(ctx context.Context, identity common.Address) (ledger.SequenceNumbers, error) {
	confirmed, err := c.backend.NonceAt(ctx, identity, nil)
	if err != nil {
		return ledger.SequenceNumbers{}, classify("sequence_numbers", err)
	}
	pending, err := c.backend.PendingNonceAt(ctx, identity)
	if err != nil {
		return ledger.SequenceNumbers{}, classify("sequence_numbers", err)
	}
	return ledger.SequenceNumbers{Confirmed: confirmed, IncludingPending: pending}, nil
}
