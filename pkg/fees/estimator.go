// Package fees prices ledger writes from the current fee snapshot.
package fees

import (
	"context"
	"fmt"
	"math/big"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
	"github.com/speedrun-hq/pairlauncher/pkg/metrics"
)

const (
	// DefaultBufferPercent is added on top of the base fee to win inclusion under contention
	DefaultBufferPercent = 50
	// DefaultApprovalGasLimit is the ceiling for allowance writes
	DefaultApprovalGasLimit = 60000
	// DefaultCreationGasLimit is the ceiling for pair creation
	DefaultCreationGasLimit = 200000
)

// DefaultFloor is used when the ledger has no usable fee snapshot (1 gwei)
var DefaultFloor = big.NewInt(1_000_000_000)

// SnapshotSource provides the current base fee
type SnapshotSource interface {
	FeeSnapshot(ctx context.Context) (*big.Int, error)
}

// Config holds the static pricing parameters
type Config struct {
	BufferPercent    int64
	Floor            *big.Int
	MaxFee           *big.Int // nil or zero means uncapped
	ApprovalGasLimit uint64
	CreationGasLimit uint64
}

// DefaultConfig returns the stock pricing parameters
func DefaultConfig() Config {
	return Config{
		BufferPercent:    DefaultBufferPercent,
		Floor:            new(big.Int).Set(DefaultFloor),
		ApprovalGasLimit: DefaultApprovalGasLimit,
		CreationGasLimit: DefaultCreationGasLimit,
	}
}

// Estimator computes FeeSettings per operation class
type Estimator struct {
	source SnapshotSource
	cfg    Config
	logger logger.Logger
}

// NewEstimator validates cfg and returns an estimator reading from source
func NewEstimator(source SnapshotSource, cfg Config, log logger.Logger) (*Estimator, error) {
	if cfg.BufferPercent < 0 {
		return nil, fmt.Errorf("fee buffer must be non-negative, got %d", cfg.BufferPercent)
	}
	if cfg.Floor == nil || cfg.Floor.Sign() <= 0 {
		return nil, fmt.Errorf("fee floor must be positive")
	}
	if cfg.ApprovalGasLimit == 0 || cfg.CreationGasLimit == 0 {
		return nil, fmt.Errorf("gas limits must be positive")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Estimator{source: source, cfg: cfg, logger: log}, nil
}

// Estimate returns buffered fee settings for class
func (e *Estimator) Estimate(ctx context.Context, class ledger.FeeClass) (ledger.FeeSettings, error) {
	var gasLimit uint64
	switch class {
	case ledger.FeeClassApproval:
		gasLimit = e.cfg.ApprovalGasLimit
	case ledger.FeeClassCreation:
		gasLimit = e.cfg.CreationGasLimit
	default:
		return ledger.FeeSettings{}, fmt.Errorf("unknown fee class: %s", class)
	}

	base := e.baseFee(ctx)

	// fee = base * (100 + buffer) / 100
	fee := new(big.Int).Mul(base, big.NewInt(100+e.cfg.BufferPercent))
	fee.Quo(fee, big.NewInt(100))

	if e.cfg.MaxFee != nil && e.cfg.MaxFee.Sign() > 0 && fee.Cmp(e.cfg.MaxFee) > 0 {
		e.logger.Notice("Buffered fee %s wei exceeds ceiling, capping at %s wei", fee, e.cfg.MaxFee)
		fee = new(big.Int).Set(e.cfg.MaxFee)
	}

	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(fee), big.NewFloat(1e9)).Float64()
	metrics.FeeRate.WithLabelValues(string(class)).Set(gwei)
	e.logger.Debug("Fee for %s class: %s wei (base %s, buffer %d%%, gas limit %d)",
		class, fee, base, e.cfg.BufferPercent, gasLimit)

	return ledger.FeeSettings{
		Class:    class,
		FeeRate:  fee,
		GasLimit: gasLimit,
	}, nil
}

// baseFee reads the snapshot, falling back to the floor when it is unusable
func (e *Estimator) baseFee(ctx context.Context) *big.Int {
	snapshot, err := e.source.FeeSnapshot(ctx)
	switch {
	case err != nil:
		e.logger.Notice("Failed to read fee snapshot, using floor %s wei: %v", e.cfg.Floor, err)
	case snapshot == nil || snapshot.Sign() <= 0:
		e.logger.Notice("Fee snapshot unavailable, using floor %s wei", e.cfg.Floor)
	default:
		return snapshot
	}
	metrics.FeeFloorUsed.Inc()
	return new(big.Int).Set(e.cfg.Floor)
}
