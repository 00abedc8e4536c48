package chainclient

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/retry"
)

// setupSimulation creates a simulated chain with one funded account
func setupSimulation(t *testing.T) (*simulated.Backend, *ecdsa.PrivateKey) {
	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err, "Failed to generate private key")

	balance, _ := new(big.Int).SetString("10000000000000000000", 10) // 10 ETH
	//nolint:SA1019 // Using deprecated GenesisAccount for compatibility
	sim := simulated.NewBackend(map[common.Address]core.GenesisAccount{
		crypto.PubkeyToAddress(privateKey.PublicKey): {Balance: balance},
	})
	t.Cleanup(func() {
		_ = sim.Close()
	})
	return sim, privateKey
}

// mineContinuously commits blocks until the test ends
func mineContinuously(t *testing.T, sim *simulated.Backend) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sim.Commit()
			case <-done:
				return
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		<-stopped
	})
}

func TestSequenceNumbersAndFees(t *testing.T) {
	sim, key := setupSimulation(t)
	ctx := context.Background()

	client, err := New(ctx, sim.Client(), key, common.Address{}, time.Second, nil)
	require.NoError(t, err)

	seq, err := client.SequenceNumbers(ctx, client.Identity())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq.Confirmed)
	assert.Equal(t, uint64(0), seq.InFlight())

	fee, err := client.FeeSnapshot(ctx)
	require.NoError(t, err)
	assert.Positive(t, fee.Sign())
}

func TestSubmitApproveIsMined(t *testing.T) {
	sim, key := setupSimulation(t)
	mineContinuously(t, sim)
	ctx := context.Background()

	client, err := New(ctx, sim.Client(), key, common.Address{}, 10*time.Second, nil)
	require.NoError(t, err)

	receipt, err := client.Submit(ctx, ledger.OpApprove, ledger.Params{
		Token:   common.HexToAddress("0x5555555555555555555555555555555555555555"),
		Spender: common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Amount:  big.NewInt(1000),
	}, ledger.FeeSettings{
		Class:    ledger.FeeClassApproval,
		FeeRate:  big.NewInt(10_000_000_000),
		GasLimit: 60000,
	})
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, receipt.TxHash)
	assert.Positive(t, receipt.GasUsed)

	seq, err := client.SequenceNumbers(ctx, client.Identity())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq.Confirmed)
	assert.Equal(t, 0, client.nonces.PendingCount())
}

func TestSubmitRejectsMissingFees(t *testing.T) {
	sim, key := setupSimulation(t)
	ctx := context.Background()

	client, err := New(ctx, sim.Client(), key, common.Address{}, time.Second, nil)
	require.NoError(t, err)

	_, err = client.Submit(ctx, ledger.OpApprove, ledger.Params{}, ledger.FeeSettings{})
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
}

func TestSubmitConfirmationTimeout(t *testing.T) {
	sim, key := setupSimulation(t)
	ctx := context.Background()

	// nothing mines blocks here
	client, err := New(ctx, sim.Client(), key, common.Address{}, 200*time.Millisecond, nil)
	require.NoError(t, err)

	_, err = client.Submit(ctx, ledger.OpApprove, ledger.Params{
		Token:   common.HexToAddress("0x5555555555555555555555555555555555555555"),
		Spender: common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Amount:  big.NewInt(1),
	}, ledger.FeeSettings{FeeRate: big.NewInt(10_000_000_000), GasLimit: 60000})
	assert.Equal(t, ledger.KindConfirmationTimeout, ledger.KindOf(err))
}

func TestSubmitRecoversFromConflictingPoolTransaction(t *testing.T) {
	sim, key := setupSimulation(t)
	ctx := context.Background()

	client, err := New(ctx, sim.Client(), key, common.Address{}, 10*time.Second, nil)
	require.NoError(t, err)

	// sync the tracker at nonce 0 before anything else uses it
	nonce, err := client.nonces.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)
	client.nonces.Failed(nonce, false)

	// another sender with the same key takes nonce 0 at a higher price
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	conflicting, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(20_000_000_000),
	}), types.LatestSignerForChainID(client.ChainID()), key)
	require.NoError(t, err)
	require.NoError(t, sim.Client().SendTransaction(ctx, conflicting))

	executor := retry.New(3, retry.WithBackoff(retry.Fixed(10*time.Millisecond)))
	var kinds []ledger.ErrorKind
	var receipt *ledger.Receipt
	attempts, err := executor.Execute(ctx, "approve-a", func(ctx context.Context) error {
		if len(kinds) == 1 {
			// blocks only start once the first attempt was rejected
			mineContinuously(t, sim)
		}
		rc, err := client.Submit(ctx, ledger.OpApprove, ledger.Params{
			Token:   common.HexToAddress("0x5555555555555555555555555555555555555555"),
			Spender: common.HexToAddress("0x4444444444444444444444444444444444444444"),
			Amount:  big.NewInt(1000),
		}, ledger.FeeSettings{FeeRate: big.NewInt(10_000_000_000), GasLimit: 60000})
		kinds = append(kinds, ledger.KindOf(err))
		receipt = rc
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, ledger.KindReplacementUnderpriced, kinds[0])
	require.NotNil(t, receipt)
	assert.NotEqual(t, conflicting.Hash(), receipt.TxHash)

	seq, err := client.SequenceNumbers(ctx, client.Identity())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq.Confirmed)
}
