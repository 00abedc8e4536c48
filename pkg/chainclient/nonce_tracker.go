package chainclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/pairlauncher/pkg/logger"
)

// nonceSyncInterval is how long a locally tracked nonce is trusted
const nonceSyncInterval = 5 * time.Minute

// PendingNonceReader reads the pending nonce of an account
type PendingNonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceTracker allocates nonces for a single submitting identity
type NonceTracker struct {
	reader  PendingNonceReader
	account common.Address
	logger  logger.Logger

	mu           sync.Mutex
	currentNonce uint64
	pending      map[uint64]common.Hash
	lastSync     time.Time
	// forceSync makes the next allocation adopt the node's pending nonce
	forceSync bool
}

// NewNonceTracker creates a tracker that syncs from reader on first use
func NewNonceTracker(reader PendingNonceReader, account common.Address, log logger.Logger) *NonceTracker {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &NonceTracker{
		reader:  reader,
		account: account,
		logger:  log,
		pending: make(map[uint64]common.Hash),
	}
}

// Next reserves and returns the next nonce
func (t *NonceTracker) Next(ctx context.Context) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.forceSync || t.lastSync.IsZero() || time.Since(t.lastSync) > nonceSyncInterval {
		nonce, err := t.reader.PendingNonceAt(ctx, t.account)
		if err != nil {
			return 0, fmt.Errorf("failed to get pending nonce: %w", err)
		}
		if nonce > t.currentNonce || (t.forceSync && nonce != t.currentNonce) {
			t.logger.Debug("Updating nonce for %s: %d -> %d", t.account.Hex(), t.currentNonce, nonce)
			t.currentNonce = nonce
		}
		t.lastSync = time.Now()
		t.forceSync = false
	}

	nonce := t.currentNonce
	t.currentNonce++
	return nonce, nil
}

// Track records a sent transaction
func (t *NonceTracker) Track(nonce uint64, hash common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[nonce] = hash
}

// Confirm removes a mined transaction from the pending set
func (t *NonceTracker) Confirm(nonce uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, nonce)
}

// Failed releases a nonce whose transaction was never accepted. When stale
// is set the nonce is already taken on the node, so the next allocation
// adopts the node's pending nonce instead of handing it out again.
func (t *NonceTracker) Failed(nonce uint64, stale bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, nonce)
	if stale {
		t.forceSync = true
		return
	}
	// Only the most recent allocation can be handed out again
	if nonce+1 == t.currentNonce {
		t.currentNonce = nonce
		t.logger.Debug("Reusing nonce %d for %s after send failure", nonce, t.account.Hex())
	}
}

// PendingCount returns the number of sent but unconfirmed transactions
func (t *NonceTracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
