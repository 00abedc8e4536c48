package ledgertest

import (
	"errors"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
)

var (
	errPairNotFound = errors.New("pair not found")
	errUnknownQuery = errors.New("unknown query kind")
)

// Transient returns a retryable error of the default allow-list
func Transient(op string) error {
	return ledger.NewError(ledger.KindNonceTooLow, op, errors.New("nonce too low"))
}

// Permanent returns a revert, which is never retried by default
func Permanent(op string) error {
	return ledger.NewError(ledger.KindReverted, op, errors.New("execution reverted: PAIR_EXISTS"))
}
