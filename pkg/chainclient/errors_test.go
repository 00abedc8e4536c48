package chainclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ledger.ErrorKind
	}{
		{"nonce too low", errors.New("nonce too low: next nonce 5, tx nonce 4"), ledger.KindNonceTooLow},
		{"underpriced replacement", errors.New("replacement transaction underpriced"), ledger.KindReplacementUnderpriced},
		{"already known", errors.New("already known"), ledger.KindAlreadyKnown},
		{"known transaction", errors.New("known transaction: 0xabc"), ledger.KindAlreadyKnown},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), ledger.KindInsufficientFunds},
		{"revert", errors.New("execution reverted: PAIR_EXISTS"), ledger.KindReverted},
		{"refused", errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"), ledger.KindNetwork},
		{"rate limited", errors.New("429 Too Many Requests"), ledger.KindNetwork},
		{"connection closed", fmt.Errorf("post: %w", io.EOF), ledger.KindNetwork},
		{"truncated body", errors.New("read body: unexpected EOF"), ledger.KindNetwork},
		{"429 inside gas numbers", errors.New("intrinsic gas too low: have 21000, want 21429"), ledger.KindUnknown},
		{"eof inside a word", errors.New("geofence check failed"), ledger.KindUnknown},
		{"cancelled", fmt.Errorf("call: %w", context.Canceled), ledger.KindCancelled},
		{"deadline", context.DeadlineExceeded, ledger.KindConfirmationTimeout},
		{"unrecognized", errors.New("something odd"), ledger.KindUnknown},
		{"already classified", ledger.NewError(ledger.KindValidation, "approve", errors.New("bad")), ledger.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("approve", tt.err)
			assert.Equal(t, tt.want, ledger.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify("approve", nil))
}
