package chainclient

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
)

// rpcErrorKinds maps node error messages to kinds, first match wins
var rpcErrorKinds = []struct {
	fragment string
	kind     ledger.ErrorKind
}{
	{"nonce too low", ledger.KindNonceTooLow},
	{"replacement transaction underpriced", ledger.KindReplacementUnderpriced},
	{"already known", ledger.KindAlreadyKnown},
	{"known transaction", ledger.KindAlreadyKnown},
	{"insufficient funds", ledger.KindInsufficientFunds},
	{"execution reverted", ledger.KindReverted},
	{"connection refused", ledger.KindNetwork},
	{"connection reset", ledger.KindNetwork},
	{"no such host", ledger.KindNetwork},
	{"i/o timeout", ledger.KindNetwork},
	{"too many requests", ledger.KindNetwork},
	{"unexpected eof", ledger.KindNetwork},
}

// classify turns a raw RPC error into a *ledger.Error. This is the only
// place node messages are inspected.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *ledger.Error
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return ledger.NewError(ledger.KindCancelled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ledger.NewError(ledger.KindConfirmationTimeout, op, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ledger.NewError(ledger.KindNetwork, op, err)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range rpcErrorKinds {
		if strings.Contains(msg, m.fragment) {
			return ledger.NewError(m.kind, op, err)
		}
	}
	return ledger.NewError(ledger.KindUnknown, op, err)
}
