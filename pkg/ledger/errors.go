package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a ledger failure
type ErrorKind string

const (
	// KindReplacementUnderpriced means the fee was too low to replace an in-flight write
	KindReplacementUnderpriced ErrorKind = "replacement_underpriced"
	// KindNonceTooLow means the sequence number was already used
	KindNonceTooLow ErrorKind = "nonce_too_low"
	// KindAlreadyKnown means the same write was already accepted
	KindAlreadyKnown ErrorKind = "already_known"

	KindInsufficientFunds   ErrorKind = "insufficient_funds"
	KindReverted            ErrorKind = "reverted"
	KindValidation          ErrorKind = "validation"
	KindConfirmationTimeout ErrorKind = "confirmation_timeout"
	KindNetwork             ErrorKind = "network"
	KindCancelled           ErrorKind = "cancelled"
	KindInternal            ErrorKind = "internal"
	KindUnknown             ErrorKind = "unknown"
)

// DefaultTransientKinds is the retry allow-list used when none is configured
var DefaultTransientKinds = []ErrorKind{
	KindReplacementUnderpriced,
	KindNonceTooLow,
	KindAlreadyKnown,
}

var knownKinds = map[ErrorKind]bool{
	KindReplacementUnderpriced: true,
	KindNonceTooLow:            true,
	KindAlreadyKnown:           true,
	KindInsufficientFunds:      true,
	KindReverted:               true,
	KindValidation:             true,
	KindConfirmationTimeout:    true,
	KindNetwork:                true,
	KindCancelled:              true,
	KindInternal:               true,
	KindUnknown:                true,
}

// ParseErrorKind validates a kind name, e.g. from configuration
func ParseErrorKind(s string) (ErrorKind, error) {
	kind := ErrorKind(strings.ToLower(strings.TrimSpace(s)))
	if !knownKinds[kind] {
		return "", fmt.Errorf("unknown error kind: %q", s)
	}
	return kind, nil
}

// Error is a classified ledger failure
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and the operation that produced it
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain. Context errors
// that were never classified map to cancelled or confirmation_timeout.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindConfirmationTimeout
	}
	return KindUnknown
}
