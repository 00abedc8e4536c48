// Package pending detects unconfirmed writes of the submitting identity before a batch starts.
package pending

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
	"github.com/speedrun-hq/pairlauncher/pkg/metrics"
)

// SequenceReader reads both nonce views of an identity
type SequenceReader interface {
	SequenceNumbers(ctx context.Context, identity common.Address) (ledger.SequenceNumbers, error)
}

// Report is the outcome of one check
type Report struct {
	Identity common.Address
	ledger.SequenceNumbers
}

// HasInFlight is true when writes are waiting for confirmation
func (r Report) HasInFlight() bool {
	return r.InFlight() > 0
}

// Diverged is true when the confirmed and pending views disagree in either
// direction. A pending nonce below the confirmed one points at a lagging node.
func (r Report) Diverged() bool {
	return r.Confirmed != r.IncludingPending
}

// Detector performs the advisory check
type Detector struct {
	reader SequenceReader
	logger logger.Logger
}

// NewDetector creates a detector
func NewDetector(reader SequenceReader, log logger.Logger) *Detector {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Detector{reader: reader, logger: log}
}

// Check compares the confirmed and pending nonces of identity. It only warns;
// callers must not abort on its result or its error.
func (d *Detector) Check(ctx context.Context, identity common.Address) (Report, error) {
	seq, err := d.reader.SequenceNumbers(ctx, identity)
	if err != nil {
		return Report{Identity: identity}, fmt.Errorf("failed to read sequence numbers of %s: %w", identity.Hex(), err)
	}

	report := Report{Identity: identity, SequenceNumbers: seq}
	metrics.InFlightOperations.Set(float64(report.InFlight()))

	switch {
	case report.HasInFlight():
		d.logger.Notice("%s has %d unconfirmed operation(s) in flight (confirmed nonce %d, pending nonce %d); "+
			"fees will compete with them, consider conservative pricing",
			identity.Hex(), report.InFlight(), seq.Confirmed, seq.IncludingPending)
	case report.Diverged():
		d.logger.Notice("Pending nonce %d of %s is below its confirmed nonce %d; the RPC node may be lagging",
			seq.IncludingPending, identity.Hex(), seq.Confirmed)
	default:
		d.logger.Debug("No operations in flight for %s (nonce %d)", identity.Hex(), seq.Confirmed)
	}
	return report, nil
}
