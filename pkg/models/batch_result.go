package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RunMetadata identifies a batch run
type RunMetadata struct {
	RunID              string
	Network            string
	ChainID            uint64
	Timestamp          time.Time
	SubmittingIdentity common.Address
	Contracts          map[string]common.Address
}

// BatchResult is the ordered set of outcomes of a run. Counts are always
// derived from Outcomes.
type BatchResult struct {
	RunMetadata
	Outcomes []OperationOutcome
}

// NewBatchResult starts an empty result for meta
func NewBatchResult(meta RunMetadata) *BatchResult {
	return &BatchResult{RunMetadata: meta, Outcomes: []OperationOutcome{}}
}

// Append adds a finalized outcome
func (r *BatchResult) Append(o OperationOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// TotalCount is the number of outcomes
func (r *BatchResult) TotalCount() int {
	return len(r.Outcomes)
}

// SuccessCount counts succeeded and skipped-duplicate outcomes
func (r *BatchResult) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// FailureCount counts failed outcomes
func (r *BatchResult) FailureCount() int {
	return r.TotalCount() - r.SuccessCount()
}

// SkippedCount counts skipped-duplicate outcomes; they are part of SuccessCount
func (r *BatchResult) SkippedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusSkippedDuplicate {
			n++
		}
	}
	return n
}

// batchResultJSON is the persisted artifact layout
type batchResultJSON struct {
	RunID              string             `json:"runId"`
	Network            string             `json:"network"`
	ChainID            uint64             `json:"chainId"`
	Timestamp          time.Time          `json:"timestamp"`
	SubmittingIdentity common.Address     `json:"submittingIdentity"`
	TotalCount         int                `json:"totalCount"`
	SuccessCount       int                `json:"successCount"`
	FailureCount       int                `json:"failureCount"`
	SkippedCount       int                `json:"skippedCount"`
	Contracts          map[string]string  `json:"contracts"`
	Outcomes           []OperationOutcome `json:"outcomes"`
}

func (r *BatchResult) MarshalJSON() ([]byte, error) {
	contracts := make(map[string]string, len(r.Contracts))
	for name, addr := range r.Contracts {
		contracts[name] = addr.Hex()
	}
	outcomes := r.Outcomes
	if outcomes == nil {
		outcomes = []OperationOutcome{}
	}
	return json.Marshal(batchResultJSON{
		RunID:              r.RunID,
		Network:            r.Network,
		ChainID:            r.ChainID,
		Timestamp:          r.Timestamp,
		SubmittingIdentity: r.SubmittingIdentity,
		TotalCount:         r.TotalCount(),
		SuccessCount:       r.SuccessCount(),
		FailureCount:       r.FailureCount(),
		SkippedCount:       r.SkippedCount(),
		Contracts:          contracts,
		Outcomes:           outcomes,
	})
}

// UnmarshalJSON restores a result and rejects artifacts whose stored counts
// disagree with their outcomes.
func (r *BatchResult) UnmarshalJSON(data []byte) error {
	var raw batchResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	contracts := make(map[string]common.Address, len(raw.Contracts))
	for name, addr := range raw.Contracts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid address for contract %s: %s", name, addr)
		}
		contracts[name] = common.HexToAddress(addr)
	}

	*r = BatchResult{
		RunMetadata: RunMetadata{
			RunID:              raw.RunID,
			Network:            raw.Network,
			ChainID:            raw.ChainID,
			Timestamp:          raw.Timestamp,
			SubmittingIdentity: raw.SubmittingIdentity,
			Contracts:          contracts,
		},
		Outcomes: raw.Outcomes,
	}

	if raw.TotalCount != r.TotalCount() || raw.SuccessCount != r.SuccessCount() || raw.FailureCount != r.FailureCount() {
		return fmt.Errorf("artifact counts (total %d, success %d, failure %d) do not match its %d outcomes",
			raw.TotalCount, raw.SuccessCount, raw.FailureCount, len(raw.Outcomes))
	}
	return nil
}
