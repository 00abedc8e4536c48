package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// WorkItem describes one trading pair to create
type WorkItem struct {
	Symbol  string
	TokenA  common.Address
	TokenB  common.Address
	AmountA *big.Int // base units of TokenA
	AmountB *big.Int // base units of TokenB
	FeeRate uint32   // pool fee tier in hundredths of a bip, e.g. 3000 = 0.3%

	// TargetPrice is only used for reporting
	TargetPrice decimal.Decimal
}

// OutcomeStatus is the terminal state of a work item
type OutcomeStatus string

const (
	StatusSucceeded        OutcomeStatus = "succeeded"
	StatusSkippedDuplicate OutcomeStatus = "skipped-duplicate"
	StatusFailed           OutcomeStatus = "failed"
)

// StepRecord is the audit entry of one saga step
type StepRecord struct {
	Name     string `json:"name"`
	Attempts int    `json:"attempts"`
	TxHash   string `json:"txHash,omitempty"`
	GasUsed  uint64 `json:"gasUsed,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OperationOutcome is the finalized result of one work item
type OperationOutcome struct {
	Symbol string        `json:"symbol"`
	Status OutcomeStatus `json:"status"`

	// Attempts is the largest number of attempts any single step consumed
	Attempts int `json:"attempts"`

	FailedStep string `json:"failedStep,omitempty"`
	ErrorKind  string `json:"errorKind,omitempty"`
	Error      string `json:"error,omitempty"`

	Pair        string `json:"pair,omitempty"`
	Price       string `json:"price,omitempty"`
	TargetPrice string `json:"targetPrice,omitempty"`
	VerifyError string `json:"verifyError,omitempty"`

	Steps      []StepRecord `json:"steps,omitempty"`
	DurationMs int64        `json:"durationMs"`
}

// Succeeded is true for created and already-existing pairs
func (o OperationOutcome) Succeeded() bool {
	return o.Status == StatusSucceeded || o.Status == StatusSkippedDuplicate
}

// StepByName returns the audit record of a step
func (o OperationOutcome) StepByName(name string) (StepRecord, bool) {
	for _, s := range o.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepRecord{}, false
}
