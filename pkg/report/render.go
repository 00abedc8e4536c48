package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/speedrun-hq/pairlauncher/pkg/models"
)

// Render prints the run summary and one row per item
func Render(w io.Writer, result *models.BatchResult) {
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetTitle(fmt.Sprintf("Batch %s on %s (chain %d)", result.RunID, result.Network, result.ChainID))
	summary.AppendHeader(table.Row{"Total", "Succeeded", "Skipped", "Failed", "Identity", "Started"})
	summary.AppendRow(table.Row{
		result.TotalCount(),
		result.SuccessCount(),
		result.SkippedCount(),
		result.FailureCount(),
		result.SubmittingIdentity.Hex(),
		result.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
	})
	summary.Render()

	if len(result.Outcomes) == 0 {
		return
	}

	items := table.NewWriter()
	items.SetOutputMirror(w)
	items.AppendHeader(table.Row{"#", "Symbol", "Status", "Attempts", "Pair", "Price", "Target", "Create Tx", "Error"})
	for i, o := range result.Outcomes {
		createTx := ""
		if step, ok := o.StepByName("create"); ok {
			createTx = step.TxHash
		}
		items.AppendRow(table.Row{i + 1, o.Symbol, o.Status, o.Attempts, o.Pair, o.Price, o.TargetPrice, createTx, describeError(o)})
	}
	items.Render()
}

// maxErrorWidth caps the error column
const maxErrorWidth = 80

func describeError(o models.OperationOutcome) string {
	switch {
	case o.Status == models.StatusFailed:
		parts := []string{o.ErrorKind}
		if o.FailedStep != "" {
			parts = append([]string{o.FailedStep}, parts...)
		}
		if o.Error != "" {
			parts = append(parts, shorten(o.Error))
		}
		return strings.Join(parts, ": ")
	case o.VerifyError != "":
		return "verify: " + shorten(o.VerifyError)
	}
	return ""
}

// shorten keeps the first line of msg within maxErrorWidth
func shorten(msg string) string {
	msg, _, _ = strings.Cut(msg, "\n")
	if text.RuneWidthWithoutEscSequences(msg) <= maxErrorWidth {
		return msg
	}
	return text.Trim(msg, maxErrorWidth-3) + "..."
}
