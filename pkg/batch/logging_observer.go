package batch

import (
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
	"github.com/speedrun-hq/pairlauncher/pkg/models"
	"github.com/speedrun-hq/pairlauncher/pkg/pending"
)

// LoggingObserver prints one progress line per item and a final summary
type LoggingObserver struct {
	logger logger.Logger
	total  int
}

// NewLoggingObserver creates a logging observer
func NewLoggingObserver(log logger.Logger) *LoggingObserver {
	return &LoggingObserver{logger: log}
}

func (l *LoggingObserver) BatchStarted(meta models.RunMetadata, total int) {
	l.total = total
	l.logger.Info("Starting batch %s on %s: %d item(s) from %s", meta.RunID, meta.Network, total, meta.SubmittingIdentity.Hex())
}

func (l *LoggingObserver) PendingChecked(_ pending.Report, err error) {
	if err != nil {
		l.logger.Notice("In-flight check failed, continuing: %v", err)
	}
}

func (l *LoggingObserver) ItemStarted(index int, item models.WorkItem) {
	l.logger.Info("[%d/%d] Processing %s", index+1, l.total, item.Symbol)
}

func (l *LoggingObserver) ItemFinished(index int, item models.WorkItem, outcome models.OperationOutcome) {
	switch outcome.Status {
	case models.StatusFailed:
		l.logger.Error("[%d/%d] %s failed at %s (%s) after %d attempt(s): %s",
			index+1, l.total, item.Symbol, stepOrBatch(outcome.FailedStep), outcome.ErrorKind, outcome.Attempts, outcome.Error)
	case models.StatusSkippedDuplicate:
		l.logger.Info("[%d/%d] %s skipped, pair exists at %s", index+1, l.total, item.Symbol, outcome.Pair)
	default:
		l.logger.Info("[%d/%d] %s succeeded: pair %s, price %s", index+1, l.total, item.Symbol, outcome.Pair, outcome.Price)
	}
}

func (l *LoggingObserver) BatchFinished(result *models.BatchResult) {
	l.logger.Info("Batch finished: %d succeeded (%d skipped), %d failed, %d total",
		result.SuccessCount(), result.SkippedCount(), result.FailureCount(), result.TotalCount())
}

func stepOrBatch(step string) string {
	if step == "" {
		return "batch"
	}
	return step
}
