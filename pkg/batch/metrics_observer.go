package batch

import (
	"github.com/speedrun-hq/pairlauncher/pkg/metrics"
	"github.com/speedrun-hq/pairlauncher/pkg/models"
	"github.com/speedrun-hq/pairlauncher/pkg/pending"
)

// MetricsObserver records item outcomes in Prometheus
type MetricsObserver struct{}

func (MetricsObserver) BatchStarted(_ models.RunMetadata, _ int)  {}
func (MetricsObserver) PendingChecked(_ pending.Report, _ error) {}
func (MetricsObserver) ItemStarted(_ int, _ models.WorkItem)      {}
func (MetricsObserver) BatchFinished(_ *models.BatchResult)       {}

func (MetricsObserver) ItemFinished(_ int, _ models.WorkItem, outcome models.OperationOutcome) {
	status := string(outcome.Status)
	metrics.ItemsProcessed.WithLabelValues(status).Inc()
	metrics.ItemProcessingTime.WithLabelValues(status).Observe(float64(outcome.DurationMs) / 1000)
	if outcome.Status == models.StatusFailed {
		metrics.ItemErrors.WithLabelValues(stepOrBatch(outcome.FailedStep), outcome.ErrorKind).Inc()
	}
}
