package batch

import (
	"github.com/speedrun-hq/pairlauncher/pkg/models"
	"github.com/speedrun-hq/pairlauncher/pkg/pending"
)

// Observer receives batch progress. Implementations carry all side effects
// (logging, metrics, live status) so the orchestrator stays pure.
type Observer interface {
	BatchStarted(meta models.RunMetadata, total int)
	PendingChecked(report pending.Report, err error)
	ItemStarted(index int, item models.WorkItem)
	ItemFinished(index int, item models.WorkItem, outcome models.OperationOutcome)
	BatchFinished(result *models.BatchResult)
}

type multiObserver []Observer

func (m multiObserver) BatchStarted(meta models.RunMetadata, total int) {
	for _, o := range m {
		o.BatchStarted(meta, total)
	}
}

func (m multiObserver) PendingChecked(report pending.Report, err error) {
	for _, o := range m {
		o.PendingChecked(report, err)
	}
}

func (m multiObserver) ItemStarted(index int, item models.WorkItem) {
	for _, o := range m {
		o.ItemStarted(index, item)
	}
}

func (m multiObserver) ItemFinished(index int, item models.WorkItem, outcome models.OperationOutcome) {
	for _, o := range m {
		o.ItemFinished(index, item, outcome)
	}
}

func (m multiObserver) BatchFinished(result *models.BatchResult) {
	for _, o := range m {
		o.BatchFinished(result)
	}
}
