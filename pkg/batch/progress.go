package batch

import (
	"sync"
	"time"

	"github.com/speedrun-hq/pairlauncher/pkg/models"
	"github.com/speedrun-hq/pairlauncher/pkg/pending"
)

// ProgressSnapshot is a point-in-time view of a running batch
type ProgressSnapshot struct {
	RunID     string    `json:"runId"`
	Network   string    `json:"network"`
	StartedAt time.Time `json:"startedAt"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Succeeded int       `json:"succeeded"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Current   string    `json:"current,omitempty"`
	InFlight  uint64    `json:"inFlightAtStart"`
	Finished  bool      `json:"finished"`
}

// Progress tracks a batch for the status endpoint. It is safe for concurrent
// reads while the batch goroutine updates it.
type Progress struct {
	mu   sync.RWMutex
	snap ProgressSnapshot
}

// NewProgress creates an empty tracker
func NewProgress() *Progress {
	return &Progress{}
}

// Snapshot returns the current progress
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *Progress) BatchStarted(meta models.RunMetadata, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = ProgressSnapshot{
		RunID:     meta.RunID,
		Network:   meta.Network,
		StartedAt: meta.Timestamp,
		Total:     total,
	}
}

func (p *Progress) PendingChecked(report pending.Report, err error) {
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.InFlight = report.InFlight()
}

func (p *Progress) ItemStarted(_ int, item models.WorkItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Current = item.Symbol
}

func (p *Progress) ItemFinished(_ int, _ models.WorkItem, outcome models.OperationOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Done++
	p.snap.Current = ""
	switch outcome.Status {
	case models.StatusSucceeded:
		p.snap.Succeeded++
	case models.StatusSkippedDuplicate:
		p.snap.Succeeded++
		p.snap.Skipped++
	default:
		p.snap.Failed++
	}
}

func (p *Progress) BatchFinished(_ *models.BatchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Finished = true
	p.snap.Current = ""
}
