package tasks

import (
	"context"

	"github.com/newslens/newslens/app/ingest"
)

// IngestCycleTask runs one full ingestion cycle. It never retries: a
// failed cycle is simply covered by the next scheduled one, and the
// orchestrator already isolates failures per source and article.
type IngestCycleTask struct {
	Task
	orchestrator *ingest.Orchestrator
}

func NewIngestCycleTask(orchestrator *ingest.Orchestrator) *IngestCycleTask {
	return &IngestCycleTask{
		Task:         NewTask(TaskTypeIngestCycle, 0),
		orchestrator: orchestrator,
	}
}

func (t *IngestCycleTask) Execute(ctx context.Context) error {
	t.orchestrator.RunCycle(ctx)
	return nil
}
