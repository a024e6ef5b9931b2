package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/newslens/newslens/app/cluster"
)

// ClusterPassTask groups recently ingested, still-unclustered articles
// into events. Retryable; the pass is idempotent over the same articles.
type ClusterPassTask struct {
	Task
	clusterer *cluster.Service
}

func NewClusterPassTask(clusterer *cluster.Service) *ClusterPassTask {
	return &ClusterPassTask{
		Task:      NewTask(TaskTypeClusterPass, DefaultMaxRetries),
		clusterer: clusterer,
	}
}

func (t *ClusterPassTask) Execute(ctx context.Context) error {
	events, err := t.clusterer.Run(ctx)
	if err != nil {
		return fmt.Errorf("cluster pass failed: %w", err)
	}

	if len(events) > 0 {
		slog.Info("Cluster pass completed", "events", len(events))
	}

	return nil
}
