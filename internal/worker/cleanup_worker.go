package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/store"
)

// CleanupWorker deletes finished jobs past the retention window
type CleanupWorker struct {
	jobs      store.JobStore
	retention time.Duration
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewCleanupWorker creates a cleanup worker keeping finished jobs for retentionDays
func NewCleanupWorker(jobs store.JobStore, retentionDays int, log logrus.FieldLogger) *CleanupWorker {
	return &CleanupWorker{
		jobs:      jobs,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.WithField("component", "cleanup_worker"),
		now:       time.Now,
	}
}

// ProcessTask handles the periodic cleanup task
func (w *CleanupWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if w.retention <= 0 {
		return nil
	}
	cutoff := w.now().Add(-w.retention)
	n, err := w.jobs.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old jobs: %w", err)
	}
	if n > 0 {
		w.log.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff.Format(time.RFC3339)}).Info("Removed finished jobs")
	}
	return nil
}
