package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/estudioia/videos-api/internal/logger"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/store"
)

func TestCleanupWorkerDeletesOnlyOldFinishedJobs(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	settings := model.RenderSettings{Resolution: model.Resolution1080p, FPS: 30, Codec: model.CodecH264, Format: model.FormatMP4}

	finished := &model.Job{ID: uuid.NewString(), OwnerID: "u", ProjectID: "p1", Status: model.JobStatusQueued, Priority: model.PriorityNormal, Settings: settings}
	active := &model.Job{ID: uuid.NewString(), OwnerID: "u", ProjectID: "p2", Status: model.JobStatusQueued, Priority: model.PriorityNormal, Settings: settings}
	for _, j := range []*model.Job{finished, active} {
		if err := s.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.UpdateStatus(ctx, finished.ID, model.JobStatusCancelled, store.StatusFields{}); err != nil {
		t.Fatal(err)
	}

	w := NewCleanupWorker(s, 30, logger.Discard())
	if err := w.ProcessTask(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, finished.ID); err != nil {
		t.Fatal("recent job deleted before the retention window")
	}

	w.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	if err := w.ProcessTask(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, finished.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("old finished job still present: %v", err)
	}
	if _, err := s.Get(ctx, active.ID); err != nil {
		t.Errorf("active job removed: %v", err)
	}
}
