package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/store"
)

func validSettings() model.RenderSettings {
	return model.RenderSettings{
		Resolution: model.Resolution1080p,
		FPS:        30,
		Codec:      model.CodecH264,
		Format:     model.FormatMP4,
		Quality:    model.QualityGood,
	}
}

func newJob(owner, project string) *model.Job {
	return &model.Job{
		ID:             uuid.NewString(),
		OwnerID:        owner,
		ProjectID:      project,
		PresentationID: uuid.NewString(),
		Status:         model.JobStatusQueued,
		Priority:       model.PriorityNormal,
		Settings:       validSettings(),
	}
}

func mustCreate(t *testing.T, s store.JobStore, job *model.Job) {
	t.Helper()
	if err := s.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func mustTransition(t *testing.T, s store.JobStore, id string, to model.JobStatus, fields store.StatusFields) *model.Job {
	t.Helper()
	job, err := s.UpdateStatus(context.Background(), id, to, fields)
	if err != nil {
		t.Fatalf("UpdateStatus(%s) error = %v", to, err)
	}
	return job
}

// runJobStoreContract exercises the behavior every JobStore must share.
func runJobStoreContract(t *testing.T, newStore func(t *testing.T) store.JobStore) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		job := newJob("owner-1", uuid.NewString())
		mustCreate(t, s, job)

		got, err := s.Get(ctx, job.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != model.JobStatusQueued || got.Progress != 0 || got.Settings.Codec != model.CodecH264 {
			t.Errorf("unexpected job: %+v", got)
		}
		if got.CreatedAt.IsZero() {
			t.Error("expected createdAt to be set")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, uuid.NewString())
		if !errors.Is(err, model.ErrNotFound) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("CreateRejectsMalformedSettings", func(t *testing.T) {
		s := newStore(t)
		job := newJob("owner-1", uuid.NewString())
		job.Settings.FPS = 25
		if err := s.Create(ctx, job); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ValidationError, got %v", err)
		}

		job = newJob("owner-1", uuid.NewString())
		job.Settings.Format = model.FormatWebM
		if err := s.Create(ctx, job); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ValidationError for h264 in webm, got %v", err)
		}
	})

	t.Run("ConflictLaw", func(t *testing.T) {
		s := newStore(t)
		project := uuid.NewString()
		first := newJob("owner-1", project)
		mustCreate(t, s, first)

		var conflict *model.ConflictError
		if err := s.Create(ctx, newJob("owner-2", project)); !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError while queued, got %v", err)
		}

		mustTransition(t, s, first.ID, model.JobStatusProcessing, store.StatusFields{})
		mustTransition(t, s, first.ID, model.JobStatusPaused, store.StatusFields{})
		if err := s.Create(ctx, newJob("owner-1", project)); !errors.Is(err, model.ErrConflict) {
			t.Fatalf("expected ConflictError while paused, got %v", err)
		}

		mustTransition(t, s, first.ID, model.JobStatusCancelled, store.StatusFields{})
		mustCreate(t, s, newJob("owner-1", project))
	})

	t.Run("ConcurrentCreateAdmitsOne", func(t *testing.T) {
		s := newStore(t)
		project := uuid.NewString()

		var wg sync.WaitGroup
		var mu sync.Mutex
		created, conflicts := 0, 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Create(ctx, newJob("owner-1", project))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, model.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if created != 1 || conflicts != 7 {
			t.Errorf("created = %d, conflicts = %d; want 1 and 7", created, conflicts)
		}
	})

	t.Run("TransitionSideFields", func(t *testing.T) {
		s := newStore(t)
		job := newJob("owner-1", uuid.NewString())
		mustCreate(t, s, job)

		got := mustTransition(t, s, job.ID, model.JobStatusProcessing, store.StatusFields{})
		if got.StartedAt == nil {
			t.Fatal("expected startedAt on first PROCESSING")
		}
		started := *got.StartedAt

		mustTransition(t, s, job.ID, model.JobStatusPaused, store.StatusFields{})
		got = mustTransition(t, s, job.ID, model.JobStatusProcessing, store.StatusFields{})
		if !got.StartedAt.Equal(started) {
			t.Error("resume must not reset startedAt")
		}

		got = mustTransition(t, s, job.ID, model.JobStatusCompleted, store.StatusFields{OutputURL: "https://cdn.example.com/out.mp4"})
		if got.Progress != 100 || got.OutputURL == "" || got.CompletedAt == nil {
			t.Errorf("completed job = %+v", got)
		}
	})

	t.Run("TerminalIdempotence", func(t *testing.T) {
		s := newStore(t)
		job := newJob("owner-1", uuid.NewString())
		mustCreate(t, s, job)
		mustTransition(t, s, job.ID, model.JobStatusProcessing, store.StatusFields{})
		first := mustTransition(t, s, job.ID, model.JobStatusFailed, store.StatusFields{ErrorMessage: "encode: boom"})

		again := mustTransition(t, s, job.ID, model.JobStatusFailed, store.StatusFields{ErrorMessage: "other"})
		if again.ErrorMessage != first.ErrorMessage || !again.CompletedAt.Equal(*first.CompletedAt) {
			t.Errorf("same-terminal rewrite changed the record: %+v", again)
		}

		for _, to := range []model.JobStatus{model.JobStatusProcessing, model.JobStatusCompleted, model.JobStatusCancelled, model.JobStatusQueued} {
			_, err := s.UpdateStatus(ctx, job.ID, to, store.StatusFields{})
			var ite *model.InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Errorf("FAILED -> %s: expected InvalidTransitionError, got %v", to, err)
			}
		}

		got, _ := s.Get(ctx, job.ID)
		if got.Status != model.JobStatusFailed {
			t.Errorf("status = %s, want failed", got.Status)
		}
	})

	t.Run("IllegalEdgesRejected", func(t *testing.T) {
		s := newStore(t)
		job := newJob("owner-1", uuid.NewString())
		mustCreate(t, s, job)

		if _, err := s.UpdateStatus(ctx, job.ID, model.JobStatusPaused, store.StatusFields{}); !errors.Is(err, model.ErrInvalidTransition) {
			t.Errorf("QUEUED -> PAUSED: expected InvalidTransitionError, got %v", err)
		}
		if _, err := s.UpdateStatus(ctx, job.ID, model.JobStatusCompleted, store.StatusFields{}); !errors.Is(err, model.ErrInvalidTransition) {
			t.Errorf("QUEUED -> COMPLETED: expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("ProgressMonotonic", func(t *testing.T) {
		s := newStore(t)
		job := newJob("owner-1", uuid.NewString())
		mustCreate(t, s, job)

		if changed, _ := s.UpdateProgress(ctx, job.ID, store.ProgressUpdate{Progress: 10}); changed {
			t.Error("progress must not change while QUEUED")
		}

		mustTransition(t, s, job.ID, model.JobStatusProcessing, store.StatusFields{})
		eta := 40
		for _, p := range []int{10, 30} {
			changed, err := s.UpdateProgress(ctx, job.ID, store.ProgressUpdate{Progress: p, Stage: model.StageRenderSlides, ETASeconds: &eta})
			if err != nil || !changed {
				t.Fatalf("UpdateProgress(%d) = %v, %v", p, changed, err)
			}
		}

		changed, err := s.UpdateProgress(ctx, job.ID, store.ProgressUpdate{Progress: 20, Stage: model.StagePrepareAssets})
		if err != nil || changed {
			t.Errorf("stale update applied: changed=%v err=%v", changed, err)
		}
		got, _ := s.Get(ctx, job.ID)
		if got.Progress != 30 || got.CurrentStage != model.StageRenderSlides {
			t.Errorf("progress = %d stage = %s; want 30 render_slides", got.Progress, got.CurrentStage)
		}
		if got.ETASeconds == nil || *got.ETASeconds != 40 {
			t.Errorf("eta = %v, want 40", got.ETASeconds)
		}

		if _, err := s.UpdateProgress(ctx, job.ID, store.ProgressUpdate{Progress: 100}); err != nil {
			t.Fatal(err)
		}
		got, _ = s.Get(ctx, job.ID)
		if got.Progress != 99 {
			t.Errorf("in-flight progress = %d, want clamp to 99", got.Progress)
		}

		mustTransition(t, s, job.ID, model.JobStatusPaused, store.StatusFields{})
		if changed, _ := s.UpdateProgress(ctx, job.ID, store.ProgressUpdate{Progress: 99}); changed {
			t.Error("progress must not change while PAUSED")
		}
	})

	t.Run("ListFiltersAndVisibility", func(t *testing.T) {
		s := newStore(t)
		shared := uuid.NewString()
		own := uuid.NewString()
		other := uuid.NewString()

		a := newJob("alice", own)
		a.CreatedAt = time.Now().Add(-3 * time.Minute).UTC()
		b := newJob("bob", shared)
		b.CreatedAt = time.Now().Add(-2 * time.Minute).UTC()
		c := newJob("carol", other)
		c.CreatedAt = time.Now().Add(-1 * time.Minute).UTC()
		for _, j := range []*model.Job{a, b, c} {
			mustCreate(t, s, j)
		}
		mustTransition(t, s, b.ID, model.JobStatusCancelled, store.StatusFields{})

		jobs, total, err := s.List(ctx, store.ListFilter{VisibleTo: "alice", VisibleProjects: []string{shared}}, store.Page{})
		if err != nil {
			t.Fatal(err)
		}
		if total != 2 || len(jobs) != 2 || jobs[0].ID != b.ID || jobs[1].ID != a.ID {
			t.Errorf("visible list = %d items (total %d), want b then a", len(jobs), total)
		}

		jobs, total, _ = s.List(ctx, store.ListFilter{VisibleTo: "alice", VisibleProjects: []string{shared}, Status: model.JobStatusCancelled}, store.Page{})
		if total != 1 || jobs[0].ID != b.ID {
			t.Errorf("status filter returned %d items", total)
		}

		jobs, total, _ = s.List(ctx, store.ListFilter{VisibleTo: "alice", VisibleProjects: []string{shared}}, store.Page{Limit: 1, Offset: 1})
		if total != 2 || len(jobs) != 1 || jobs[0].ID != a.ID {
			t.Errorf("second page = %d items (total %d)", len(jobs), total)
		}
	})

	t.Run("DeleteFinishedBefore", func(t *testing.T) {
		s := newStore(t)
		done := newJob("owner-1", uuid.NewString())
		live := newJob("owner-1", uuid.NewString())
		mustCreate(t, s, done)
		mustCreate(t, s, live)
		mustTransition(t, s, done.ID, model.JobStatusCancelled, store.StatusFields{})

		n, err := s.DeleteFinishedBefore(ctx, time.Now().Add(time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("deleted %d, want 1", n)
		}
		if _, err := s.Get(ctx, live.ID); err != nil {
			t.Errorf("active job was removed: %v", err)
		}
	})
}
