package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/store"
)

// jobRun is the state of one job on one worker. Only the task goroutine
// touches it; stage helpers that fan out keep their results in their own
// slices.
type jobRun struct {
	w     *RenderWorker
	entry model.QueueEntry
	job   *model.Job
	log   logrus.FieldLogger
	dir   string

	control   <-chan model.JobStatus
	clock     *stageClock
	completed []string
	progress  int

	art artifacts
}

// checkpoint re-reads the job and decides whether work may continue. It
// blocks while the job is paused.
func (r *jobRun) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job, err := r.w.deps.Jobs.Get(ctx, r.job.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return errCancelled
		}
		return err
	}
	r.job = job

	switch job.Status {
	case model.JobStatusProcessing:
		return nil
	case model.JobStatusPaused:
		return r.waitWhilePaused(ctx)
	default:
		return errCancelled
	}
}

// waitWhilePaused blocks until the job leaves PAUSED. It wakes on every poll
// tick and on control notifications, and gives up after MaxPause.
func (r *jobRun) waitWhilePaused(ctx context.Context) error {
	r.clock.pause()
	defer r.clock.resume()

	r.log.Info("Job paused, waiting for resume")
	r.broadcastStatus(model.JobStatusPaused)

	ticker := time.NewTicker(r.w.opts.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if r.w.opts.MaxPause > 0 {
		timer := time.NewTimer(r.w.opts.MaxPause)
		defer timer.Stop()
		deadline = timer.C
	}

	wake := r.control
	for {
		select {
		case <-ctx.Done():
			// a task deadline reached while paused releases the slot like MaxPause
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errPauseTimeout
			}
			return ctx.Err()
		case <-deadline:
			return errPauseTimeout
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
		case <-ticker.C:
		}

		job, err := r.w.deps.Jobs.Get(ctx, r.job.ID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return errCancelled
			}
			r.log.WithError(err).Warn("Failed to poll paused job")
			continue
		}
		r.job = job

		switch job.Status {
		case model.JobStatusPaused:
		case model.JobStatusProcessing:
			r.log.Info("Job resumed")
			r.broadcastStatus(model.JobStatusProcessing)
			return nil
		default:
			return errCancelled
		}
	}
}

// watch derives a context that is cancelled with errCancelled as soon as
// the job is seen cancelled, so long collaborator calls stop early.
func (r *jobRun) watch(ctx context.Context) (context.Context, context.CancelFunc) {
	wctx, cancel := context.WithCancelCause(ctx)
	id := r.job.ID

	go func() {
		ticker := time.NewTicker(r.w.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-wctx.Done():
				return
			case <-ticker.C:
			}
			job, err := r.w.deps.Jobs.Get(wctx, id)
			if err != nil {
				if errors.Is(err, model.ErrNotFound) {
					cancel(errCancelled)
					return
				}
				continue
			}
			if job.Status.IsTerminal() {
				cancel(errCancelled)
				return
			}
		}
	}()

	return wctx, func() { cancel(context.Canceled) }
}

// call bounds one collaborator call.
func call(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// report stores and broadcasts progress. Values at or below what was already
// reported are skipped.
func (r *jobRun) report(ctx context.Context, progress int, stage string) {
	if progress <= r.progress && stage == r.job.CurrentStage {
		return
	}
	eta := r.clock.eta(len(model.RenderStages), r.w.opts.DefaultStageEstimate)
	changed, err := r.w.deps.Jobs.UpdateProgress(ctx, r.job.ID, store.ProgressUpdate{
		Progress:        progress,
		Stage:           stage,
		ETASeconds:      &eta,
		CompletedStages: r.completed,
	})
	if err != nil {
		r.log.WithError(err).WithField("stage", stage).Warn("Failed to update progress")
		return
	}
	// a skipped write (job paused meanwhile) must be retried on the next report
	if !changed {
		return
	}
	if progress > r.progress {
		r.progress = progress
	}
	r.job.CurrentStage = stage
	if r.w.deps.Hub != nil {
		r.w.deps.Hub.BroadcastProgress(r.job.ID, progress, model.JobStatusProcessing, stage, &eta)
	}
}

// within maps a fraction of a stage onto the stage's progress range.
func (s stage) within(fraction float64) int {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return s.start + int(fraction*float64(s.end-s.start))
}
