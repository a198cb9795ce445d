// Package worker runs render jobs and periodic maintenance handed out by asynq.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/client"
	"github.com/estudioia/videos-api/internal/config"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/queue"
	"github.com/estudioia/videos-api/internal/store"
)

var (
	// errCancelled stops a run whose job was cancelled. It is acknowledged,
	// not reported as a task failure.
	errCancelled = errors.New("job cancelled")
	// errPauseTimeout releases the worker slot of a job paused for too long.
	// Resuming the job enqueues it again.
	errPauseTimeout = errors.New("job paused for too long")
)

// finalWriteTimeout bounds store writes made after the task context ended
const finalWriteTimeout = 10 * time.Second

// Broadcaster pushes job events to live subscribers
type Broadcaster interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, stage string, eta *int)
	BroadcastStatus(jobID string, status model.JobStatus)
	BroadcastComplete(jobID string, result interface{})
	BroadcastError(jobID string, code, message string)
}

// ControlSubscriber wakes a paused run as soon as the controller acts
type ControlSubscriber interface {
	Subscribe(ctx context.Context, jobID string) (<-chan model.JobStatus, func())
}

// Options tune the render pipeline
type Options struct {
	PollInterval         time.Duration
	StageTimeout         time.Duration
	RenderTimeout        time.Duration
	MaxPause             time.Duration
	DefaultStageEstimate time.Duration
	TTSParallelism       int
	TempDir              string
	CompositionID        string
	UploadAttempts       int
	UploadBaseDelay      time.Duration
}

// OptionsFromConfig reads worker options from the service config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PollInterval:         cfg.Worker.PollInterval,
		StageTimeout:         cfg.Worker.StageTimeout,
		RenderTimeout:        cfg.Worker.RenderTimeout,
		MaxPause:             cfg.Worker.MaxPause,
		DefaultStageEstimate: cfg.Worker.DefaultStageEstimate,
		TTSParallelism:       cfg.Worker.TTSParallelism,
		TempDir:              cfg.Worker.TempDir,
		CompositionID:        cfg.Renderer.CompositionID,
		UploadAttempts:       3,
		UploadBaseDelay:      500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = 2 * time.Minute
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = 30 * time.Minute
	}
	if o.DefaultStageEstimate <= 0 {
		o.DefaultStageEstimate = 30 * time.Second
	}
	if o.TTSParallelism < 1 {
		o.TTSParallelism = 1
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.CompositionID == "" {
		o.CompositionID = "SlideVideo"
	}
	if o.UploadAttempts < 1 {
		o.UploadAttempts = 3
	}
	if o.UploadBaseDelay <= 0 {
		o.UploadBaseDelay = 500 * time.Millisecond
	}
	return o
}

// Deps are the collaborators of a RenderWorker. Hub, Control, Webhooks and
// Storage may be nil.
type Deps struct {
	Jobs          store.JobStore
	Presentations store.PresentationStore
	TTS           client.TTSProvider
	Renderer      client.Renderer
	Storage       client.StorageClient
	Webhooks      client.WebhookNotifier
	Hub           Broadcaster
	Control       ControlSubscriber
}

// RenderWorker processes render jobs
type RenderWorker struct {
	deps Deps
	opts Options
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewRenderWorker creates a new render worker
func NewRenderWorker(deps Deps, opts Options, log logrus.FieldLogger) *RenderWorker {
	if deps.TTS == nil {
		deps.TTS = client.SilentTTS{}
	}
	if deps.Renderer == nil {
		deps.Renderer = client.NewMockRenderer()
	}
	return &RenderWorker{
		deps: deps,
		opts: opts.withDefaults(),
		log:  log.WithField("component", "render_worker"),
		now:  time.Now,
	}
}

// ProcessTask handles render task processing
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	entry, err := queue.ParseRenderTask(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	log := w.log.WithField("job_id", entry.JobID)

	job, err := w.deps.Jobs.Get(ctx, entry.JobID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			log.Warn("Render task for unknown job, dropping")
			return nil
		}
		return fmt.Errorf("failed to load job %s: %w", entry.JobID, err)
	}
	r := w.newRun(entry, job, log)
	defer r.close()

	if job.Status.IsTerminal() {
		log.WithField("status", job.Status).Info("Job already finished, skipping")
		// the controller only reports cancellations whose task it removed
		if job.Status == model.JobStatusCancelled {
			r.notify(ctx, job)
		}
		return nil
	}

	if w.deps.Control != nil {
		var stop func()
		r.control, stop = w.deps.Control.Subscribe(ctx, entry.JobID)
		defer stop()
	}

	if err := r.claim(ctx); err != nil {
		return r.stopped(ctx, err)
	}

	dir, err := os.MkdirTemp(w.opts.TempDir, "render-"+entry.JobID+"-")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	r.dir = dir

	log.WithField("priority", entry.Priority).Info("Starting render job")
	return r.execute(ctx)
}

func (w *RenderWorker) newRun(entry model.QueueEntry, job *model.Job, log logrus.FieldLogger) *jobRun {
	return &jobRun{
		w:     w,
		entry: entry,
		job:   job,
		log:   log,
		clock: newStageClock(w.now),
	}
}

// claim moves a queued job to PROCESSING. A redelivered PROCESSING job is
// continued and a PAUSED one is waited on.
func (r *jobRun) claim(ctx context.Context) error {
	switch r.job.Status {
	case model.JobStatusQueued:
		job, err := r.w.deps.Jobs.UpdateStatus(ctx, r.job.ID, model.JobStatusProcessing, store.StatusFields{})
		if err != nil {
			if errors.Is(err, model.ErrInvalidTransition) {
				// lost to a cancel between load and claim
				if job, gerr := r.w.deps.Jobs.Get(ctx, r.job.ID); gerr == nil {
					r.job = job
				}
				return errCancelled
			}
			return fmt.Errorf("failed to claim job: %w", err)
		}
		r.job = job
		r.broadcastStatus(model.JobStatusProcessing)
		return nil
	case model.JobStatusProcessing:
		r.log.Info("Continuing redelivered job")
		return nil
	case model.JobStatusPaused:
		return r.waitWhilePaused(ctx)
	default:
		return errCancelled
	}
}

// stopped converts a run interruption into the task result.
func (r *jobRun) stopped(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errCancelled):
		r.log.Info("Render job cancelled")
		r.broadcastStatus(model.JobStatusCancelled)
		r.notify(ctx, r.job)
		return nil
	case errors.Is(err, errPauseTimeout):
		r.log.WithField("max_pause", r.w.opts.MaxPause).Warn("Releasing worker slot of paused job")
		return fmt.Errorf("job %s: %w", r.job.ID, err)
	case errors.Is(err, context.Canceled):
		r.log.Warn("Render interrupted by shutdown, job will be redelivered")
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return r.fail(ctx, "", fmt.Errorf("render exceeded its time limit: %w", err))
	default:
		r.log.WithError(err).Error("Render job interrupted")
		return err
	}
}

// fail records the failure and returns an error asynq will not retry.
func (r *jobRun) fail(ctx context.Context, stage string, cause error) error {
	msg := sanitizeError(cause)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	job, err := r.w.deps.Jobs.UpdateStatus(wctx, r.job.ID, model.JobStatusFailed, store.StatusFields{ErrorMessage: msg})
	if err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			r.log.WithError(cause).Info("Render stopped after the job left processing, not marking failed")
			return nil
		}
		r.log.WithError(err).Error("Failed to mark job as failed")
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}
	r.job = job

	r.log.WithError(cause).WithField("stage", stage).Error("Render job failed")
	if r.w.deps.Hub != nil {
		r.w.deps.Hub.BroadcastError(job.ID, "RENDER_FAILED", msg)
	}
	r.notify(wctx, job)

	if stage != "" {
		cause = &model.RenderStageError{Stage: stage, Err: cause}
	}
	return fmt.Errorf("%w: %w", cause, asynq.SkipRetry)
}

// notify delivers the terminal webhook. Delivery failures are only logged.
func (r *jobRun) notify(ctx context.Context, job *model.Job) {
	if r.w.deps.Webhooks == nil || r.entry.WebhookURL == "" || job == nil || !job.Status.IsTerminal() {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	event := client.WebhookEvent{
		Event: client.EventFor(job.Status),
		At:    r.w.now().UTC(),
		Data:  job.Result(),
	}
	if err := r.w.deps.Webhooks.Notify(wctx, r.entry.WebhookURL, event); err != nil {
		r.log.WithError(err).Warn("Webhook delivery failed")
	}
}

func (r *jobRun) broadcastStatus(status model.JobStatus) {
	if r.w.deps.Hub != nil {
		r.w.deps.Hub.BroadcastStatus(r.job.ID, status)
	}
}

func (r *jobRun) close() {
	if r.dir == "" {
		return
	}
	if err := os.RemoveAll(r.dir); err != nil {
		r.log.WithError(err).Warn("Failed to remove work dir")
	}
}
