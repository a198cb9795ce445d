package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/client"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/queue"
	"github.com/estudioia/videos-api/internal/store"
)

// finalWriteTimeout bounds cleanup writes that must outlive the request
const finalWriteTimeout = 10 * time.Second

// ControlPublisher tells the worker holding a job that its status changed
type ControlPublisher interface {
	Publish(ctx context.Context, jobID string, status model.JobStatus) error
}

// StatusBroadcaster pushes controller transitions to live subscribers
type StatusBroadcaster interface {
	BroadcastStatus(jobID string, status model.JobStatus)
}

// JobService owns the job lifecycle on the API side: submission, control
// requests and queries. Workers own everything after the claim.
type JobService struct {
	jobs          store.JobStore
	presentations store.PresentationStore
	directory     store.ProjectDirectory
	dispatcher    queue.Dispatcher
	control       ControlPublisher
	hub           StatusBroadcaster
	webhooks      client.WebhookNotifier
	log           logrus.FieldLogger
	now           func() time.Time
	newID         func() string
}

// JobServiceDeps groups the collaborators of a JobService. Directory,
// Control, Hub and Webhooks are optional.
type JobServiceDeps struct {
	Jobs          store.JobStore
	Presentations store.PresentationStore
	Directory     store.ProjectDirectory
	Dispatcher    queue.Dispatcher
	Control       ControlPublisher
	Hub           StatusBroadcaster
	Webhooks      client.WebhookNotifier
}

func NewJobService(deps JobServiceDeps, log logrus.FieldLogger) *JobService {
	return &JobService{
		jobs:          deps.Jobs,
		presentations: deps.Presentations,
		directory:     deps.Directory,
		dispatcher:    deps.Dispatcher,
		control:       deps.Control,
		hub:           deps.Hub,
		webhooks:      deps.Webhooks,
		log:           log.WithField("component", "job_service"),
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
	}
}

// Submit validates a render request, records the job and dispatches it.
func (s *JobService) Submit(ctx context.Context, ownerID string, req *model.SubmitJobRequest) (*model.SubmitJobResponse, error) {
	if err := req.Settings.CheckCombination(); err != nil {
		return nil, err
	}

	pres, err := s.presentations.GetPresentation(ctx, req.PresentationID)
	if err != nil {
		return nil, err
	}
	if pres.ProjectID != req.ProjectID {
		return nil, &model.ValidationError{
			Message: "presentation belongs to another project",
			Fields:  map[string]string{"presentationId": "project_mismatch"},
		}
	}
	if err := s.authorize(ctx, "presentation", pres.ID, pres.OwnerID, pres.ProjectID, ownerID); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}

	job := &model.Job{
		ID:             s.newID(),
		OwnerID:        ownerID,
		ProjectID:      req.ProjectID,
		PresentationID: req.PresentationID,
		Status:         model.JobStatusQueued,
		Priority:       priority,
		Settings:       req.Settings.Clone(),
		WebhookURL:     req.WebhookURL,
	}
	return s.dispatch(ctx, job, pres)
}

// dispatch records job and hands it to the queue. A job the queue refused is
// deleted again so it does not hold the project's render slot.
func (s *JobService) dispatch(ctx context.Context, job *model.Job, pres *model.Presentation) (*model.SubmitJobResponse, error) {
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "project_id": job.ProjectID})

	if err := s.dispatcher.Enqueue(ctx, job.Entry()); err != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
		defer cancel()
		if derr := s.jobs.Delete(dctx, job.ID); derr != nil {
			log.WithError(derr).Error("Failed to release job after dispatch failure")
		}

		var de *model.DispatchError
		if !errors.As(err, &de) {
			err = &model.DispatchError{JobID: job.ID, Attempts: 1, Err: err}
		}
		log.WithError(err).Error("Failed to dispatch render job")
		return nil, err
	}

	log.WithField("priority", job.Priority).Info("Render job queued")

	return &model.SubmitJobResponse{
		JobID:             job.ID,
		Status:            job.Status,
		Priority:          job.Priority,
		EstimatedDuration: EstimateRenderSeconds(pres, job.Settings),
		RetryOf:           job.RetryOf,
		CreatedAt:         job.CreatedAt,
	}, nil
}

// GetStatus returns the status snapshot of a job the requester may see.
func (s *JobService) GetStatus(ctx context.Context, jobID, requester string) (*model.JobView, error) {
	job, err := s.load(ctx, jobID, requester)
	if err != nil {
		return nil, err
	}
	v := job.View()
	return &v, nil
}

// Pause asks the worker to hold a PROCESSING job at its next checkpoint.
// Pausing a job in any other state changes nothing.
func (s *JobService) Pause(ctx context.Context, jobID, requester string) (*model.ControlResponse, error) {
	job, err := s.load(ctx, jobID, requester)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusProcessing {
		return unchanged(job), nil
	}
	return s.transition(ctx, job, model.JobStatusPaused)
}

// Resume releases a PAUSED job and enqueues it again in case its worker
// already gave up the slot.
func (s *JobService) Resume(ctx context.Context, jobID, requester string) (*model.ControlResponse, error) {
	job, err := s.load(ctx, jobID, requester)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusPaused {
		return unchanged(job), nil
	}

	res, err := s.transition(ctx, job, model.JobStatusProcessing)
	if err != nil || !res.Changed {
		return res, err
	}

	if err := s.dispatcher.Enqueue(ctx, job.Entry()); err != nil {
		// the released task is still in asynq's retry set and picks the job up later
		s.log.WithError(err).WithField("job_id", job.ID).Warn("Failed to re-enqueue resumed job")
	}
	return res, nil
}

// Cancel stops a job that has not finished. A queued job is pulled from the
// queue first so no worker starts it.
func (s *JobService) Cancel(ctx context.Context, jobID, requester string) (*model.ControlResponse, error) {
	job, err := s.load(ctx, jobID, requester)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return unchanged(job), nil
	}

	// a queued job, or a paused one whose worker released its slot, has a
	// task waiting in the queue that no worker holds
	removed := false
	if job.Status == model.JobStatusQueued || job.Status == model.JobStatusPaused {
		removed, err = s.dispatcher.Remove(ctx, job.ID)
		if err != nil {
			// a worker that picks it up later finds it cancelled
			s.log.WithError(err).WithField("job_id", job.ID).Warn("Failed to remove pending render task")
		}
	}

	res, err := s.transition(ctx, job, model.JobStatusCancelled)
	if err != nil || !res.Changed {
		return res, err
	}

	// no worker will ever see a job pulled from the queue
	if removed {
		s.notify(ctx, job.ID)
	}
	return res, nil
}

// Retry submits a new job with the settings of a failed or cancelled one.
func (s *JobService) Retry(ctx context.Context, jobID, requester string) (*model.SubmitJobResponse, error) {
	prev, err := s.load(ctx, jobID, requester)
	if err != nil {
		return nil, err
	}
	if prev.Status != model.JobStatusFailed && prev.Status != model.JobStatusCancelled {
		return nil, &model.InvalidTransitionError{JobID: prev.ID, From: prev.Status, To: model.JobStatusQueued}
	}

	pres, err := s.presentations.GetPresentation(ctx, prev.PresentationID)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:             s.newID(),
		OwnerID:        requester,
		ProjectID:      prev.ProjectID,
		PresentationID: prev.PresentationID,
		Status:         model.JobStatusQueued,
		Priority:       prev.Priority,
		Settings:       prev.Settings.Clone(),
		WebhookURL:     prev.WebhookURL,
		RetryOf:        prev.ID,
	}
	return s.dispatch(ctx, job, pres)
}

// Delete removes a finished job. Active jobs must be cancelled first.
func (s *JobService) Delete(ctx context.Context, jobID, requester string) error {
	job, err := s.load(ctx, jobID, requester)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return &model.ConflictError{ProjectID: job.ProjectID, ActiveJobID: job.ID}
	}
	if err := s.jobs.Delete(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	s.log.WithField("job_id", job.ID).Info("Render job deleted")
	return nil
}

// List returns the jobs the requester owns or collaborates on, newest first.
func (s *JobService) List(ctx context.Context, requester string, q *model.ListJobsQuery) (*model.ListJobsResponse, error) {
	var projects []string
	if s.directory != nil {
		var err error
		projects, err = s.directory.ProjectsFor(ctx, requester)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve projects: %w", err)
		}
	}

	page := store.Page{Limit: q.Limit, Offset: q.Offset}.Normalize()
	jobs, total, err := s.jobs.List(ctx, store.ListFilter{
		VisibleTo:       requester,
		VisibleProjects: projects,
		ProjectID:       q.ProjectID,
		Status:          q.Status,
	}, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	items := make([]model.JobView, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, j.View())
	}
	return &model.ListJobsResponse{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// QueueStats reports the dispatch backlog per priority tier.
func (s *JobService) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	stats, err := s.dispatcher.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}
	return stats, nil
}

// transition applies a controller edge. Losing a race to the worker or to
// another request is reported as unchanged with the status that won.
func (s *JobService) transition(ctx context.Context, job *model.Job, to model.JobStatus) (*model.ControlResponse, error) {
	updated, err := s.jobs.UpdateStatus(ctx, job.ID, to, store.StatusFields{})
	if err != nil {
		if !errors.Is(err, model.ErrInvalidTransition) {
			return nil, fmt.Errorf("failed to update job status: %w", err)
		}
		current, gerr := s.jobs.Get(ctx, job.ID)
		if gerr != nil {
			return nil, gerr
		}
		return unchanged(current), nil
	}

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "from": job.Status, "to": to}).Info("Job status changed")

	if s.control != nil {
		if err := s.control.Publish(ctx, job.ID, to); err != nil {
			// workers also poll the store
			s.log.WithError(err).WithField("job_id", job.ID).Warn("Failed to publish control message")
		}
	}
	if s.hub != nil {
		s.hub.BroadcastStatus(job.ID, to)
	}
	return &model.ControlResponse{JobID: updated.ID, Status: updated.Status, Changed: true}, nil
}

func (s *JobService) notify(ctx context.Context, jobID string) {
	if s.webhooks == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	job, err := s.jobs.Get(wctx, jobID)
	if err != nil || job.WebhookURL == "" {
		return
	}
	event := client.WebhookEvent{Event: client.EventFor(job.Status), At: s.now().UTC(), Data: job.Result()}
	if err := s.webhooks.Notify(wctx, job.WebhookURL, event); err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Warn("Webhook delivery failed")
	}
}

func (s *JobService) load(ctx context.Context, jobID, requester string) (*model.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, "job", job.ID, job.OwnerID, job.ProjectID, requester); err != nil {
		return nil, err
	}
	return job, nil
}

// authorize admits the owner and collaborators of the resource's project.
func (s *JobService) authorize(ctx context.Context, resource, id, ownerID, projectID, requester string) error {
	return authorize(ctx, s.directory, resource, id, ownerID, projectID, requester)
}

func authorize(ctx context.Context, dir store.ProjectDirectory, resource, id, ownerID, projectID, requester string) error {
	if requester != "" && requester == ownerID {
		return nil
	}
	if dir != nil && requester != "" {
		ok, err := dir.IsCollaborator(ctx, projectID, requester)
		if err != nil {
			return fmt.Errorf("failed to check project access: %w", err)
		}
		if ok {
			return nil
		}
	}
	return &model.ForbiddenError{Resource: resource, ID: id}
}

func unchanged(job *model.Job) *model.ControlResponse {
	return &model.ControlResponse{JobID: job.ID, Status: job.Status, Changed: false}
}

// EstimateRenderSeconds scales the presentation's running time by how
// expensive the requested output is to produce.
func EstimateRenderSeconds(pres *model.Presentation, settings model.RenderSettings) int {
	if pres == nil {
		return 0
	}
	factor := 1.0
	switch settings.Resolution {
	case model.Resolution1080p:
		factor *= 1.5
	case model.Resolution4K:
		factor *= 3
	}
	switch settings.Quality {
	case model.QualityDraft:
		factor *= 0.5
	case model.QualityBest:
		factor *= 1.5
	}
	return int(math.Ceil(float64(pres.Model.TotalDuration()) * factor))
}
