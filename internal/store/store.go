// Package store persists render jobs, presentations and project access.
package store

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/estudioia/videos-api/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// Progress below 100 is reserved for non-completed jobs.
	maxInFlightProgress = 99
)

// JobStore is the durable record of every render job. Implementations make
// each write atomic and visible before returning.
type JobStore interface {
	// Create inserts a QUEUED job. It fails with a ConflictError when the
	// project already has an active job.
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	// UpdateStatus applies one state machine edge atomically. Rewriting the
	// same terminal status is a no-op; any other illegal edge returns an
	// InvalidTransitionError.
	UpdateStatus(ctx context.Context, id string, status model.JobStatus, fields StatusFields) (*model.Job, error)
	// UpdateProgress stores progress only while the job is PROCESSING and
	// never lowers it. It reports whether the row changed.
	UpdateProgress(ctx context.Context, id string, update ProgressUpdate) (bool, error)
	List(ctx context.Context, filter ListFilter, page Page) ([]*model.Job, int64, error)
	Delete(ctx context.Context, id string) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PresentationStore keeps ingested presentations
type PresentationStore interface {
	SavePresentation(ctx context.Context, p *model.Presentation) error
	GetPresentation(ctx context.Context, id string) (*model.Presentation, error)
}

// ProjectDirectory answers collaborator access questions for projects owned
// by the main application.
type ProjectDirectory interface {
	IsCollaborator(ctx context.Context, projectID, userID string) (bool, error)
	ProjectsFor(ctx context.Context, userID string) ([]string, error)
}

// StatusFields carries the side fields some transitions set
type StatusFields struct {
	OutputURL    string
	ErrorMessage string
}

// ProgressUpdate is one worker progress report
type ProgressUpdate struct {
	Progress        int
	Stage           string
	ETASeconds      *int
	CompletedStages []string
}

// ListFilter selects jobs. VisibleTo restricts results to jobs the user owns
// or that belong to VisibleProjects.
type ListFilter struct {
	VisibleTo       string
	VisibleProjects []string
	ProjectID       string
	Status          model.JobStatus
}

// Page is an offset window
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

var validate = validator.New()

func validateNewJob(job *model.Job) error {
	fields := map[string]string{}
	if job.ID == "" {
		fields["id"] = "required"
	}
	if job.OwnerID == "" {
		fields["ownerId"] = "required"
	}
	if job.ProjectID == "" {
		fields["projectId"] = "required"
	}
	if job.Status != model.JobStatusQueued {
		fields["status"] = "new jobs start queued"
	}
	if !job.Priority.Valid() {
		fields["priority"] = "must be one of low, normal, high"
	}
	if err := validate.Struct(job.Settings); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields["settings."+fe.Field()] = fe.Tag()
			}
		} else {
			fields["settings"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return &model.ValidationError{Message: "invalid job", Fields: fields}
	}
	return job.Settings.CheckCombination()
}

// applyTransition moves job to status and fills the fields the edge owns.
func applyTransition(job *model.Job, status model.JobStatus, fields StatusFields, now time.Time) {
	job.Status = status
	job.UpdatedAt = now

	switch status {
	case model.JobStatusProcessing:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case model.JobStatusCompleted:
		zero := 0
		job.Progress = 100
		job.ETASeconds = &zero
		job.CurrentStage = ""
		job.OutputURL = fields.OutputURL
		job.CompletedAt = &now
	case model.JobStatusFailed:
		job.ETASeconds = nil
		job.ErrorMessage = fields.ErrorMessage
		job.CompletedAt = &now
	case model.JobStatusCancelled:
		job.ETASeconds = nil
		job.CompletedAt = &now
	}
}

// checkTransition returns done=true when the write is an idempotent rewrite
// of the current terminal status.
func checkTransition(job *model.Job, status model.JobStatus) (done bool, err error) {
	if job.Status == status && status.IsTerminal() {
		return true, nil
	}
	if !model.CanTransition(job.Status, status) {
		return false, &model.InvalidTransitionError{JobID: job.ID, From: job.Status, To: status}
	}
	return false, nil
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > maxInFlightProgress {
		return maxInFlightProgress
	}
	return p
}
