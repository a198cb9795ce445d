package model

import "time"

// SubmitJobRequest represents the request to start a render job
type SubmitJobRequest struct {
	ProjectID      string         `json:"projectId" validate:"required,uuid"`
	PresentationID string         `json:"presentationId" validate:"required,uuid"`
	Settings       RenderSettings `json:"settings" validate:"required"`
	Priority       Priority       `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	WebhookURL     string         `json:"webhookUrl,omitempty" validate:"omitempty,url,max=2048"`
}

// SubmitJobResponse represents the response when a job is accepted
type SubmitJobResponse struct {
	JobID             string    `json:"jobId"`
	Status            JobStatus `json:"status"`
	Priority          Priority  `json:"priority"`
	EstimatedDuration int       `json:"estimatedDuration"`
	RetryOf           string    `json:"retryOf,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// JobView is the client-facing status snapshot of a job
type JobView struct {
	ID              string         `json:"id"`
	ProjectID       string         `json:"projectId"`
	PresentationID  string         `json:"presentationId"`
	Status          JobStatus      `json:"status"`
	Priority        Priority       `json:"priority"`
	Progress        int            `json:"progress"`
	CurrentStage    string         `json:"currentStage,omitempty"`
	ETASeconds      *int           `json:"etaSeconds,omitempty"`
	CompletedStages []string       `json:"completedStages"`
	Settings        RenderSettings `json:"settings"`
	OutputURL       string         `json:"outputUrl,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	RetryOf         string         `json:"retryOf,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
}

// View builds the status snapshot. outputUrl and errorMessage only appear in
// the terminal states that own them.
func (j *Job) View() JobView {
	c := j.Clone()
	v := JobView{
		ID:              c.ID,
		ProjectID:       c.ProjectID,
		PresentationID:  c.PresentationID,
		Status:          c.Status,
		Priority:        c.Priority,
		Progress:        c.Progress,
		CurrentStage:    c.CurrentStage,
		ETASeconds:      c.ETASeconds,
		CompletedStages: c.CompletedStages,
		Settings:        c.Settings,
		RetryOf:         c.RetryOf,
		CreatedAt:       c.CreatedAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
	}
	if v.CompletedStages == nil {
		v.CompletedStages = []string{}
	}
	if c.Status == JobStatusCompleted {
		v.OutputURL = c.OutputURL
	}
	if c.Status == JobStatusFailed {
		v.ErrorMessage = c.ErrorMessage
	}
	return v
}

// ControlResponse reports the outcome of pause, resume or cancel. Changed is
// false when the request did not apply to the job's current state.
type ControlResponse struct {
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Changed bool      `json:"changed"`
}

// ListJobsQuery holds list filters and pagination
type ListJobsQuery struct {
	ProjectID string    `query:"projectId" validate:"omitempty,uuid"`
	Status    JobStatus `query:"status" validate:"omitempty,oneof=queued processing paused completed failed cancelled"`
	Limit     int       `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset    int       `query:"offset" validate:"omitempty,min=0"`
}

// ListJobsResponse is one page of job views
type ListJobsResponse struct {
	Items  []JobView `json:"items"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// QueueStats summarizes the dispatch backlog
type QueueStats struct {
	Queues []QueueTierStats `json:"queues"`
	Totals QueueTierStats   `json:"totals"`
}

// QueueTierStats holds counts for one priority tier
type QueueTierStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Completed int    `json:"completed"`
	Paused    bool   `json:"paused"`
}

// PresentationResponse summarizes an ingested presentation
type PresentationResponse struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"projectId"`
	Filename   string     `json:"filename"`
	SourceURL  string     `json:"sourceUrl,omitempty"`
	SlideCount int        `json:"slideCount"`
	Duration   int        `json:"duration"`
	Model      SlideModel `json:"model"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// JobResult is posted to webhooks and pushed to WebSocket subscribers on completion
type JobResult struct {
	JobID     string    `json:"jobId"`
	ProjectID string    `json:"projectId"`
	Status    JobStatus `json:"status"`
	OutputURL string    `json:"outputUrl,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"durationSeconds"`
	At        time.Time `json:"at"`
}

// Result summarizes a finished job for webhooks and completion events.
func (j *Job) Result() JobResult {
	res := JobResult{
		JobID:     j.ID,
		ProjectID: j.ProjectID,
		Status:    j.Status,
		OutputURL: j.OutputURL,
		Error:     j.ErrorMessage,
		At:        j.UpdatedAt,
	}
	if j.StartedAt != nil && j.CompletedAt != nil {
		res.Duration = j.CompletedAt.Sub(*j.StartedAt).Seconds()
	}
	return res
}
