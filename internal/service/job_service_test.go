package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/estudioia/videos-api/internal/client"
	"github.com/estudioia/videos-api/internal/logger"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/queue"
	"github.com/estudioia/videos-api/internal/store"
)

const (
	owner    = "owner-1"
	project  = "9f1c2d3e-0000-4000-8000-000000000001"
	deckID   = "9f1c2d3e-0000-4000-8000-0000000000aa"
	stranger = "someone-else"
)

type controlRecorder struct {
	mu   sync.Mutex
	sent []model.JobStatus
}

func (c *controlRecorder) Publish(_ context.Context, _ string, status model.JobStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, status)
	return nil
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []model.JobStatus
}

func (s *statusRecorder) BroadcastStatus(_ string, status model.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

type webhookRecorder struct {
	mu     sync.Mutex
	events []client.WebhookEvent
}

func (w *webhookRecorder) Notify(_ context.Context, _ string, e client.WebhookEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
	return nil
}

type fixture struct {
	store    *store.MemoryStore
	queue    *queue.MemoryQueue
	control  *controlRecorder
	hub      *statusRecorder
	webhooks *webhookRecorder
	svc      *JobService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemoryStore(),
		queue:    queue.NewMemoryQueue(),
		control:  &controlRecorder{},
		hub:      &statusRecorder{},
		webhooks: &webhookRecorder{},
	}
	err := f.store.SavePresentation(context.Background(), &model.Presentation{
		ID:        deckID,
		OwnerID:   owner,
		ProjectID: project,
		Filename:  "deck.pptx",
		Model: model.SlideModel{Slides: []model.Slide{
			{Number: 1, Duration: 15},
			{Number: 2, Duration: 25},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.svc = NewJobService(JobServiceDeps{
		Jobs:          f.store,
		Presentations: f.store,
		Directory:     f.store,
		Dispatcher:    f.queue,
		Control:       f.control,
		Hub:           f.hub,
		Webhooks:      f.webhooks,
	}, logger.Discard())
	return f
}

func submitRequest() *model.SubmitJobRequest {
	return &model.SubmitJobRequest{
		ProjectID:      project,
		PresentationID: deckID,
		WebhookURL:     "https://hooks.example.com/render",
		Settings: model.RenderSettings{
			Resolution: model.Resolution1080p,
			FPS:        30,
			Codec:      model.CodecH264,
			Format:     model.FormatMP4,
			Quality:    model.QualityGood,
		},
	}
}

func (f *fixture) submit(t *testing.T) *model.SubmitJobResponse {
	t.Helper()
	resp, err := f.svc.Submit(context.Background(), owner, submitRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return resp
}

func TestSubmitQueuesJob(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)

	if resp.Status != model.JobStatusQueued {
		t.Errorf("status = %s, want queued", resp.Status)
	}
	if resp.Priority != model.PriorityNormal {
		t.Errorf("priority = %s, want normal default", resp.Priority)
	}
	// 40s of slides at 1080p
	if resp.EstimatedDuration != 60 {
		t.Errorf("estimated = %d, want 60", resp.EstimatedDuration)
	}
	if f.queue.Len() != 1 {
		t.Errorf("queue len = %d, want 1", f.queue.Len())
	}
	entry, ok := f.queue.Claim()
	if !ok || entry.JobID != resp.JobID || entry.WebhookURL == "" {
		t.Errorf("queued entry = %+v", entry)
	}
}

func TestSubmitRejectsSecondActiveJob(t *testing.T) {
	f := newFixture(t)
	first := f.submit(t)

	_, err := f.svc.Submit(context.Background(), owner, submitRequest())
	var ce *model.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if ce.ActiveJobID != first.JobID {
		t.Errorf("active job = %s, want %s", ce.ActiveJobID, first.JobID)
	}
	if f.queue.Len() != 1 {
		t.Errorf("queue len = %d, want 1", f.queue.Len())
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)

	req := submitRequest()
	req.Settings.Format = model.FormatWebM
	if _, err := f.svc.Submit(context.Background(), owner, req); !errors.Is(err, model.ErrValidation) {
		t.Errorf("h264 in webm: err = %v, want validation", err)
	}

	req = submitRequest()
	req.ProjectID = "9f1c2d3e-0000-4000-8000-000000000002"
	if _, err := f.svc.Submit(context.Background(), owner, req); !errors.Is(err, model.ErrValidation) {
		t.Errorf("project mismatch: err = %v, want validation", err)
	}

	req = submitRequest()
	req.PresentationID = "9f1c2d3e-0000-4000-8000-0000000000bb"
	if _, err := f.svc.Submit(context.Background(), owner, req); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing deck: err = %v, want not found", err)
	}

	if _, err := f.svc.Submit(context.Background(), stranger, submitRequest()); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("stranger: err = %v, want forbidden", err)
	}
}

func TestSubmitDispatchFailureReleasesSlot(t *testing.T) {
	f := newFixture(t)
	f.queue.Err = errors.New("redis down")

	_, err := f.svc.Submit(context.Background(), owner, submitRequest())
	if !errors.Is(err, model.ErrDispatch) {
		t.Fatalf("err = %v, want dispatch error", err)
	}

	_, total, err := f.store.List(context.Background(), store.ListFilter{VisibleTo: owner}, store.Page{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("jobs left after dispatch failure = %d, want 0", total)
	}

	f.queue.Err = nil
	f.submit(t)
}

func TestCancelQueuedJob(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)

	res, err := f.svc.Cancel(context.Background(), resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || res.Status != model.JobStatusCancelled {
		t.Errorf("cancel = %+v", res)
	}
	if f.queue.Len() != 0 {
		t.Errorf("queue len = %d, want 0", f.queue.Len())
	}
	if len(f.webhooks.events) != 1 || f.webhooks.events[0].Event != "render.cancelled" {
		t.Errorf("webhooks = %+v, want one render.cancelled", f.webhooks.events)
	}

	// the slot is free again
	f.submit(t)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)

	if _, err := f.svc.Cancel(context.Background(), resp.JobID, owner); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.Cancel(context.Background(), resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed || res.Status != model.JobStatusCancelled {
		t.Errorf("second cancel = %+v, want unchanged cancelled", res)
	}
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)
	ctx := context.Background()

	// queued jobs cannot be paused
	res, err := f.svc.Pause(ctx, resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed || res.Status != model.JobStatusQueued {
		t.Errorf("pause queued = %+v", res)
	}

	// a worker claims it
	f.queue.Claim()
	if _, err := f.store.UpdateStatus(ctx, resp.JobID, model.JobStatusProcessing, store.StatusFields{}); err != nil {
		t.Fatal(err)
	}

	res, err = f.svc.Pause(ctx, resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || res.Status != model.JobStatusPaused {
		t.Errorf("pause = %+v", res)
	}

	// the worker gave up its slot while paused
	f.queue.Ack(resp.JobID)

	res, err = f.svc.Resume(ctx, resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || res.Status != model.JobStatusProcessing {
		t.Errorf("resume = %+v", res)
	}
	// re-enqueued for a worker that may have released it
	if f.queue.Len() != 1 {
		t.Errorf("queue len after resume = %d, want 1", f.queue.Len())
	}

	res, err = f.svc.Resume(ctx, resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed {
		t.Errorf("second resume = %+v, want unchanged", res)
	}

	want := []model.JobStatus{model.JobStatusPaused, model.JobStatusProcessing}
	if len(f.control.sent) != len(want) || f.control.sent[0] != want[0] || f.control.sent[1] != want[1] {
		t.Errorf("control messages = %v, want %v", f.control.sent, want)
	}
	if len(f.hub.statuses) != 2 {
		t.Errorf("broadcasts = %v", f.hub.statuses)
	}
}

func TestControlRequiresAccess(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)
	ctx := context.Background()

	if _, err := f.svc.Cancel(ctx, resp.JobID, stranger); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("stranger cancel: err = %v, want forbidden", err)
	}
	if _, err := f.svc.GetStatus(ctx, resp.JobID, stranger); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("stranger status: err = %v, want forbidden", err)
	}

	f.store.AddCollaborator(project, stranger)
	view, err := f.svc.GetStatus(ctx, resp.JobID, stranger)
	if err != nil {
		t.Fatalf("collaborator status: %v", err)
	}
	if view.Status != model.JobStatusQueued || view.CompletedStages == nil {
		t.Errorf("view = %+v", view)
	}

	if _, err := f.svc.GetStatus(ctx, "9f1c2d3e-0000-4000-8000-0000000000ff", owner); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing job: err = %v, want not found", err)
	}
}

func TestRetry(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)
	ctx := context.Background()

	if _, err := f.svc.Retry(ctx, resp.JobID, owner); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("retry of queued job: err = %v, want invalid transition", err)
	}

	if _, err := f.svc.Cancel(ctx, resp.JobID, owner); err != nil {
		t.Fatal(err)
	}
	retried, err := f.svc.Retry(ctx, resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if retried.RetryOf != resp.JobID || retried.JobID == resp.JobID {
		t.Errorf("retry = %+v", retried)
	}

	job, err := f.store.Get(ctx, retried.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Settings.Resolution != model.Resolution1080p || job.WebhookURL == "" {
		t.Errorf("retried job lost its settings: %+v", job)
	}
}

func TestDeleteOnlyFinishedJobs(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)
	ctx := context.Background()

	if err := f.svc.Delete(ctx, resp.JobID, owner); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("delete active: err = %v, want conflict", err)
	}
	if _, err := f.svc.Cancel(ctx, resp.JobID, owner); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Delete(ctx, resp.JobID, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.GetStatus(ctx, resp.JobID, owner); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("after delete: err = %v, want not found", err)
	}
}

func TestListShowsOwnAndSharedJobs(t *testing.T) {
	f := newFixture(t)
	f.submit(t)
	ctx := context.Background()

	list, err := f.svc.List(ctx, owner, &model.ListJobsQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || len(list.Items) != 1 || list.Limit != store.DefaultPageSize {
		t.Errorf("owner list = %+v", list)
	}

	list, err = f.svc.List(ctx, stranger, &model.ListJobsQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 {
		t.Errorf("stranger sees %d jobs", list.Total)
	}

	f.store.AddCollaborator(project, stranger)
	list, err = f.svc.List(ctx, stranger, &model.ListJobsQuery{Status: model.JobStatusQueued})
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 {
		t.Errorf("collaborator sees %d jobs, want 1", list.Total)
	}
}

func TestEstimateRenderSeconds(t *testing.T) {
	pres := &model.Presentation{Model: model.SlideModel{Slides: []model.Slide{{Duration: 15}, {Duration: 15}}}}
	tests := []struct {
		res  model.Resolution
		q    model.Quality
		want int
	}{
		{model.Resolution720p, model.QualityGood, 30},
		{model.Resolution720p, model.QualityDraft, 15},
		{model.Resolution1080p, model.QualityBest, 68},
		{model.Resolution4K, model.QualityBest, 135},
		{model.Resolution4K, "", 90},
	}
	for _, tt := range tests {
		got := EstimateRenderSeconds(pres, model.RenderSettings{Resolution: tt.res, Quality: tt.q})
		if got != tt.want {
			t.Errorf("%s/%s = %d, want %d", tt.res, tt.q, got, tt.want)
		}
	}
	if EstimateRenderSeconds(nil, model.RenderSettings{}) != 0 {
		t.Error("nil presentation should estimate 0")
	}
}

func TestCancelPausedJobWithReleasedTask(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)
	ctx := context.Background()

	f.queue.Claim()
	if _, err := f.store.UpdateStatus(ctx, resp.JobID, model.JobStatusProcessing, store.StatusFields{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Pause(ctx, resp.JobID, owner); err != nil {
		t.Fatal(err)
	}

	// the worker released its slot and the task waits to be retried
	f.queue.Ack(resp.JobID)
	job, err := f.store.Get(ctx, resp.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.queue.Enqueue(ctx, job.Entry()); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Cancel(ctx, resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || res.Status != model.JobStatusCancelled {
		t.Errorf("cancel = %+v", res)
	}
	if f.queue.Len() != 0 {
		t.Errorf("queue len = %d, want the released task removed", f.queue.Len())
	}
	if len(f.webhooks.events) != 1 || f.webhooks.events[0].Event != "render.cancelled" {
		t.Errorf("webhooks = %+v, want one render.cancelled", f.webhooks.events)
	}
}

func TestCancelPausedJobHeldByWorker(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(t)
	ctx := context.Background()

	f.queue.Claim()
	if _, err := f.store.UpdateStatus(ctx, resp.JobID, model.JobStatusProcessing, store.StatusFields{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Pause(ctx, resp.JobID, owner); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Cancel(ctx, resp.JobID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || res.Status != model.JobStatusCancelled {
		t.Errorf("cancel = %+v", res)
	}
	// the waiting worker sees the cancel and reports it
	if len(f.webhooks.events) != 0 {
		t.Errorf("webhooks = %+v, want none from the controller", f.webhooks.events)
	}
}
