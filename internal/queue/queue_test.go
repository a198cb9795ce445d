package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/estudioia/videos-api/internal/model"
)

func TestQueueName(t *testing.T) {
	tests := map[model.Priority]string{
		model.PriorityHigh:   QueueHigh,
		model.PriorityNormal: QueueNormal,
		model.PriorityLow:    QueueLow,
		"":                   QueueNormal,
	}
	for p, want := range tests {
		if got := QueueName(p); got != want {
			t.Errorf("QueueName(%q) = %s, want %s", p, got, want)
		}
	}

	weights := ServerQueues()
	if weights[QueueHigh] <= weights[QueueNormal] || weights[QueueNormal] <= weights[QueueLow] {
		t.Errorf("tier weights out of order: %v", weights)
	}
}

func TestRenderTask_RoundTrip(t *testing.T) {
	entry := model.QueueEntry{
		JobID:          "job-1",
		OwnerID:        "owner-1",
		ProjectID:      "project-1",
		PresentationID: "pres-1",
		Priority:       model.PriorityHigh,
		Settings:       model.RenderSettings{Resolution: model.Resolution720p, FPS: 24, Codec: model.CodecVP9, Format: model.FormatWebM},
		WebhookURL:     "https://hooks.example.com/render",
	}
	task, err := NewRenderTask(entry)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskTypeRender {
		t.Errorf("type = %s", task.Type())
	}

	got, err := ParseRenderTask(task)
	if err != nil {
		t.Fatal(err)
	}
	if got.JobID != entry.JobID || got.Settings.Codec != model.CodecVP9 || got.WebhookURL != entry.WebhookURL {
		t.Errorf("ParseRenderTask() = %+v", got)
	}
}

func TestParseRenderTask_RejectsGarbage(t *testing.T) {
	if _, err := ParseRenderTask(asynq.NewTask(TaskTypeRender, []byte("not json"))); err == nil {
		t.Error("expected error for malformed payload")
	}
	if _, err := ParseRenderTask(asynq.NewTask(TaskTypeRender, []byte(`{}`))); err == nil {
		t.Error("expected error for missing job id")
	}
}

func TestIsTransient(t *testing.T) {
	if !isTransient(errors.New("dial tcp: connection refused")) {
		t.Error("network errors should be retried")
	}
	if isTransient(context.Canceled) || isTransient(asynq.ErrDuplicateTask) {
		t.Error("cancellation and duplicates are permanent")
	}
}

func TestMemoryQueue_PriorityThenFIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	for _, e := range []model.QueueEntry{
		{JobID: "low-1", Priority: model.PriorityLow},
		{JobID: "normal-1", Priority: model.PriorityNormal},
		{JobID: "high-1", Priority: model.PriorityHigh},
		{JobID: "normal-2", Priority: model.PriorityNormal},
		{JobID: "high-2", Priority: model.PriorityHigh},
	} {
		if err := q.Enqueue(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"high-1", "high-2", "normal-1", "normal-2", "low-1"}
	for _, id := range want {
		got, ok := q.Claim()
		if !ok || got.JobID != id {
			t.Fatalf("Claim() = %s, want %s", got.JobID, id)
		}
	}
	if _, ok := q.Claim(); ok {
		t.Error("queue should be empty")
	}
}

func TestMemoryQueue_EnqueueIsIdempotent(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	_ = q.Enqueue(ctx, model.QueueEntry{JobID: "a", Priority: model.PriorityNormal})
	_ = q.Enqueue(ctx, model.QueueEntry{JobID: "b", Priority: model.PriorityNormal})
	_ = q.Enqueue(ctx, model.QueueEntry{JobID: "a", Priority: model.PriorityNormal, WebhookURL: "https://x"})

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	first, _ := q.Claim()
	if first.JobID != "a" || first.WebhookURL != "https://x" {
		t.Errorf("re-enqueue should update in place and keep FIFO position, got %+v", first)
	}

	// claimed entries are not duplicated by a late re-enqueue
	_ = q.Enqueue(ctx, first)
	if q.Len() != 1 {
		t.Errorf("Len() = %d after re-enqueue of active entry, want 1", q.Len())
	}
}

func TestMemoryQueue_Remove(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	_ = q.Enqueue(ctx, model.QueueEntry{JobID: "a"})

	removed, err := q.Remove(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v", removed, err)
	}
	removed, _ = q.Remove(ctx, "a")
	if removed {
		t.Error("second Remove() should report nothing removed")
	}
}
