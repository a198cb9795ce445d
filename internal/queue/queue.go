// Package queue dispatches render work through asynq on Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/estudioia/videos-api/internal/model"
)

const (
	TaskTypeRender  = "render:process"
	TaskTypeCleanup = "jobs:cleanup"
)

// asynq queues. With StrictPriority the server drains a higher tier before
// looking at a lower one, and each tier is FIFO.
const (
	QueueHigh        = "render:high"
	QueueNormal      = "render:normal"
	QueueLow         = "render:low"
	QueueMaintenance = "maintenance"
)

// RenderQueues lists the render tiers from highest to lowest priority.
var RenderQueues = []string{QueueHigh, QueueNormal, QueueLow}

// Dispatcher hands queue entries to workers.
type Dispatcher interface {
	// Enqueue schedules entry. Enqueueing the same job id again replaces the
	// pending entry instead of adding a second one.
	Enqueue(ctx context.Context, entry model.QueueEntry) error
	// Remove deletes an entry no worker has claimed yet and reports whether
	// one was found.
	Remove(ctx context.Context, jobID string) (bool, error)
	Stats(ctx context.Context) (*model.QueueStats, error)
}

// QueueName maps a job priority to its asynq queue.
func QueueName(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return QueueHigh
	case model.PriorityLow:
		return QueueLow
	default:
		return QueueNormal
	}
}

// ServerQueues is the asynq.Config.Queues value for worker servers.
func ServerQueues() map[string]int {
	return map[string]int{
		QueueHigh:        6,
		QueueNormal:      3,
		QueueLow:         2,
		QueueMaintenance: 1,
	}
}

// NewRenderTask wraps a queue entry in an asynq task.
func NewRenderTask(entry model.QueueEntry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue entry: %w", err)
	}
	return asynq.NewTask(TaskTypeRender, data), nil
}

// ParseRenderTask decodes the entry carried by a render task.
func ParseRenderTask(t *asynq.Task) (model.QueueEntry, error) {
	var entry model.QueueEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return entry, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}
	if entry.JobID == "" {
		return entry, fmt.Errorf("queue entry has no job id")
	}
	return entry, nil
}

// NewCleanupTask builds the periodic retention task.
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCleanup, nil)
}
