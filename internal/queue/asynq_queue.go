package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/backoff"
	"github.com/estudioia/videos-api/internal/model"
)

// Options tune task delivery
type Options struct {
	// MaxRetry bounds redeliveries after worker errors that are not
	// SkipRetry, e.g. a process shutdown mid-render or a paused job
	// releasing its slot.
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
	Backoff   backoff.Policy
}

// AsynqQueue implements Dispatcher on asynq.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	opts      Options
	log       logrus.FieldLogger
}

// NewAsynqQueue creates a dispatcher sharing one Redis connection option
func NewAsynqQueue(redisOpt asynq.RedisConnOpt, opts Options, log logrus.FieldLogger) *AsynqQueue {
	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		opts:      opts,
		log:       log.WithField("component", "queue"),
	}
}

// Close releases the Redis connections.
func (q *AsynqQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}

func (q *AsynqQueue) Enqueue(ctx context.Context, entry model.QueueEntry) error {
	task, err := NewRenderTask(entry)
	if err != nil {
		return err
	}
	queueName := QueueName(entry.Priority)

	attempts, err := backoff.Retry(ctx, q.opts.Backoff, func(ctx context.Context) error {
		return q.enqueueOnce(ctx, task, entry.JobID, queueName)
	}, isTransient)
	if err != nil {
		q.log.WithError(err).WithFields(logrus.Fields{
			"job_id":   entry.JobID,
			"attempts": attempts,
		}).Error("Failed to enqueue render task")
		return &model.DispatchError{JobID: entry.JobID, Attempts: attempts, Err: err}
	}

	q.log.WithFields(logrus.Fields{
		"job_id":   entry.JobID,
		"queue":    queueName,
		"attempts": attempts,
	}).Info("Render task enqueued")
	return nil
}

func (q *AsynqQueue) enqueueOnce(ctx context.Context, task *asynq.Task, jobID, queueName string) error {
	_, err := q.client.EnqueueContext(ctx, task, q.taskOptions(jobID, queueName)...)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}

	// A task with this id exists. Replace it unless a worker already holds it.
	existing, where, err := q.find(jobID)
	if err != nil {
		return err
	}
	if existing == nil {
		// vanished between the two calls; try a plain enqueue again
		_, err = q.client.EnqueueContext(ctx, task, q.taskOptions(jobID, queueName)...)
		return err
	}
	if existing.State == asynq.TaskStateActive {
		q.log.WithField("job_id", jobID).Debug("Render task already claimed, not replacing")
		return nil
	}
	if err := q.inspector.DeleteTask(where, jobID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return fmt.Errorf("failed to replace task %s: %w", jobID, err)
	}
	_, err = q.client.EnqueueContext(ctx, task, q.taskOptions(jobID, queueName)...)
	return err
}

func (q *AsynqQueue) taskOptions(jobID, queueName string) []asynq.Option {
	opts := []asynq.Option{
		asynq.TaskID(jobID),
		asynq.Queue(queueName),
		asynq.MaxRetry(q.opts.MaxRetry),
	}
	if q.opts.Timeout > 0 {
		opts = append(opts, asynq.Timeout(q.opts.Timeout))
	}
	if q.opts.Retention > 0 {
		opts = append(opts, asynq.Retention(q.opts.Retention))
	}
	return opts
}

// find locates the task with the given id in any render queue.
func (q *AsynqQueue) find(jobID string) (*asynq.TaskInfo, string, error) {
	for _, name := range RenderQueues {
		info, err := q.inspector.GetTaskInfo(name, jobID)
		switch {
		case err == nil:
			return info, name, nil
		case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
			continue
		default:
			return nil, "", err
		}
	}
	return nil, "", nil
}

func (q *AsynqQueue) Remove(ctx context.Context, jobID string) (bool, error) {
	var removed bool
	_, err := backoff.Retry(ctx, q.opts.Backoff, func(context.Context) error {
		info, where, err := q.find(jobID)
		if err != nil {
			return err
		}
		if info == nil || info.State == asynq.TaskStateActive {
			removed = false
			return nil
		}
		if err := q.inspector.DeleteTask(where, jobID); err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) {
				removed = false
				return nil
			}
			return err
		}
		removed = true
		return nil
	}, isTransient)
	if err != nil {
		return false, &model.DispatchError{JobID: jobID, Attempts: q.opts.Backoff.Attempts, Err: err}
	}
	if removed {
		q.log.WithField("job_id", jobID).Info("Undispatched render task removed")
	}
	return removed, nil
}

func (q *AsynqQueue) Stats(ctx context.Context) (*model.QueueStats, error) {
	stats := &model.QueueStats{Totals: model.QueueTierStats{Queue: "total"}}
	for _, name := range RenderQueues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tier := model.QueueTierStats{Queue: name}
		info, err := q.inspector.GetQueueInfo(name)
		switch {
		case err == nil:
			tier.Pending = info.Pending
			tier.Active = info.Active
			tier.Scheduled = info.Scheduled
			tier.Retry = info.Retry
			tier.Archived = info.Archived
			tier.Completed = info.Completed
			tier.Paused = info.Paused
		case errors.Is(err, asynq.ErrQueueNotFound):
			// queue not created yet: nothing was ever enqueued at this tier
		default:
			return nil, fmt.Errorf("failed to inspect queue %s: %w", name, err)
		}
		stats.Queues = append(stats.Queues, tier)
		stats.Totals.Pending += tier.Pending
		stats.Totals.Active += tier.Active
		stats.Totals.Scheduled += tier.Scheduled
		stats.Totals.Retry += tier.Retry
		stats.Totals.Archived += tier.Archived
		stats.Totals.Completed += tier.Completed
	}
	return stats, nil
}

// isTransient reports whether a queue error is worth another attempt.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, asynq.ErrDuplicateTask):
		return false
	}
	return true
}
