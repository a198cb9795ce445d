package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/model"
)

const controlChannelPrefix = "render:control:"

// ControlMessage announces a controller-issued status change so a worker
// blocked on a paused job wakes before its next poll tick.
type ControlMessage struct {
	JobID  string          `json:"jobId"`
	Status model.JobStatus `json:"status"`
}

// ControlBus publishes and subscribes to per-job control notifications over
// Redis pub/sub. Notifications are hints: the job store stays the source of truth.
type ControlBus struct {
	redis *redis.Client
	log   logrus.FieldLogger
}

// NewControlBus creates a bus on an existing Redis client
func NewControlBus(client *redis.Client, log logrus.FieldLogger) *ControlBus {
	return &ControlBus{redis: client, log: log.WithField("component", "control")}
}

func controlChannel(jobID string) string {
	return controlChannelPrefix + jobID
}

// Publish sends a status notification for jobID.
func (b *ControlBus) Publish(ctx context.Context, jobID string, status model.JobStatus) error {
	data, err := json.Marshal(ControlMessage{JobID: jobID, Status: status})
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, controlChannel(jobID), data).Err()
}

// Subscribe delivers notifications for jobID until stop is called or ctx is
// done. The returned channel is closed on stop.
func (b *ControlBus) Subscribe(ctx context.Context, jobID string) (<-chan model.JobStatus, func()) {
	sub := b.redis.Subscribe(ctx, controlChannel(jobID))
	out := make(chan model.JobStatus, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var cm ControlMessage
				if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
					b.log.WithError(err).WithField("job_id", jobID).Warn("Ignoring malformed control message")
					continue
				}
				// keep only the latest hint; the receiver re-reads the store anyway
				select {
				case out <- cm.Status:
				default:
				}
			}
		}
	}()

	var stopped bool
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		if err := sub.Close(); err != nil {
			b.log.WithError(err).WithField("job_id", jobID).Debug("Closing control subscription")
		}
	}
	return out, stop
}
