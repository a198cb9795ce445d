package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/logger"
)

// NewScheduler registers the periodic retention cleanup on cronspec.
func NewScheduler(redisOpt asynq.RedisConnOpt, cronspec string, log logrus.FieldLogger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: logger.NewAsynqLogger(log),
		EnqueueErrorHandler: func(task *asynq.Task, opts []asynq.Option, err error) {
			log.WithError(err).WithField("task", task.Type()).Warn("Failed to enqueue scheduled task")
		},
	})

	entryID, err := scheduler.Register(cronspec, NewCleanupTask(),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.TaskID(TaskTypeCleanup),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register cleanup task %q: %w", cronspec, err)
	}
	log.WithFields(logrus.Fields{"entry_id": entryID, "cron": cronspec}).Info("Cleanup task scheduled")
	return scheduler, nil
}
