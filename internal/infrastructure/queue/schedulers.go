package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"receiptflow/internal/config"
	"receiptflow/internal/domains/receipt/model"
	"receiptflow/pkg/logger"
)

// Scheduler registers the three cron-driven receipt jobs, grounded on the
// teacher's notification Scheduler: one registerXxxJob method per job,
// each pushing a task onto a fixed queue with its own retry/timeout policy.
type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redisAddress string, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{scheduler: scheduler, jobConfig: jobConfig}
}

func (s *Scheduler) RegisterJobs() error {
	if err := s.registerRecoveryScanJob(); err != nil {
		return err
	}
	if err := s.registerWebhookRetryJob(); err != nil {
		return err
	}
	if err := s.registerWebhookCleanupJob(); err != nil {
		return err
	}
	return nil
}

// JOB 1: Recovery scan, every 15 minutes (§4.6).
func (s *Scheduler) registerRecoveryScanJob() error {
	payload, err := json.Marshal(map[string]interface{}{
		"batch_size": s.jobConfig.RecoveryScanBatchSize,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(model.TaskTypeRecoveryScan, payload)
	_, err = s.scheduler.Register(
		"*/15 * * * *",
		task,
		asynq.Queue(model.QueueRecoveryScan),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		logger.Error("failed to register recovery scan job", err)
		return err
	}

	logger.Info("registered recovery scan job: every 15 minutes", map[string]interface{}{})
	return nil
}

// JOB 2: Webhook retry sweep, every 10 minutes.
func (s *Scheduler) registerWebhookRetryJob() error {
	payload, err := json.Marshal(map[string]interface{}{
		"batch_size": s.jobConfig.WebhookRetryBatchSize,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(model.TaskTypeWebhookRetry, payload)
	_, err = s.scheduler.Register(
		"*/10 * * * *",
		task,
		asynq.Queue(model.QueueRecoveryScan),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		logger.Error("failed to register webhook retry job", err)
		return err
	}

	logger.Info("registered webhook retry job: every 10 minutes", map[string]interface{}{})
	return nil
}

// JOB 3: Webhook log cleanup, daily at 3 AM (§3 TTL).
func (s *Scheduler) registerWebhookCleanupJob() error {
	task := asynq.NewTask(model.TaskTypeWebhookCleanup, nil)
	_, err := s.scheduler.Register(
		"0 3 * * *",
		task,
		asynq.Queue(model.QueueRecoveryScan),
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		logger.Error("failed to register webhook cleanup job", err)
		return err
	}

	logger.Info("registered webhook cleanup job: daily at 3 AM", map[string]interface{}{})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
