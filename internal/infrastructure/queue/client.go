package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/google/uuid"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/pkg/logger"
)

// Client wraps *asynq.Client, implementing service.Enqueuer the way the
// teacher's domain services call s.asynq.Enqueue directly, generalized to
// the three fulfillment stages and their recovery variant (§4.3-4.6).
type Client struct {
	asynqClient *asynq.Client
}

func NewClient(redisAddress string) *Client {
	return &Client{
		asynqClient: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddress}),
	}
}

func (c *Client) Close() error {
	return c.asynqClient.Close()
}

func (c *Client) EnqueueRender(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error {
	return c.enqueue(ctx, model.TaskTypeRenderReceipt, model.QueueReceiptGeneration, receiptID, isRecovery, model.MaxRenderAttempts, model.RenderBackoffBase)
}

func (c *Client) EnqueueUpload(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error {
	return c.enqueue(ctx, model.TaskTypeUploadReceipt, model.QueueCloudinaryUpload, receiptID, isRecovery, model.MaxUploadAttempts, model.UploadBackoffBase)
}

func (c *Client) EnqueueEmail(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error {
	return c.enqueue(ctx, model.TaskTypeEmailReceipt, model.QueueEmailDelivery, receiptID, isRecovery, model.MaxEmailAttempts, model.EmailBackoffBase)
}

// enqueue pushes a receipt job task, deduping on (taskType, receiptID) via
// asynq.TaskID so redeliveries and recovery re-sweeps of the same receipt
// don't pile up duplicate queue entries (§4.6). Recovery-originated tasks
// also take an asynq.Unique lock for retryBase and carry IsRecovery in their
// payload; they go to the same queue as first-pass tasks, so they run at the
// same priority.
func (c *Client) enqueue(ctx context.Context, taskType, queue string, receiptID uuid.UUID, isRecovery bool, maxRetry int, retryBase time.Duration) error {
	payload, err := json.Marshal(model.ReceiptJobPayload{ReceiptID: receiptID, IsRecovery: isRecovery})
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	task := asynq.NewTask(taskType, payload)
	opts := []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(2 * time.Minute),
		asynq.TaskID(fmt.Sprintf("%s:%s", taskType, receiptID)),
	}
	if isRecovery {
		opts = append(opts, asynq.Unique(retryBase))
	}

	_, err = c.asynqClient.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if err == asynq.ErrDuplicateTask || err == asynq.ErrTaskIDConflict {
			logger.Info("job already queued, skipping", map[string]interface{}{
				"task_type":  taskType,
				"receipt_id": receiptID.String(),
			})
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	return nil
}
