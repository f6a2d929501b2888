// Package job wires asynq.Task payloads to the receipt fulfillment and
// recovery services, one handler per queue/task type (§4.3-§4.6).
package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/service"
)

// RenderHandler processes receipt:render tasks on the receipt-generation queue.
type RenderHandler struct {
	fulfillment service.FulfillmentService
}

func NewRenderHandler(fulfillment service.FulfillmentService) *RenderHandler {
	return &RenderHandler{fulfillment: fulfillment}
}

func (h *RenderHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload model.ReceiptJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal render payload")
		return fmt.Errorf("unmarshal render payload: %w", err)
	}

	log.Info().Str("receipt_id", payload.ReceiptID.String()).Bool("is_recovery", payload.IsRecovery).Msg("rendering receipt")

	if err := h.fulfillment.RenderReceipt(ctx, payload.ReceiptID); err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID.String()).Msg("render task failed")
		return fmt.Errorf("render receipt: %w", err)
	}

	log.Info().Str("receipt_id", payload.ReceiptID.String()).Msg("receipt rendered")
	return nil
}

// UploadHandler processes receipt:upload tasks on the cloudinary-upload queue.
type UploadHandler struct {
	fulfillment service.FulfillmentService
}

func NewUploadHandler(fulfillment service.FulfillmentService) *UploadHandler {
	return &UploadHandler{fulfillment: fulfillment}
}

func (h *UploadHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload model.ReceiptJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal upload payload")
		return fmt.Errorf("unmarshal upload payload: %w", err)
	}

	log.Info().Str("receipt_id", payload.ReceiptID.String()).Bool("is_recovery", payload.IsRecovery).Msg("uploading receipt")

	if err := h.fulfillment.UploadReceipt(ctx, payload.ReceiptID); err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID.String()).Msg("upload task failed")
		return fmt.Errorf("upload receipt: %w", err)
	}

	log.Info().Str("receipt_id", payload.ReceiptID.String()).Msg("receipt uploaded")
	return nil
}

// EmailHandler processes receipt:email tasks on the email-delivery queue.
type EmailHandler struct {
	fulfillment service.FulfillmentService
}

func NewEmailHandler(fulfillment service.FulfillmentService) *EmailHandler {
	return &EmailHandler{fulfillment: fulfillment}
}

func (h *EmailHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload model.ReceiptJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal email payload")
		return fmt.Errorf("unmarshal email payload: %w", err)
	}

	log.Info().Str("receipt_id", payload.ReceiptID.String()).Bool("is_recovery", payload.IsRecovery).Msg("emailing receipt")

	if err := h.fulfillment.EmailReceipt(ctx, payload.ReceiptID); err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID.String()).Msg("email task failed")
		return fmt.Errorf("email receipt: %w", err)
	}

	log.Info().Str("receipt_id", payload.ReceiptID.String()).Msg("receipt emailed")
	return nil
}

// RecoveryScanHandler processes receipt:recovery_scan tasks on the
// recovery-scan queue, fired by the cron scheduler (§4.6).
type RecoveryScanHandler struct {
	recovery service.RecoveryService
}

func NewRecoveryScanHandler(recovery service.RecoveryService) *RecoveryScanHandler {
	return &RecoveryScanHandler{recovery: recovery}
}

func (h *RecoveryScanHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	report, err := h.recovery.ScanAndRecover(ctx)
	if err != nil {
		log.Error().Err(err).Msg("recovery scan failed")
		return fmt.Errorf("recovery scan: %w", err)
	}

	log.Info().
		Int("render_requeued", report.RenderRequeued).
		Int("upload_requeued", report.UploadRequeued).
		Int("email_requeued", report.EmailRequeued).
		Int("critical_failures", report.CriticalFailures).
		Msg("recovery scan completed")
	return nil
}

// WebhookRetryHandler processes webhook:retry tasks, re-dispatching
// webhook_logs rows stuck in processing_failed.
type WebhookRetryHandler struct {
	retry service.WebhookRetryService
}

func NewWebhookRetryHandler(retry service.WebhookRetryService) *WebhookRetryHandler {
	return &WebhookRetryHandler{retry: retry}
}

func (h *WebhookRetryHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	n, err := h.retry.RetryFailedWebhooks(ctx)
	if err != nil {
		log.Error().Err(err).Msg("webhook retry sweep failed")
		return fmt.Errorf("webhook retry sweep: %w", err)
	}
	log.Info().Int("retried", n).Msg("webhook retry sweep completed")
	return nil
}

// WebhookCleanupHandler processes webhook:cleanup tasks, purging expired
// webhook_logs rows (§3 TTL).
type WebhookCleanupHandler struct {
	retry service.WebhookRetryService
}

func NewWebhookCleanupHandler(retry service.WebhookRetryService) *WebhookCleanupHandler {
	return &WebhookCleanupHandler{retry: retry}
}

func (h *WebhookCleanupHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	n, err := h.retry.CleanupExpiredWebhooks(ctx)
	if err != nil {
		log.Error().Err(err).Msg("webhook cleanup failed")
		return fmt.Errorf("webhook cleanup: %w", err)
	}
	log.Info().Int("deleted", n).Msg("webhook cleanup completed")
	return nil
}
