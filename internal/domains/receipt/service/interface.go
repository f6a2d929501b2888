package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"receiptflow/internal/domains/receipt/model"
)

// =====================================================
// SERVICE INTERFACES
// =====================================================

// IntakeService is the entry point the webhook handler calls (§4.1).
type IntakeService interface {
	HandleWebhook(ctx context.Context, req model.WebhookRequest) (model.WebhookResult, error)
}

// CommitService implements the payment commit transaction (§4.2).
type CommitService interface {
	CommitPayment(ctx context.Context, req model.CommitRequest) (model.CommitResult, error)
}

// FulfillmentService drives the three worker stages and the §4.7
// completion transition.
type FulfillmentService interface {
	RenderReceipt(ctx context.Context, receiptID uuid.UUID) error
	UploadReceipt(ctx context.Context, receiptID uuid.UUID) error
	EmailReceipt(ctx context.Context, receiptID uuid.UUID) error
}

// RecoveryService implements the periodic sweep of §4.6.
type RecoveryService interface {
	ScanAndRecover(ctx context.Context) (RecoveryReport, error)
}

// RecoveryReport summarizes one sweep for logging/observability.
type RecoveryReport struct {
	RenderRequeued  int
	UploadRequeued  int
	EmailRequeued   int
	CriticalFailures int
}

// ReconcileService implements the operator escape hatches adapted from
// the teacher's AdminReconcilePayment.
type ReconcileService interface {
	ReconcileReceipt(ctx context.Context, adminID, receiptID uuid.UUID, req model.ReconcileReceiptRequest) error
}

// WebhookRetryService re-dispatches webhook_logs rows stuck in
// processing_failed, distinct from the receipt recovery sweep.
type WebhookRetryService interface {
	RetryFailedWebhooks(ctx context.Context) (int, error)
	CleanupExpiredWebhooks(ctx context.Context) (int, error)
}

// =====================================================
// INFRASTRUCTURE DEPENDENCIES (defined by the consumer, per Go idiom)
// =====================================================

// Enqueuer dispatches fulfillment jobs onto the named asynq queues (§6).
// isRecovery is carried in the task payload (§4.6); it does not change the
// queue or priority the task runs at, and no JobLog row is written for it.
type Enqueuer interface {
	EnqueueRender(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error
	EnqueueUpload(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error
	EnqueueEmail(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error
}

// DedupCache is the redis SETNX fast path ahead of the webhook_logs
// unique-constraint check (DOMAIN STACK: avoids a DB round trip on the
// hot duplicate-delivery path).
type DedupCache interface {
	SeenWebhook(ctx context.Context, webhookID string) (alreadySeen bool, err error)
}

// ArtifactStore is the object-storage boundary the upload worker calls (§6).
type ArtifactStore interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string, tags map[string]string) (publicID, secureURL string, err error)
	SignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// Mailer is the email transport boundary the email worker calls (§6).
type Mailer interface {
	SendReceipt(ctx context.Context, to, subject, html, text string, attachment []byte, attachmentName string) (messageID string, err error)
}
