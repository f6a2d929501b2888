package model

import "time"

// =====================================================
// ORDER STATUSES
// =====================================================
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusPaymentFailed  = "payment_failed"
	OrderStatusCancelled      = "cancelled"
)

// =====================================================
// PAYMENT TRANSACTION STATUSES
// =====================================================
const (
	TransactionStatusSucceeded = "succeeded"
	TransactionStatusFailed    = "failed"
)

// =====================================================
// RECEIPT STATUSES
// =====================================================
const (
	ReceiptStatusPending   = "pending"
	ReceiptStatusCompleted = "completed"
	ReceiptStatusFailed    = "failed"
)

// =====================================================
// WEBHOOK LOG OUTCOMES
// =====================================================
const (
	WebhookOutcomeSuccess           = "success"
	WebhookOutcomeValidationFailed  = "validation_failed"
	WebhookOutcomeProcessingFailed  = "processing_failed"
	WebhookOutcomeDuplicate         = "duplicate"
	WebhookOutcomeIgnored           = "ignored"
)

// =====================================================
// WEBHOOK SERVICE RESULT TYPES (§9: enumerated response types)
// =====================================================
const (
	ResultTypeProcessed        = "processed"
	ResultTypeDuplicate        = "duplicate"
	ResultTypeValidationFailed = "validation_failed"
	ResultTypeAlreadyProcessed = "already_processed"
	ResultTypePaymentFailed    = "payment_failed"
	ResultTypeInvalidSignature = "invalid_signature"
	ResultTypeIgnored          = "ignored"
)

// =====================================================
// JOB LOG STATUSES
// =====================================================
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// =====================================================
// EMAIL / CLOUD STORAGE LOG STATUSES
// =====================================================
const (
	LogStatusSent    = "sent"
	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
)

// EmailFailureClass classifies a send failure for retry decisioning (§4.5).
type EmailFailureClass string

const (
	EmailFailureInvalidAddress       EmailFailureClass = "invalid_email"
	EmailFailureServerError          EmailFailureClass = "server_error"
	EmailFailureRateLimit            EmailFailureClass = "rate_limit"
	EmailFailureAttachmentTooLarge   EmailFailureClass = "attachment_too_large"
	EmailFailureUnknown              EmailFailureClass = "unknown"
)

// =====================================================
// REFUND REQUEST STATUSES (adapted from the teacher's refund bookkeeping)
// =====================================================
const (
	RefundStatusPending   = "pending"
	RefundStatusApproved  = "approved"
	RefundStatusRejected  = "rejected"
	RefundStatusCompleted = "completed"
)

// =====================================================
// PROVIDERS
// =====================================================
const (
	ProviderPaystack = "paystack"
	ProviderMock     = "mock"
	ProviderGeneric  = "generic"
)

// =====================================================
// QUEUE NAMES (§6: fixed)
// =====================================================
const (
	QueueReceiptGeneration = "receipt-generation"
	QueueCloudinaryUpload  = "cloudinary-upload"
	QueueEmailDelivery     = "email-delivery"
	QueueRecoveryScan      = "recovery-scan"
)

// =====================================================
// JOB TASK TYPES
// =====================================================
const (
	TaskTypeRenderReceipt  = "receipt:render"
	TaskTypeUploadReceipt  = "receipt:upload"
	TaskTypeEmailReceipt   = "receipt:email"
	TaskTypeRecoveryScan   = "receipt:recovery_scan"
	TaskTypeWebhookRetry   = "webhook:retry"
	TaskTypeWebhookCleanup = "webhook:cleanup"
)

// =====================================================
// RETRY / TIMEOUT BUDGETS (§4.3-4.6)
// =====================================================
const (
	MaxRenderAttempts = 3
	MaxUploadAttempts = 5
	MaxEmailAttempts  = 5

	RenderBackoffBase = 1 * time.Minute
	UploadBackoffBase = 2 * time.Minute
	EmailBackoffBase  = 2 * time.Minute

	RenderStuckAfter = 15 * time.Minute
	UploadStuckAfter = 30 * time.Minute
	EmailStuckAfter  = 30 * time.Minute

	RenderCriticalAfter = 1 * time.Hour
	UploadCriticalAfter = 4 * time.Hour
	EmailCriticalAfter  = 4 * time.Hour

	RecoveryScanBatchSize = 50
	RecoveryLowPriority   = 2
	NormalPriority        = 1

	WebhookLogTTL = 72 * time.Hour
	JobLogTTL     = 720 * time.Hour

	MaxReceiptNumberRetries = 5
)

// ValidTransactionStatuses lists the only statuses a normalized webhook event may carry.
var ValidTransactionStatuses = []string{TransactionStatusSucceeded, TransactionStatusFailed}
