package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// ORDER ENTITY
// =====================================================
type Order struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderNumber string          `json:"order_number" db:"order_number"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	StoreID     uuid.UUID       `json:"store_id" db:"store_id"`
	Items       json.RawMessage `json:"items" db:"items"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax         decimal.Decimal `json:"tax" db:"tax"`
	Shipping    decimal.Decimal `json:"shipping" db:"shipping"`
	Discount    decimal.Decimal `json:"discount" db:"discount"`
	Total       decimal.Decimal `json:"total" db:"total"`
	Status      string          `json:"status" db:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

func (o *Order) IsPaid() bool      { return o.Status == OrderStatusPaid }
func (o *Order) IsCancelled() bool { return o.Status == OrderStatusCancelled }

// orderSnapshot is the frozen shape stored on Receipt.OrderSnapshot. It
// carries the line items alongside the pricing breakdown so a receipt never
// has to join back to orders to show what was actually charged.
type orderSnapshot struct {
	Items    json.RawMessage `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Freeze captures the order's line items and pricing at commit time (§4.2)
// so later edits to the order never change what a receipt reports.
func (o *Order) Freeze() (json.RawMessage, error) {
	return json.Marshal(orderSnapshot{
		Items:    o.Items,
		Subtotal: o.Subtotal,
		Tax:      o.Tax,
		Shipping: o.Shipping,
		Discount: o.Discount,
		Total:    o.Total,
	})
}

// =====================================================
// PAYMENT TRANSACTION ENTITY
// =====================================================
type PaymentTransaction struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	TransactionID string     `json:"transaction_id" db:"transaction_id"`
	OrderID       uuid.UUID  `json:"order_id" db:"order_id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	StoreID       uuid.UUID  `json:"store_id" db:"store_id"`
	Provider      string     `json:"provider" db:"provider"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string     `json:"currency" db:"currency"`
	Status        string     `json:"status" db:"status"`
	WebhookLogID  uuid.UUID  `json:"webhook_log_id" db:"webhook_log_id"`
	SucceededAt   *time.Time `json:"succeeded_at,omitempty" db:"succeeded_at"`
	FailedAt      *time.Time `json:"failed_at,omitempty" db:"failed_at"`
	FailureReason *string    `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

func (p *PaymentTransaction) IsSucceeded() bool { return p.Status == TransactionStatusSucceeded }

// =====================================================
// RECEIPT ENTITY
// =====================================================
type Receipt struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	ReceiptNumber string          `json:"receipt_number" db:"receipt_number"`
	OrderID       uuid.UUID       `json:"order_id" db:"order_id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	StoreID       uuid.UUID       `json:"store_id" db:"store_id"`
	OrderSnapshot json.RawMessage `json:"order_snapshot" db:"order_snapshot"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Status        string          `json:"status" db:"status"`
	PaidAt        time.Time       `json:"paid_at" db:"paid_at"`

	// PDF render stage
	PDFGenerated         bool       `json:"pdf_generated" db:"pdf_generated"`
	PDFGeneratedAt       *time.Time `json:"pdf_generated_at,omitempty" db:"pdf_generated_at"`
	PDFLocalPath         *string    `json:"pdf_local_path,omitempty" db:"pdf_local_path"`
	PDFSizeBytes         *int64     `json:"pdf_size_bytes,omitempty" db:"pdf_size_bytes"`
	PDFGenerationAttempts int       `json:"pdf_generation_attempts" db:"pdf_generation_attempts"`

	// Cloud storage upload stage
	CloudinaryUploaded              bool       `json:"cloudinary_uploaded" db:"cloudinary_uploaded"`
	CloudinaryUploadedAt            *time.Time `json:"cloudinary_uploaded_at,omitempty" db:"cloudinary_uploaded_at"`
	CloudinaryPublicID              *string    `json:"cloudinary_public_id,omitempty" db:"cloudinary_public_id"`
	CloudinarySecureURL             *string    `json:"cloudinary_secure_url,omitempty" db:"cloudinary_secure_url"`
	CloudinarySignedURL             *string    `json:"cloudinary_signed_url,omitempty" db:"cloudinary_signed_url"`
	CloudinarySignedURLExpiresAt    *time.Time `json:"cloudinary_signed_url_expires_at,omitempty" db:"cloudinary_signed_url_expires_at"`
	CloudinaryUploadAttempts        int        `json:"cloudinary_upload_attempts" db:"cloudinary_upload_attempts"`

	// Email delivery stage
	EmailSent             bool       `json:"email_sent" db:"email_sent"`
	EmailSentAt           *time.Time `json:"email_sent_at,omitempty" db:"email_sent_at"`
	EmailSendAttempts     int        `json:"email_send_attempts" db:"email_send_attempts"`
	EmailPermanentFailure bool       `json:"email_permanent_failure" db:"email_permanent_failure"`
	EmailLastError        *string    `json:"email_last_error,omitempty" db:"email_last_error"`
	EmailRecipient        string     `json:"email_recipient" db:"email_recipient"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsComplete reports whether all three fulfillment stages have finished,
// the condition that flips Status to COMPLETED (spec invariant, §3).
func (r *Receipt) IsComplete() bool {
	return r.PDFGenerated && r.CloudinaryUploaded && r.EmailSent
}

// CanRetryRender reports whether the render stage still has attempt budget.
func (r *Receipt) CanRetryRender() bool {
	return !r.PDFGenerated && r.PDFGenerationAttempts < MaxRenderAttempts
}

// CanRetryUpload reports whether the upload stage still has attempt budget.
func (r *Receipt) CanRetryUpload() bool {
	return r.PDFGenerated && !r.CloudinaryUploaded && r.CloudinaryUploadAttempts < MaxUploadAttempts
}

// CanRetryEmail reports whether the email stage still has attempt budget.
func (r *Receipt) CanRetryEmail() bool {
	return r.PDFGenerated && !r.EmailSent && !r.EmailPermanentFailure && r.EmailSendAttempts < MaxEmailAttempts
}

// IsRenderCriticalFailure reports a render stage that exhausted its retry
// budget and has aged past the critical threshold (§4.6).
func (r *Receipt) IsRenderCriticalFailure(now time.Time) bool {
	return !r.PDFGenerated && r.PDFGenerationAttempts >= MaxRenderAttempts && now.Sub(r.CreatedAt) > RenderCriticalAfter
}

func (r *Receipt) IsUploadCriticalFailure(now time.Time) bool {
	return r.PDFGenerated && !r.CloudinaryUploaded && r.CloudinaryUploadAttempts >= MaxUploadAttempts && now.Sub(r.CreatedAt) > UploadCriticalAfter
}

func (r *Receipt) IsEmailCriticalFailure(now time.Time) bool {
	return r.PDFGenerated && !r.EmailSent && !r.EmailPermanentFailure && r.EmailSendAttempts >= MaxEmailAttempts && now.Sub(r.CreatedAt) > EmailCriticalAfter
}

// =====================================================
// WEBHOOK LOG ENTITY
// =====================================================
type WebhookLog struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	WebhookID           string          `json:"webhook_id" db:"webhook_id"`
	Provider            string          `json:"provider" db:"provider"`
	EventType           *string         `json:"event_type,omitempty" db:"event_type"`
	RawPayload          json.RawMessage `json:"raw_payload" db:"raw_payload"`
	Signature           *string         `json:"signature,omitempty" db:"signature"`
	SignatureValid      bool            `json:"signature_valid" db:"signature_valid"`
	Processed           bool            `json:"processed" db:"processed"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	Outcome             string          `json:"outcome" db:"outcome"`
	ErrorMessage        *string         `json:"error_message,omitempty" db:"error_message"`
	ProcessingAttempts  int             `json:"processing_attempts" db:"processing_attempts"`
	OrderID             *uuid.UUID      `json:"order_id,omitempty" db:"order_id"`
	TransactionID       *string         `json:"transaction_id,omitempty" db:"transaction_id"`
	ExpiresAt           time.Time       `json:"expires_at" db:"expires_at"`
	ReceivedAt          time.Time       `json:"received_at" db:"received_at"`
}

// MarkInvalid marks a webhook as having failed signature verification.
func (w *WebhookLog) MarkInvalid(reason string) {
	w.SignatureValid = false
	w.Outcome = WebhookOutcomeValidationFailed
	w.ErrorMessage = &reason
}

// MarkProcessed marks a webhook as successfully dispatched.
func (w *WebhookLog) MarkProcessed(outcome string) {
	w.Processed = true
	now := time.Now()
	w.ProcessedAt = &now
	w.Outcome = outcome
}

// MarkProcessingError records an internal-exception outcome (§4.1 step 7).
func (w *WebhookLog) MarkProcessingError(err error) {
	msg := err.Error()
	w.Outcome = WebhookOutcomeProcessingFailed
	w.ErrorMessage = &msg
	w.ProcessingAttempts++
}

// =====================================================
// JOB LOG ENTITY (append-only audit record of a worker execution)
// =====================================================
type JobLog struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	JobID         string          `json:"job_id" db:"job_id"`
	QueueName     string          `json:"queue_name" db:"queue_name"`
	JobType       string          `json:"job_type" db:"job_type"`
	ReceiptID     *uuid.UUID      `json:"receipt_id,omitempty" db:"receipt_id"`
	Status        string          `json:"status" db:"status"`
	Attempts      int             `json:"attempts" db:"attempts"`
	MaxAttempts   int             `json:"max_attempts" db:"max_attempts"`
	Data          json.RawMessage `json:"data,omitempty" db:"data"`
	Result        json.RawMessage `json:"result,omitempty" db:"result"`
	Error         *string         `json:"error,omitempty" db:"error"`
	QueuedAt      time.Time       `json:"queued_at" db:"queued_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt      *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
	IsRecoveryJob bool            `json:"is_recovery_job" db:"is_recovery_job"`
	ExpiresAt     time.Time       `json:"expires_at" db:"expires_at"`
}

// =====================================================
// EMAIL LOG ENTITY (per-attempt audit record)
// =====================================================
type EmailLog struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ReceiptID   uuid.UUID `json:"receipt_id" db:"receipt_id"`
	Recipient   string    `json:"recipient" db:"recipient"`
	Status      string    `json:"status" db:"status"`
	MessageID   *string   `json:"message_id,omitempty" db:"message_id"`
	Error       *string   `json:"error,omitempty" db:"error"`
	AttemptedAt time.Time `json:"attempted_at" db:"attempted_at"`
}

// =====================================================
// CLOUD STORAGE LOG ENTITY (per-attempt audit record)
// =====================================================
type CloudStorageLog struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ReceiptID   uuid.UUID `json:"receipt_id" db:"receipt_id"`
	PublicID    *string   `json:"public_id,omitempty" db:"public_id"`
	Status      string    `json:"status" db:"status"`
	Error       *string   `json:"error,omitempty" db:"error"`
	AttemptedAt time.Time `json:"attempted_at" db:"attempted_at"`
}

// =====================================================
// REFUND REQUEST ENTITY (adapted from the teacher's refund bookkeeping,
// opened when a payment succeeds against an already-cancelled order)
// =====================================================
type RefundRequest struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ReceiptID       *uuid.UUID      `json:"receipt_id,omitempty" db:"receipt_id"`
	OrderID         uuid.UUID       `json:"order_id" db:"order_id"`
	TransactionID   string          `json:"transaction_id" db:"transaction_id"`
	RequestedAmount decimal.Decimal `json:"requested_amount" db:"requested_amount"`
	Reason          string          `json:"reason" db:"reason"`
	Status          string          `json:"status" db:"status"`
	ApprovedBy      *uuid.UUID      `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	AdminNotes      *string         `json:"admin_notes,omitempty" db:"admin_notes"`
	RequestedAt     time.Time       `json:"requested_at" db:"requested_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

func (r *RefundRequest) IsPending() bool { return r.Status == RefundStatusPending }
