package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// WEBHOOK INTAKE
// =====================================================

// WebhookRequest is the raw inbound payload handed to the intake service
// (§4.1). RawPayload is kept as bytes since the signature is computed over
// the exact bytes the provider signed, not a re-marshalled struct.
type WebhookRequest struct {
	Provider   string
	WebhookID  string
	RawPayload []byte
	Signature  string
}

func (r *WebhookRequest) Validate() error {
	if r.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if r.WebhookID == "" {
		return fmt.Errorf("webhook_id is required")
	}
	if len(r.RawPayload) == 0 {
		return fmt.Errorf("raw_payload is required")
	}
	return nil
}

// NormalizedEvent is the canonical shape every provider payload is parsed
// into (§4.1 step 3, §9's tagged-union redesign note).
type NormalizedEvent struct {
	TransactionID string
	OrderID       string
	Status        string // "succeeded" | "failed"
	Amount        decimal.Decimal
	Currency      string
	EventType     string
}

// WebhookResult is the typed, always-200 response contract of the intake
// endpoint (§6).
type WebhookResult struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func ProcessedResult(receiptID uuid.UUID) WebhookResult {
	data, _ := json.Marshal(map[string]string{"receipt_id": receiptID.String()})
	return WebhookResult{Success: true, Type: ResultTypeProcessed, Data: data}
}

func DuplicateResult() WebhookResult {
	return WebhookResult{Success: true, Type: ResultTypeDuplicate, Message: "webhook already seen"}
}

func InvalidSignatureResult() WebhookResult {
	return WebhookResult{Success: false, Type: ResultTypeInvalidSignature, Message: "signature verification failed"}
}

func ValidationFailedResult(reason string) WebhookResult {
	return WebhookResult{Success: false, Type: ResultTypeValidationFailed, Message: reason}
}

func AlreadyProcessedResult(receiptID uuid.UUID) WebhookResult {
	data, _ := json.Marshal(map[string]string{"receipt_id": receiptID.String()})
	return WebhookResult{Success: true, Type: ResultTypeAlreadyProcessed, Data: data}
}

func PaymentFailedResult() WebhookResult {
	return WebhookResult{Success: true, Type: ResultTypePaymentFailed}
}

func IgnoredResult() WebhookResult {
	return WebhookResult{Success: true, Type: ResultTypeIgnored}
}

// =====================================================
// PAYMENT COMMIT
// =====================================================

// CommitRequest is the input to the payment commit operation (§4.2),
// produced by the intake service once a webhook normalizes to "succeeded".
type CommitRequest struct {
	OrderID       uuid.UUID
	TransactionID string
	Provider      string
	Amount        decimal.Decimal
	Currency      string
	WebhookLogID  uuid.UUID
}

// CommitOutcome distinguishes the three terminal paths of §4.2 so the
// intake service can pick the matching WebhookResult without re-deriving it.
type CommitOutcome string

const (
	CommitOutcomeCreated          CommitOutcome = "created"
	CommitOutcomeAlreadyProcessed CommitOutcome = "already_processed"
	CommitOutcomeRefundRequired   CommitOutcome = "refund_required"
)

type CommitResult struct {
	Outcome   CommitOutcome
	ReceiptID uuid.UUID
}

// =====================================================
// RENDER / EMAIL TEMPLATE DATA
// =====================================================

// ReceiptData is the pure-function input to RenderReceipt and RenderEmail
// (spec §1: both treated as pure functions over this shape).
type ReceiptData struct {
	ReceiptNumber string
	StoreName     string
	OrderSnapshot json.RawMessage
	Amount        decimal.Decimal
	Currency      string
	PaidAt        time.Time
	Recipient     string
}

// RenderedEmail is the output of the pure RenderEmail function.
type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

// =====================================================
// JOB PAYLOADS
// =====================================================

type ReceiptJobPayload struct {
	ReceiptID  uuid.UUID `json:"receipt_id"`
	IsRecovery bool      `json:"is_recovery,omitempty"`
}

// =====================================================
// ADMIN RECONCILIATION (adapted from the teacher's AdminReconcilePayment)
// =====================================================

type ReconcileReceiptRequest struct {
	Action string `json:"action" binding:"required,oneof=force_complete retry_render retry_upload retry_email"`
	Notes  string `json:"notes"`
}
