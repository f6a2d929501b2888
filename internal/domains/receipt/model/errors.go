package model

import (
	"errors"
	"fmt"
)

// =====================================================
// PREDEFINED ERRORS
// =====================================================

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrOrderAlreadyPaid        = errors.New("order already paid")
	ErrOrderCancelled          = errors.New("order is cancelled")
	ErrAmountMismatch          = errors.New("payment amount does not match order total")
	ErrReceiptNotFound         = errors.New("receipt not found")
	ErrReceiptAlreadyExists    = errors.New("receipt already exists for transaction")
	ErrInvalidSignature        = errors.New("invalid webhook signature")
	ErrWebhookAlreadyProcessed = errors.New("webhook already processed")
	ErrRenderNotComplete       = errors.New("render stage has not completed")
	ErrRefundRequired          = errors.New("payment succeeded against a cancelled order")
	ErrReceiptNumberExhausted  = errors.New("exhausted receipt number retry budget")
)

// =====================================================
// CUSTOM RECEIPT ERROR
// =====================================================

type ReceiptError struct {
	Code    string
	Message string
	Err     error
}

func (e *ReceiptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReceiptError) Unwrap() error {
	return e.Err
}

func NewReceiptError(code, message string, err error) *ReceiptError {
	return &ReceiptError{Code: code, Message: message, Err: err}
}

// =====================================================
// ERROR CODES
// =====================================================

const (
	ErrCodeOrderNotFound          = "ORDER_NOT_FOUND"
	ErrCodeOrderAlreadyPaid       = "ORDER_ALREADY_PAID"
	ErrCodeOrderCancelled         = "ORDER_CANCELLED"
	ErrCodeAmountMismatch         = "AMOUNT_MISMATCH"
	ErrCodeReceiptNotFound        = "RECEIPT_NOT_FOUND"
	ErrCodeReceiptAlreadyExists   = "RECEIPT_ALREADY_EXISTS"
	ErrCodeInvalidSignature       = "INVALID_SIGNATURE"
	ErrCodeWebhookAlreadyHandled  = "WEBHOOK_ALREADY_PROCESSED"
	ErrCodeRenderNotComplete      = "RENDER_NOT_COMPLETE"
	ErrCodeRefundRequired         = "REFUND_REQUIRED"
	ErrCodeReceiptNumberExhausted = "RECEIPT_NUMBER_EXHAUSTED"
)

// =====================================================
// ERROR CONSTRUCTORS
// =====================================================

func NewOrderNotFoundError(orderID string) *ReceiptError {
	return NewReceiptError(ErrCodeOrderNotFound, fmt.Sprintf("order not found: %s", orderID), ErrOrderNotFound)
}

func NewOrderAlreadyPaidError(orderID string) *ReceiptError {
	return NewReceiptError(ErrCodeOrderAlreadyPaid, fmt.Sprintf("order %s is already paid", orderID), ErrOrderAlreadyPaid)
}

func NewOrderCancelledError(orderID string) *ReceiptError {
	return NewReceiptError(ErrCodeOrderCancelled, fmt.Sprintf("order %s is cancelled", orderID), ErrOrderCancelled)
}

// NewAmountMismatchError is a security-relevant abort: the webhook amount
// does not match the order total. The order must not be marked PAID.
func NewAmountMismatchError(expected, got string) *ReceiptError {
	return NewReceiptError(
		ErrCodeAmountMismatch,
		fmt.Sprintf("amount mismatch: expected %s, got %s", expected, got),
		ErrAmountMismatch,
	)
}

func NewReceiptNotFoundError(receiptID string) *ReceiptError {
	return NewReceiptError(ErrCodeReceiptNotFound, fmt.Sprintf("receipt not found: %s", receiptID), ErrReceiptNotFound)
}

func NewInvalidSignatureError() *ReceiptError {
	return NewReceiptError(ErrCodeInvalidSignature, "invalid webhook signature", ErrInvalidSignature)
}

func NewWebhookAlreadyProcessedError() *ReceiptError {
	return NewReceiptError(ErrCodeWebhookAlreadyHandled, "webhook already processed (idempotent)", ErrWebhookAlreadyProcessed)
}

func NewRenderNotCompleteError() *ReceiptError {
	return NewReceiptError(ErrCodeRenderNotComplete, "render stage has not produced a PDF yet", ErrRenderNotComplete)
}

// NewRefundRequiredError signals the requiresRefund=true branch of §4.2:
// a webhook reported success for an order that was already cancelled.
func NewRefundRequiredError(orderID string) *ReceiptError {
	return NewReceiptError(
		ErrCodeRefundRequired,
		fmt.Sprintf("payment succeeded for cancelled order %s, opening a refund request", orderID),
		ErrRefundRequired,
	)
}

func NewReceiptNumberExhaustedError(storeID string, year int) *ReceiptError {
	return NewReceiptError(
		ErrCodeReceiptNumberExhausted,
		fmt.Sprintf("could not allocate a unique receipt number for store %s year %d", storeID, year),
		ErrReceiptNumberExhausted,
	)
}
