package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReceiptIsComplete(t *testing.T) {
	t.Run("not complete until all three stages flip", func(t *testing.T) {
		rc := &Receipt{}
		assert.False(t, rc.IsComplete())

		rc.PDFGenerated = true
		assert.False(t, rc.IsComplete())

		rc.CloudinaryUploaded = true
		assert.False(t, rc.IsComplete())

		rc.EmailSent = true
		assert.True(t, rc.IsComplete())
	})
}

func TestReceiptCanRetryRender(t *testing.T) {
	rc := &Receipt{PDFGenerationAttempts: MaxRenderAttempts - 1}
	assert.True(t, rc.CanRetryRender())

	rc.PDFGenerationAttempts = MaxRenderAttempts
	assert.False(t, rc.CanRetryRender())

	rc.PDFGenerationAttempts = 0
	rc.PDFGenerated = true
	assert.False(t, rc.CanRetryRender(), "already-generated receipts never retry render")
}

func TestReceiptCanRetryUpload(t *testing.T) {
	rc := &Receipt{PDFGenerated: false}
	assert.False(t, rc.CanRetryUpload(), "upload can't start before render finishes")

	rc.PDFGenerated = true
	rc.CloudinaryUploadAttempts = MaxUploadAttempts - 1
	assert.True(t, rc.CanRetryUpload())

	rc.CloudinaryUploadAttempts = MaxUploadAttempts
	assert.False(t, rc.CanRetryUpload())
}

func TestReceiptCanRetryEmail(t *testing.T) {
	rc := &Receipt{PDFGenerated: true, EmailSendAttempts: MaxEmailAttempts - 1}
	assert.True(t, rc.CanRetryEmail())

	rc.EmailPermanentFailure = true
	assert.False(t, rc.CanRetryEmail(), "a permanent failure never retries regardless of attempt budget")
}

func TestReceiptCriticalFailureThresholds(t *testing.T) {
	now := time.Now()

	t.Run("render critical failure requires exhausted attempts and age", func(t *testing.T) {
		rc := &Receipt{
			PDFGenerated:          false,
			PDFGenerationAttempts: MaxRenderAttempts,
			CreatedAt:             now.Add(-RenderCriticalAfter - time.Minute),
		}
		assert.True(t, rc.IsRenderCriticalFailure(now))

		rc.CreatedAt = now.Add(-RenderCriticalAfter + time.Minute)
		assert.False(t, rc.IsRenderCriticalFailure(now), "not critical until the age threshold passes")

		rc.CreatedAt = now.Add(-RenderCriticalAfter - time.Minute)
		rc.PDFGenerationAttempts = MaxRenderAttempts - 1
		assert.False(t, rc.IsRenderCriticalFailure(now), "not critical while retry budget remains")
	})

	t.Run("upload critical failure requires render to have already succeeded", func(t *testing.T) {
		rc := &Receipt{
			PDFGenerated:             false,
			CloudinaryUploadAttempts: MaxUploadAttempts,
			CreatedAt:                now.Add(-UploadCriticalAfter - time.Minute),
		}
		assert.False(t, rc.IsUploadCriticalFailure(now), "upload can't be critical before render finished")

		rc.PDFGenerated = true
		assert.True(t, rc.IsUploadCriticalFailure(now))
	})

	t.Run("email critical failure is suppressed by a permanent failure flag", func(t *testing.T) {
		rc := &Receipt{
			PDFGenerated:      true,
			EmailSendAttempts: MaxEmailAttempts,
			CreatedAt:         now.Add(-EmailCriticalAfter - time.Minute),
		}
		assert.True(t, rc.IsEmailCriticalFailure(now))

		rc.EmailPermanentFailure = true
		assert.False(t, rc.IsEmailCriticalFailure(now), "a permanent failure is reported once, not flagged again as critical")
	})
}

func TestWebhookLogTransitions(t *testing.T) {
	t.Run("MarkInvalid records outcome and reason", func(t *testing.T) {
		w := &WebhookLog{SignatureValid: true}
		w.MarkInvalid("signature mismatch")

		assert.False(t, w.SignatureValid)
		assert.Equal(t, WebhookOutcomeValidationFailed, w.Outcome)
		assert.Equal(t, "signature mismatch", *w.ErrorMessage)
	})

	t.Run("MarkProcessed sets processed and timestamps it", func(t *testing.T) {
		w := &WebhookLog{}
		w.MarkProcessed(WebhookOutcomeSuccess)

		assert.True(t, w.Processed)
		assert.NotNil(t, w.ProcessedAt)
		assert.Equal(t, WebhookOutcomeSuccess, w.Outcome)
	})

	t.Run("MarkProcessingError increments attempts each call", func(t *testing.T) {
		w := &WebhookLog{}
		w.MarkProcessingError(assertError("db timeout"))
		w.MarkProcessingError(assertError("db timeout again"))

		assert.Equal(t, 2, w.ProcessingAttempts)
		assert.Equal(t, WebhookOutcomeProcessingFailed, w.Outcome)
		assert.Equal(t, "db timeout again", *w.ErrorMessage)
	})
}

type stringError string

func (e stringError) Error() string { return string(e) }

func assertError(msg string) error { return stringError(msg) }
