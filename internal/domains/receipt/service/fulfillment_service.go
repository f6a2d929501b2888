package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/render"
	"receiptflow/internal/domains/receipt/repository"
)

// fulfillmentService drives the three independent worker stages (§4.3-4.5).
// Each method is called from its own asynq handler and is safe to retry:
// every mutation either checks the stage flag first or is itself
// idempotent at the storage layer.
type fulfillmentService struct {
	receiptRepo repository.ReceiptRepository
	orderRepo   repository.OrderRepository
	emailLogRepo repository.EmailLogRepository
	cloudLogRepo repository.CloudStorageLogRepository
	renderer    render.ReceiptRenderer
	store       ArtifactStore
	mailer      Mailer
	enqueuer    Enqueuer
	bucket      string
	signedURLTTL time.Duration
}

func NewFulfillmentService(
	receiptRepo repository.ReceiptRepository,
	orderRepo repository.OrderRepository,
	emailLogRepo repository.EmailLogRepository,
	cloudLogRepo repository.CloudStorageLogRepository,
	renderer render.ReceiptRenderer,
	store ArtifactStore,
	mailer Mailer,
	enqueuer Enqueuer,
	signedURLTTL time.Duration,
) FulfillmentService {
	return &fulfillmentService{
		receiptRepo:  receiptRepo,
		orderRepo:    orderRepo,
		emailLogRepo: emailLogRepo,
		cloudLogRepo: cloudLogRepo,
		renderer:     renderer,
		store:        store,
		mailer:       mailer,
		enqueuer:     enqueuer,
		signedURLTTL: signedURLTTL,
	}
}

// RenderReceipt implements §4.3: render the PDF to local storage, bump the
// attempt counter on failure, enqueue the upload stage on success.
func (s *fulfillmentService) RenderReceipt(ctx context.Context, receiptID uuid.UUID) error {
	receipt, err := s.receiptRepo.GetByID(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("load receipt: %w", err)
	}
	if receipt.PDFGenerated {
		return nil
	}

	data := s.receiptData(receipt)
	pdfBytes, err := s.renderer.RenderReceipt(data)
	if err != nil {
		_ = s.receiptRepo.IncrementRenderAttempts(ctx, receiptID)
		log.Error().Err(err).Str("receipt_id", receiptID.String()).Msg("receipt render failed")
		return err
	}

	localPath := fmt.Sprintf("/tmp/receipts/%s.pdf", receiptID.String())
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		_ = s.receiptRepo.IncrementRenderAttempts(ctx, receiptID)
		return fmt.Errorf("create receipt directory: %w", err)
	}
	if err := os.WriteFile(localPath, pdfBytes, 0o644); err != nil {
		_ = s.receiptRepo.IncrementRenderAttempts(ctx, receiptID)
		return fmt.Errorf("write receipt pdf: %w", err)
	}
	if err := s.receiptRepo.MarkRenderAttemptWithTx(ctx, receiptID, localPath, int64(len(pdfBytes))); err != nil {
		return fmt.Errorf("mark render success: %w", err)
	}
	if err := s.receiptRepo.MarkCompletedIfDone(ctx, receiptID); err != nil {
		log.Error().Err(err).Str("receipt_id", receiptID.String()).Msg("failed to check completion after render")
	}

	if err := s.enqueuer.EnqueueUpload(ctx, receiptID, false); err != nil {
		log.Error().Err(err).Str("receipt_id", receiptID.String()).Msg("failed to enqueue upload after render")
	}
	return nil
}

// UploadReceipt implements §4.4: push the rendered PDF to object storage,
// store the public/signed URLs, enqueue the email stage.
func (s *fulfillmentService) UploadReceipt(ctx context.Context, receiptID uuid.UUID) error {
	receipt, err := s.receiptRepo.GetByID(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("load receipt: %w", err)
	}
	if receipt.CloudinaryUploaded {
		return nil
	}
	if !receipt.PDFGenerated {
		return model.NewRenderNotCompleteError()
	}

	data := s.receiptData(receipt)
	pdfBytes, err := s.renderer.RenderReceipt(data)
	if err != nil {
		return fmt.Errorf("re-render for upload: %w", err)
	}

	year := receipt.PaidAt.Year()
	objectKey := fmt.Sprintf("receipts/%s/%d/receipt_%s", receipt.StoreID, year, receipt.ID)
	tags := map[string]string{
		"tags": fmt.Sprintf("receipt,user_%s,order_%s", receipt.UserID, receipt.OrderID),
	}

	publicID, secureURL, err := s.store.Upload(ctx, objectKey, pdfBytes, "application/pdf", tags)
	if err != nil {
		_ = s.receiptRepo.IncrementUploadAttempts(ctx, receiptID)
		_ = s.cloudLogRepo.Create(ctx, &model.CloudStorageLog{
			ID: uuid.New(), ReceiptID: receiptID, Status: model.LogStatusFailed,
			Error: strPtr(err.Error()), AttemptedAt: time.Now(),
		})
		log.Error().Err(err).Str("receipt_id", receiptID.String()).Msg("receipt upload failed")
		return err
	}

	signedURL, err := s.store.SignedURL(ctx, objectKey, s.signedURLTTL)
	if err != nil {
		signedURL = secureURL
	}

	expiresAt := time.Now().Add(s.signedURLTTL)
	if err := s.receiptRepo.MarkUploadSuccess(ctx, receiptID, publicID, secureURL, signedURL, expiresAt); err != nil {
		return fmt.Errorf("mark upload success: %w", err)
	}
	_ = s.cloudLogRepo.Create(ctx, &model.CloudStorageLog{
		ID: uuid.New(), ReceiptID: receiptID, PublicID: &publicID, Status: model.LogStatusSuccess, AttemptedAt: time.Now(),
	})
	if err := s.receiptRepo.MarkCompletedIfDone(ctx, receiptID); err != nil {
		log.Error().Err(err).Str("receipt_id", receiptID.String()).Msg("failed to check completion after upload")
	}

	if err := s.enqueuer.EnqueueEmail(ctx, receiptID, false); err != nil {
		log.Error().Err(err).Str("receipt_id", receiptID.String()).Msg("failed to enqueue email after upload")
	}
	return nil
}

// EmailReceipt implements §4.5: send the rendered PDF as an attachment,
// classifying failures so permanent ones stop retrying (§4.5, §7).
func (s *fulfillmentService) EmailReceipt(ctx context.Context, receiptID uuid.UUID) error {
	receipt, err := s.receiptRepo.GetByID(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("load receipt: %w", err)
	}
	if receipt.EmailSent || receipt.EmailPermanentFailure {
		return nil
	}
	if !receipt.PDFGenerated {
		return model.NewRenderNotCompleteError()
	}

	data := s.receiptData(receipt)
	rendered := render.RenderEmail(data)

	pdfBytes, err := s.renderer.RenderReceipt(data)
	if err != nil {
		return fmt.Errorf("re-render for email: %w", err)
	}

	messageID, err := s.mailer.SendReceipt(ctx, receipt.EmailRecipient, rendered.Subject, rendered.HTML, rendered.Text, pdfBytes, receipt.ReceiptNumber+".pdf")
	if err != nil {
		class := classifyEmailError(err)
		_ = s.emailLogRepo.Create(ctx, &model.EmailLog{
			ID: uuid.New(), ReceiptID: receiptID, Recipient: receipt.EmailRecipient,
			Status: model.LogStatusFailed, Error: strPtr(err.Error()), AttemptedAt: time.Now(),
		})

		if class == model.EmailFailureInvalidAddress || class == model.EmailFailureAttachmentTooLarge {
			_ = s.receiptRepo.MarkEmailPermanentFailure(ctx, receiptID, string(class)+": "+err.Error())
			log.Error().Err(err).Str("receipt_id", receiptID.String()).Str("class", string(class)).Msg("email permanently failed")
			return nil
		}
		_ = s.receiptRepo.IncrementEmailAttempts(ctx, receiptID, err.Error())
		log.Error().Err(err).Str("receipt_id", receiptID.String()).Str("class", string(class)).Msg("email send failed, will retry")
		return err
	}

	_ = s.emailLogRepo.Create(ctx, &model.EmailLog{
		ID: uuid.New(), ReceiptID: receiptID, Recipient: receipt.EmailRecipient,
		Status: model.LogStatusSent, MessageID: &messageID, AttemptedAt: time.Now(),
	})

	if err := s.receiptRepo.MarkEmailSuccess(ctx, receiptID); err != nil {
		return err
	}
	return s.receiptRepo.MarkCompletedIfDone(ctx, receiptID)
}

func (s *fulfillmentService) receiptData(receipt *model.Receipt) model.ReceiptData {
	return model.ReceiptData{
		ReceiptNumber: receipt.ReceiptNumber,
		StoreName:     receipt.StoreID.String(),
		OrderSnapshot: receipt.OrderSnapshot,
		Amount:        receipt.Amount,
		Currency:      receipt.Currency,
		PaidAt:        receipt.PaidAt,
		Recipient:     receipt.EmailRecipient,
	}
}

// classifyEmailError buckets SMTP failures per §4.5 so the caller can
// decide between retrying and giving up immediately.
func classifyEmailError(err error) model.EmailFailureClass {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such user") || strings.Contains(msg, "mailbox unavailable") || strings.Contains(msg, "invalid address") || strings.Contains(msg, "does not exist"):
		return model.EmailFailureInvalidAddress
	case strings.Contains(msg, "too large") || strings.Contains(msg, "message size exceeds"):
		return model.EmailFailureAttachmentTooLarge
	case strings.Contains(msg, "rate") || strings.Contains(msg, "too many"):
		return model.EmailFailureRateLimit
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") || strings.Contains(msg, "server error"):
		return model.EmailFailureServerError
	default:
		return model.EmailFailureUnknown
	}
}

func strPtr(s string) *string { return &s }
