package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/repository"
)

// recoveryService implements the periodic sweep of §4.6: find receipts
// stuck in each stage past its threshold, re-enqueue them with
// isRecovery=true (same queue and priority as first-pass jobs), and
// flag-without-mutating the ones that exhausted their
// retry budget and aged past the critical threshold.
type recoveryService struct {
	receiptRepo repository.ReceiptRepository
	enqueuer    Enqueuer
	batchSize   int
}

func NewRecoveryService(receiptRepo repository.ReceiptRepository, enqueuer Enqueuer, batchSize int) RecoveryService {
	if batchSize <= 0 {
		batchSize = model.RecoveryScanBatchSize
	}
	return &recoveryService{receiptRepo: receiptRepo, enqueuer: enqueuer, batchSize: batchSize}
}

func (s *recoveryService) ScanAndRecover(ctx context.Context) (RecoveryReport, error) {
	now := time.Now()
	report := RecoveryReport{}

	stuckRender, err := s.receiptRepo.FindStuckRender(ctx, now.Add(-model.RenderStuckAfter), s.batchSize)
	if err != nil {
		return report, err
	}
	for _, r := range stuckRender {
		if r.IsRenderCriticalFailure(now) {
			report.CriticalFailures++
			log.Error().Str("receipt_id", r.ID.String()).Msg("receipt render critically failed, needs operator attention")
			continue
		}
		if !r.CanRetryRender() {
			continue
		}
		if err := s.enqueuer.EnqueueRender(ctx, r.ID, true); err != nil {
			log.Error().Err(err).Str("receipt_id", r.ID.String()).Msg("recovery: failed to re-enqueue render")
			continue
		}
		report.RenderRequeued++
	}

	stuckUpload, err := s.receiptRepo.FindStuckUpload(ctx, now.Add(-model.UploadStuckAfter), s.batchSize)
	if err != nil {
		return report, err
	}
	for _, r := range stuckUpload {
		if r.IsUploadCriticalFailure(now) {
			report.CriticalFailures++
			log.Error().Str("receipt_id", r.ID.String()).Msg("receipt upload critically failed, needs operator attention")
			continue
		}
		if !r.CanRetryUpload() {
			continue
		}
		if err := s.enqueuer.EnqueueUpload(ctx, r.ID, true); err != nil {
			log.Error().Err(err).Str("receipt_id", r.ID.String()).Msg("recovery: failed to re-enqueue upload")
			continue
		}
		report.UploadRequeued++
	}

	stuckEmail, err := s.receiptRepo.FindStuckEmail(ctx, now.Add(-model.EmailStuckAfter), s.batchSize)
	if err != nil {
		return report, err
	}
	for _, r := range stuckEmail {
		if r.IsEmailCriticalFailure(now) {
			report.CriticalFailures++
			log.Error().Str("receipt_id", r.ID.String()).Msg("receipt email critically failed, needs operator attention")
			continue
		}
		if !r.CanRetryEmail() {
			continue
		}
		if err := s.enqueuer.EnqueueEmail(ctx, r.ID, true); err != nil {
			log.Error().Err(err).Str("receipt_id", r.ID.String()).Msg("recovery: failed to re-enqueue email")
			continue
		}
		report.EmailRequeued++
	}

	log.Info().
		Int("render_requeued", report.RenderRequeued).
		Int("upload_requeued", report.UploadRequeued).
		Int("email_requeued", report.EmailRequeued).
		Int("critical_failures", report.CriticalFailures).
		Msg("recovery sweep complete")

	return report, nil
}
