package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/repository"
)

// reconcileService adapts the teacher's AdminReconcilePayment escape hatch
// to receipts: an operator can force a stuck receipt to COMPLETED or
// manually kick a specific stage's retry.
type reconcileService struct {
	receiptRepo repository.ReceiptRepository
	enqueuer    Enqueuer
}

func NewReconcileService(receiptRepo repository.ReceiptRepository, enqueuer Enqueuer) ReconcileService {
	return &reconcileService{receiptRepo: receiptRepo, enqueuer: enqueuer}
}

func (s *reconcileService) ReconcileReceipt(ctx context.Context, adminID, receiptID uuid.UUID, req model.ReconcileReceiptRequest) error {
	receipt, err := s.receiptRepo.GetByID(ctx, receiptID)
	if err != nil {
		return model.NewReceiptNotFoundError(receiptID.String())
	}

	log.Info().
		Str("admin_id", adminID.String()).
		Str("receipt_id", receiptID.String()).
		Str("action", req.Action).
		Str("notes", req.Notes).
		Msg("admin reconciling receipt")

	switch req.Action {
	case "force_complete":
		return s.receiptRepo.ForceComplete(ctx, receiptID)
	case "retry_render":
		return s.enqueuer.EnqueueRender(ctx, receiptID, true)
	case "retry_upload":
		if !receipt.PDFGenerated {
			return model.NewRenderNotCompleteError()
		}
		return s.enqueuer.EnqueueUpload(ctx, receiptID, true)
	case "retry_email":
		if !receipt.PDFGenerated {
			return model.NewRenderNotCompleteError()
		}
		return s.enqueuer.EnqueueEmail(ctx, receiptID, true)
	default:
		return fmt.Errorf("unknown reconcile action: %s", req.Action)
	}
}
