package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"receiptflow/internal/domains/receipt/gateway"
	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/repository"
)

// intakeService implements IntakeService, grounded on the teacher's
// ProcessVNPayWebhook: verify the signature, check for a duplicate
// delivery, log the webhook, normalize the payload, then dispatch (§4.1).
type intakeService struct {
	webhookRepo  repository.WebhookLogRepository
	orderRepo    repository.OrderRepository
	registry     *gateway.Registry
	secrets      map[string]string
	dedupCache   DedupCache
	commitSvc    CommitService
}

func NewIntakeService(
	webhookRepo repository.WebhookLogRepository,
	orderRepo repository.OrderRepository,
	registry *gateway.Registry,
	secrets map[string]string,
	dedupCache DedupCache,
	commitSvc CommitService,
) IntakeService {
	return &intakeService{
		webhookRepo: webhookRepo,
		orderRepo:   orderRepo,
		registry:    registry,
		secrets:     secrets,
		dedupCache:  dedupCache,
		commitSvc:   commitSvc,
	}
}

func (s *intakeService) HandleWebhook(ctx context.Context, req model.WebhookRequest) (model.WebhookResult, error) {
	if err := req.Validate(); err != nil {
		return model.ValidationFailedResult(err.Error()), nil
	}

	now := time.Now()
	wlog := &model.WebhookLog{
		ID:         uuid.New(),
		WebhookID:  req.WebhookID,
		Provider:   req.Provider,
		RawPayload: req.RawPayload,
		Signature:  &req.Signature,
		ReceivedAt: now,
		ExpiresAt:  now.Add(model.WebhookLogTTL),
	}

	// Step 1: verify signature before anything else touches the DB, except
	// the mock provider which intentionally bypasses verification so load
	// tests and local development don't need a real HMAC secret.
	if req.Provider != model.ProviderMock {
		secret, ok := s.secrets[req.Provider]
		if !ok || !gateway.VerifySignature(secret, req.RawPayload, req.Signature) {
			wlog.MarkInvalid("signature verification failed")
			if err := s.webhookRepo.Create(ctx, wlog); err != nil {
				log.Error().Err(err).Msg("failed to persist invalid webhook log")
			}
			return model.InvalidSignatureResult(), nil
		}
	}
	wlog.SignatureValid = true

	// Step 2: dedup. The redis SETNX fast path catches the common case of a
	// provider redelivering the same event within its retry window without
	// a DB round trip; the webhook_id unique constraint is the source of
	// truth if the cache is unavailable or cold. This must run before the
	// row is created, or Exists would always find the row this very
	// request is about to insert.
	if s.dedupCache != nil {
		if seen, err := s.dedupCache.SeenWebhook(ctx, req.WebhookID); err == nil && seen {
			return model.DuplicateResult(), nil
		}
	}
	if dup, err := s.webhookRepo.Exists(ctx, req.WebhookID); err == nil && dup {
		return model.DuplicateResult(), nil
	}

	// Step 3: persist the webhook log before dispatch so a crash between
	// here and commit still leaves an audit trail to recover from.
	if err := s.webhookRepo.Create(ctx, wlog); err != nil {
		return model.WebhookResult{}, fmt.Errorf("persist webhook log: %w", err)
	}

	// Step 4: normalize the provider payload into the canonical shape.
	parser := s.registry.Get(req.Provider)
	event, err := parser.Parse(req.RawPayload)
	if err != nil {
		wlog.MarkProcessingError(err)
		_ = s.webhookRepo.MarkProcessingError(ctx, wlog.ID, err.Error())
		return model.ValidationFailedResult("unrecognized payload shape"), nil
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		wlog.MarkProcessingError(err)
		_ = s.webhookRepo.MarkProcessingError(ctx, wlog.ID, err.Error())
		return model.ValidationFailedResult("invalid order_id in payload"), nil
	}

	// Step 5: dispatch on normalized status.
	switch event.Status {
	case model.TransactionStatusSucceeded:
		return s.dispatchSuccess(ctx, wlog, orderID, event)
	case model.TransactionStatusFailed:
		return s.dispatchFailure(ctx, wlog, orderID)
	default:
		wlog.MarkProcessed(model.WebhookOutcomeIgnored)
		_ = s.webhookRepo.MarkProcessed(ctx, wlog.ID, model.WebhookOutcomeIgnored)
		return model.IgnoredResult(), nil
	}
}

func (s *intakeService) dispatchSuccess(ctx context.Context, wlog *model.WebhookLog, orderID uuid.UUID, event model.NormalizedEvent) (model.WebhookResult, error) {
	commitReq := model.CommitRequest{
		OrderID:       orderID,
		TransactionID: event.TransactionID,
		Provider:      wlog.Provider,
		Amount:        event.Amount,
		Currency:      event.Currency,
		WebhookLogID:  wlog.ID,
	}

	result, err := s.commitSvc.CommitPayment(ctx, commitReq)
	if err != nil {
		var receiptErr *model.ReceiptError
		if errors.As(err, &receiptErr) && receiptErr.Code == model.ErrCodeRefundRequired {
			wlog.MarkProcessed(model.WebhookOutcomeSuccess)
			_ = s.webhookRepo.MarkProcessed(ctx, wlog.ID, model.WebhookOutcomeSuccess)
			return model.ProcessedResult(uuid.Nil), nil
		}
		wlog.MarkProcessingError(err)
		_ = s.webhookRepo.MarkProcessingError(ctx, wlog.ID, err.Error())
		return model.WebhookResult{}, err
	}

	wlog.MarkProcessed(model.WebhookOutcomeSuccess)
	_ = s.webhookRepo.MarkProcessed(ctx, wlog.ID, model.WebhookOutcomeSuccess)

	if result.Outcome == model.CommitOutcomeAlreadyProcessed {
		return model.AlreadyProcessedResult(result.ReceiptID), nil
	}
	return model.ProcessedResult(result.ReceiptID), nil
}

func (s *intakeService) dispatchFailure(ctx context.Context, wlog *model.WebhookLog, orderID uuid.UUID) (model.WebhookResult, error) {
	if err := s.orderRepo.MarkPaymentFailed(ctx, orderID); err != nil {
		wlog.MarkProcessingError(err)
		_ = s.webhookRepo.MarkProcessingError(ctx, wlog.ID, err.Error())
		return model.WebhookResult{}, err
	}
	wlog.MarkProcessed(model.WebhookOutcomeSuccess)
	_ = s.webhookRepo.MarkProcessed(ctx, wlog.ID, model.WebhookOutcomeSuccess)
	return model.PaymentFailedResult(), nil
}
