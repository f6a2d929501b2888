package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"receiptflow/internal/domains/receipt/gateway"
	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/repository"
)

// webhookRetryService re-dispatches webhook_logs rows that failed during
// processing (not signature failures, which are final), distinct from the
// receipt recovery sweep: this operates on intake, that operates on
// fulfillment (supplemented feature, adapted from the teacher's
// RetryFailedWebhooks).
type webhookRetryService struct {
	webhookRepo repository.WebhookLogRepository
	orderRepo   repository.OrderRepository
	registry    *gateway.Registry
	commitSvc   CommitService
	maxAge      time.Duration
	batchSize   int
}

func NewWebhookRetryService(
	webhookRepo repository.WebhookLogRepository,
	orderRepo repository.OrderRepository,
	registry *gateway.Registry,
	commitSvc CommitService,
	maxAge time.Duration,
	batchSize int,
) WebhookRetryService {
	return &webhookRetryService{
		webhookRepo: webhookRepo,
		orderRepo:   orderRepo,
		registry:    registry,
		commitSvc:   commitSvc,
		maxAge:      maxAge,
		batchSize:   batchSize,
	}
}

func (s *webhookRetryService) RetryFailedWebhooks(ctx context.Context) (int, error) {
	failed, err := s.webhookRepo.GetFailedForRetry(ctx, s.maxAge, s.batchSize)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, wlog := range failed {
		event, err := s.registry.Get(wlog.Provider).Parse(wlog.RawPayload)
		if err != nil {
			log.Error().Err(err).Str("webhook_id", wlog.WebhookID).Msg("webhook retry: payload still unparseable")
			continue
		}

		orderID, err := uuid.Parse(event.OrderID)
		if err != nil {
			log.Error().Err(err).Str("webhook_id", wlog.WebhookID).Msg("webhook retry: invalid order_id")
			continue
		}

		switch event.Status {
		case model.TransactionStatusSucceeded:
			_, err = s.commitSvc.CommitPayment(ctx, model.CommitRequest{
				OrderID: orderID, TransactionID: event.TransactionID, Provider: wlog.Provider,
				Amount: event.Amount, Currency: event.Currency, WebhookLogID: wlog.ID,
			})
		case model.TransactionStatusFailed:
			err = s.orderRepo.MarkPaymentFailed(ctx, orderID)
		}

		if err != nil {
			_ = s.webhookRepo.MarkProcessingError(ctx, wlog.ID, err.Error())
			log.Error().Err(err).Str("webhook_id", wlog.WebhookID).Msg("webhook retry failed again")
			continue
		}

		_ = s.webhookRepo.MarkProcessed(ctx, wlog.ID, model.WebhookOutcomeSuccess)
		retried++
	}

	return retried, nil
}

// CleanupExpiredWebhooks purges webhook_logs past their TTL (§4.1: 3-day
// retention), run from the webhook-cleanup cron job.
func (s *webhookRetryService) CleanupExpiredWebhooks(ctx context.Context) (int, error) {
	return s.webhookRepo.DeleteExpired(ctx, time.Now())
}
