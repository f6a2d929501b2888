package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"receiptflow/internal/domains/receipt/model"
)

type webhookLogRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookLogRepository(pool *pgxpool.Pool) WebhookLogRepository {
	return &webhookLogRepository{pool: pool}
}

func (r *webhookLogRepository) Create(ctx context.Context, log *model.WebhookLog) error {
	query := `
		INSERT INTO webhook_logs (
			id, webhook_id, provider, event_type, raw_payload, signature,
			signature_valid, processed, outcome, order_id, transaction_id, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING received_at
	`
	err := r.pool.QueryRow(ctx, query,
		log.ID, log.WebhookID, log.Provider, log.EventType, log.RawPayload,
		log.Signature, log.SignatureValid, log.Processed, log.Outcome,
		log.OrderID, log.TransactionID, log.ExpiresAt,
	).Scan(&log.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}
	return nil
}

// Exists is the dedup gate of §4.1 step 4: a unique index on webhook_id
// turns a provider retry into a no-op detection rather than a race.
func (r *webhookLogRepository) Exists(ctx context.Context, webhookID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM webhook_logs WHERE webhook_id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, webhookID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check webhook idempotency: %w", err)
	}
	return exists, nil
}

func (r *webhookLogRepository) MarkInvalid(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE webhook_logs
		SET signature_valid = false, outcome = $1, error_message = $2
		WHERE id = $3
	`
	_, err := r.pool.Exec(ctx, query, model.WebhookOutcomeValidationFailed, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook invalid: %w", err)
	}
	return nil
}

func (r *webhookLogRepository) MarkProcessed(ctx context.Context, id uuid.UUID, outcome string) error {
	query := `UPDATE webhook_logs SET processed = true, processed_at = NOW(), outcome = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, outcome, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}

func (r *webhookLogRepository) MarkProcessingError(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE webhook_logs
		SET outcome = $1, error_message = $2, processing_attempts = processing_attempts + 1
		WHERE id = $3
	`
	_, err := r.pool.Exec(ctx, query, model.WebhookOutcomeProcessingFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook processing error: %w", err)
	}
	return nil
}

// GetFailedForRetry powers the webhook retry sweep adapted from the
// teacher's RetryFailedWebhooks: only transient PROCESSING_FAILED webhooks
// are retried, never VALIDATION_FAILED ones.
func (r *webhookLogRepository) GetFailedForRetry(ctx context.Context, maxAge time.Duration, limit int) ([]*model.WebhookLog, error) {
	query := `
		SELECT id, webhook_id, provider, event_type, raw_payload, signature,
			signature_valid, processed, processed_at, outcome, error_message,
			processing_attempts, order_id, transaction_id, expires_at, received_at
		FROM webhook_logs
		WHERE outcome = $1 AND received_at > $2
		ORDER BY received_at ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, model.WebhookOutcomeProcessingFailed, time.Now().Add(-maxAge), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed webhooks: %w", err)
	}
	defer rows.Close()

	var out []*model.WebhookLog
	for rows.Next() {
		w := &model.WebhookLog{}
		if err := rows.Scan(
			&w.ID, &w.WebhookID, &w.Provider, &w.EventType, &w.RawPayload, &w.Signature,
			&w.SignatureValid, &w.Processed, &w.ProcessedAt, &w.Outcome, &w.ErrorMessage,
			&w.ProcessingAttempts, &w.OrderID, &w.TransactionID, &w.ExpiresAt, &w.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan webhook log: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteExpired implements the webhook-cleanup maintenance job (TTL §3).
func (r *webhookLogRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	query := `DELETE FROM webhook_logs WHERE expires_at < $1`
	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired webhook logs: %w", err)
	}
	return int(result.RowsAffected()), nil
}
