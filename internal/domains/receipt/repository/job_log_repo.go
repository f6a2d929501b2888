package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"receiptflow/internal/domains/receipt/model"
)

type jobLogRepository struct {
	pool *pgxpool.Pool
}

func NewJobLogRepository(pool *pgxpool.Pool) JobLogRepository {
	return &jobLogRepository{pool: pool}
}

func (r *jobLogRepository) Create(ctx context.Context, log *model.JobLog) error {
	query := `
		INSERT INTO job_logs (
			id, job_id, queue_name, job_type, receipt_id, status, attempts,
			max_attempts, data, is_recovery_job, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING queued_at
	`
	err := r.pool.QueryRow(ctx, query,
		log.ID, log.JobID, log.QueueName, log.JobType, log.ReceiptID, log.Status,
		log.Attempts, log.MaxAttempts, log.Data, log.IsRecoveryJob, log.ExpiresAt,
	).Scan(&log.QueuedAt)
	if err != nil {
		return fmt.Errorf("failed to create job log: %w", err)
	}
	return nil
}

func (r *jobLogRepository) MarkCompleted(ctx context.Context, jobID string, result []byte) error {
	query := `
		UPDATE job_logs
		SET status = $1, result = $2, completed_at = NOW(), attempts = attempts + 1
		WHERE job_id = $3
	`
	_, err := r.pool.Exec(ctx, query, model.JobStatusCompleted, result, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job log completed: %w", err)
	}
	return nil
}

func (r *jobLogRepository) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	query := `
		UPDATE job_logs
		SET status = $1, error = $2, failed_at = NOW(), attempts = attempts + 1
		WHERE job_id = $3
	`
	_, err := r.pool.Exec(ctx, query, model.JobStatusFailed, errMsg, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job log failed: %w", err)
	}
	return nil
}
