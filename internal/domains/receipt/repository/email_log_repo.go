package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"receiptflow/internal/domains/receipt/model"
)

type emailLogRepository struct {
	pool *pgxpool.Pool
}

func NewEmailLogRepository(pool *pgxpool.Pool) EmailLogRepository {
	return &emailLogRepository{pool: pool}
}

func (r *emailLogRepository) Create(ctx context.Context, log *model.EmailLog) error {
	query := `
		INSERT INTO email_logs (id, receipt_id, recipient, status, message_id, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING attempted_at
	`
	err := r.pool.QueryRow(ctx, query,
		log.ID, log.ReceiptID, log.Recipient, log.Status, log.MessageID, log.Error,
	).Scan(&log.AttemptedAt)
	if err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}
	return nil
}

func (r *emailLogRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*model.EmailLog, error) {
	query := `
		SELECT id, receipt_id, recipient, status, message_id, error, attempted_at
		FROM email_logs
		WHERE attempted_at BETWEEN $1 AND $2
		ORDER BY attempted_at ASC
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list email logs: %w", err)
	}
	defer rows.Close()

	var out []*model.EmailLog
	for rows.Next() {
		l := &model.EmailLog{}
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.Recipient, &l.Status, &l.MessageID, &l.Error, &l.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan email log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
