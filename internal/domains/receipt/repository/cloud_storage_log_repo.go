package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"receiptflow/internal/domains/receipt/model"
)

type cloudStorageLogRepository struct {
	pool *pgxpool.Pool
}

func NewCloudStorageLogRepository(pool *pgxpool.Pool) CloudStorageLogRepository {
	return &cloudStorageLogRepository{pool: pool}
}

func (r *cloudStorageLogRepository) Create(ctx context.Context, log *model.CloudStorageLog) error {
	query := `
		INSERT INTO cloud_storage_logs (id, receipt_id, public_id, status, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING attempted_at
	`
	err := r.pool.QueryRow(ctx, query,
		log.ID, log.ReceiptID, log.PublicID, log.Status, log.Error,
	).Scan(&log.AttemptedAt)
	if err != nil {
		return fmt.Errorf("failed to create cloud storage log: %w", err)
	}
	return nil
}

func (r *cloudStorageLogRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*model.CloudStorageLog, error) {
	query := `
		SELECT id, receipt_id, public_id, status, error, attempted_at
		FROM cloud_storage_logs
		WHERE attempted_at BETWEEN $1 AND $2
		ORDER BY attempted_at ASC
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list cloud storage logs: %w", err)
	}
	defer rows.Close()

	var out []*model.CloudStorageLog
	for rows.Next() {
		l := &model.CloudStorageLog{}
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.PublicID, &l.Status, &l.Error, &l.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cloud storage log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
