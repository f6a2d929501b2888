package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"receiptflow/internal/domains/receipt/model"
)

type refundRequestRepository struct {
	pool *pgxpool.Pool
}

func NewRefundRequestRepository(pool *pgxpool.Pool) RefundRequestRepository {
	return &refundRequestRepository{pool: pool}
}

// CreateWithTx opens a pending refund request when a payment succeeds
// against an already-cancelled order (§4.2's requiresRefund=true branch,
// adapted from the teacher's RefundRequest entity).
func (r *refundRequestRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, refund *model.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (
			id, receipt_id, order_id, transaction_id, requested_amount, reason, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING requested_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		refund.ID, refund.ReceiptID, refund.OrderID, refund.TransactionID,
		refund.RequestedAmount, refund.Reason, refund.Status,
	).Scan(&refund.RequestedAt, &refund.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create refund request: %w", err)
	}
	return nil
}

func (r *refundRequestRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.RefundRequest, error) {
	query := `
		SELECT id, receipt_id, order_id, transaction_id, requested_amount, reason,
			status, approved_by, approved_at, admin_notes, requested_at, updated_at
		FROM refund_requests
		WHERE order_id = $1
		ORDER BY requested_at DESC
		LIMIT 1
	`
	refund := &model.RefundRequest{}
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&refund.ID, &refund.ReceiptID, &refund.OrderID, &refund.TransactionID,
		&refund.RequestedAmount, &refund.Reason, &refund.Status, &refund.ApprovedBy,
		&refund.ApprovedAt, &refund.AdminNotes, &refund.RequestedAt, &refund.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refund request: %w", err)
	}
	return refund, nil
}
