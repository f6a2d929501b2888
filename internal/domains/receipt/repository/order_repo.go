package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"receiptflow/internal/domains/receipt/model"
)

type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `
	id, order_number, user_id, store_id, items, subtotal, tax, shipping,
	discount, total, status, paid_at, cancelled_at, created_at, updated_at
`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.StoreID, &o.Items, &o.Subtotal,
		&o.Tax, &o.Shipping, &o.Discount, &o.Total, &o.Status, &o.PaidAt,
		&o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return o, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdateWithTx locks the order row for the duration of the
// commit transaction so a concurrent webhook cannot race past the
// already-PAID check (§4.2 step 1).
func (r *orderRepository) GetByIDForUpdateWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, id))
}

func (r *orderRepository) MarkPaidWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error {
	query := `UPDATE orders SET status = $1, paid_at = $2, updated_at = NOW() WHERE id = $3`
	result, err := tx.Exec(ctx, query, model.OrderStatusPaid, paidAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.pool.Exec(ctx, query, model.OrderStatusPaymentFailed, id)
	if err != nil {
		return fmt.Errorf("failed to mark order payment failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}
