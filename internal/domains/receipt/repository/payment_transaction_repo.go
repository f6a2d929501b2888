package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"receiptflow/internal/domains/receipt/model"
)

type paymentTransactionRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentTransactionRepository(pool *pgxpool.Pool) PaymentTransactionRepository {
	return &paymentTransactionRepository{pool: pool}
}

const insertPaymentTransactionQuery = `
	INSERT INTO payment_transactions (
		id, transaction_id, order_id, user_id, store_id, provider, amount,
		currency, status, webhook_log_id, succeeded_at, failed_at, failure_reason
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
	)
	RETURNING created_at
`

// CreateWithTx inserts within the commit transaction. A unique_violation on
// transaction_id means a concurrent webhook already committed this payment
// (§4.2 step 2); the caller treats that as already_processed rather than a
// hard failure.
func (r *paymentTransactionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, p *model.PaymentTransaction) error {
	err := tx.QueryRow(ctx, insertPaymentTransactionQuery,
		p.ID, p.TransactionID, p.OrderID, p.UserID, p.StoreID, p.Provider,
		p.Amount, p.Currency, p.Status, p.WebhookLogID, p.SucceededAt,
		p.FailedAt, p.FailureReason,
	).Scan(&p.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrReceiptAlreadyExists
		}
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return nil
}

func (r *paymentTransactionRepository) Create(ctx context.Context, p *model.PaymentTransaction) error {
	err := r.pool.QueryRow(ctx, insertPaymentTransactionQuery,
		p.ID, p.TransactionID, p.OrderID, p.UserID, p.StoreID, p.Provider,
		p.Amount, p.Currency, p.Status, p.WebhookLogID, p.SucceededAt,
		p.FailedAt, p.FailureReason,
	).Scan(&p.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrReceiptAlreadyExists
		}
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return nil
}

func (r *paymentTransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.PaymentTransaction, error) {
	query := `
		SELECT id, transaction_id, order_id, user_id, store_id, provider,
			amount, currency, status, webhook_log_id, succeeded_at, failed_at,
			failure_reason, created_at
		FROM payment_transactions
		WHERE transaction_id = $1
	`
	p := &model.PaymentTransaction{}
	err := r.pool.QueryRow(ctx, query, transactionID).Scan(
		&p.ID, &p.TransactionID, &p.OrderID, &p.UserID, &p.StoreID, &p.Provider,
		&p.Amount, &p.Currency, &p.Status, &p.WebhookLogID, &p.SucceededAt,
		&p.FailedAt, &p.FailureReason, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}
	return p, nil
}
