package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"receiptflow/internal/domains/receipt/model"
)

type receiptRepository struct {
	pool *pgxpool.Pool
}

func NewReceiptRepository(pool *pgxpool.Pool) ReceiptRepository {
	return &receiptRepository{pool: pool}
}

const receiptColumns = `
	id, receipt_number, order_id, transaction_id, user_id, store_id,
	order_snapshot, amount, currency, status, paid_at,
	pdf_generated, pdf_generated_at, pdf_local_path, pdf_size_bytes, pdf_generation_attempts,
	cloudinary_uploaded, cloudinary_uploaded_at, cloudinary_public_id, cloudinary_secure_url,
	cloudinary_signed_url, cloudinary_signed_url_expires_at, cloudinary_upload_attempts,
	email_sent, email_sent_at, email_send_attempts, email_permanent_failure,
	email_last_error, email_recipient, created_at, updated_at
`

func scanReceipt(row pgx.Row) (*model.Receipt, error) {
	rc := &model.Receipt{}
	err := row.Scan(
		&rc.ID, &rc.ReceiptNumber, &rc.OrderID, &rc.TransactionID, &rc.UserID, &rc.StoreID,
		&rc.OrderSnapshot, &rc.Amount, &rc.Currency, &rc.Status, &rc.PaidAt,
		&rc.PDFGenerated, &rc.PDFGeneratedAt, &rc.PDFLocalPath, &rc.PDFSizeBytes, &rc.PDFGenerationAttempts,
		&rc.CloudinaryUploaded, &rc.CloudinaryUploadedAt, &rc.CloudinaryPublicID, &rc.CloudinarySecureURL,
		&rc.CloudinarySignedURL, &rc.CloudinarySignedURLExpiresAt, &rc.CloudinaryUploadAttempts,
		&rc.EmailSent, &rc.EmailSentAt, &rc.EmailSendAttempts, &rc.EmailPermanentFailure,
		&rc.EmailLastError, &rc.EmailRecipient, &rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("failed to scan receipt: %w", err)
	}
	return rc, nil
}

// CreateWithTx inserts the receipt row inside the same transaction that
// committed the order to PAID (§4.2 step 5). orderSnapshot is written once
// and never touched again (spec invariant: orderSnapshot is immutable).
func (r *receiptRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, rc *model.Receipt) error {
	query := `
		INSERT INTO receipts (
			id, receipt_number, order_id, transaction_id, user_id, store_id,
			order_snapshot, amount, currency, status, paid_at, email_recipient
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		rc.ID, rc.ReceiptNumber, rc.OrderID, rc.TransactionID, rc.UserID, rc.StoreID,
		rc.OrderSnapshot, rc.Amount, rc.Currency, rc.Status, rc.PaidAt, rc.EmailRecipient,
	).Scan(&rc.CreatedAt, &rc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Either transaction_id or receipt_number collided; the caller
			// (commitService.tryCommit) distinguishes the two by re-reading
			// receipts.GetByTransactionID before retrying the number (§9).
			return model.ErrReceiptAlreadyExists
		}
		return fmt.Errorf("failed to create receipt: %w", err)
	}
	return nil
}

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	return scanReceipt(r.pool.QueryRow(ctx, query, id))
}

func (r *receiptRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE transaction_id = $1`
	rc, err := scanReceipt(r.pool.QueryRow(ctx, query, transactionID))
	if errors.Is(err, model.ErrReceiptNotFound) {
		return nil, nil
	}
	return rc, err
}

// CountByStoreYearWithTx backs receipt number allocation. The caller
// formats RCP-YYYY-NNNNNN from count+1 and retries on unique_violation
// (§4.2 step 4, §9's documented race resolution).
func (r *receiptRepository) CountByStoreYearWithTx(ctx context.Context, tx pgx.Tx, storeID uuid.UUID, year int) (int, error) {
	query := `
		SELECT COUNT(*) FROM receipts
		WHERE store_id = $1 AND EXTRACT(YEAR FROM paid_at) = $2
	`
	var count int
	if err := tx.QueryRow(ctx, query, storeID, year).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count receipts for store/year: %w", err)
	}
	return count, nil
}

func (r *receiptRepository) MarkRenderAttemptWithTx(ctx context.Context, receiptID uuid.UUID, localPath string, sizeBytes int64) error {
	query := `
		UPDATE receipts
		SET pdf_generated = true, pdf_generated_at = NOW(), pdf_local_path = $1,
			pdf_size_bytes = $2, pdf_generation_attempts = pdf_generation_attempts + 1,
			updated_at = NOW()
		WHERE id = $3
	`
	result, err := r.pool.Exec(ctx, query, localPath, sizeBytes, receiptID)
	if err != nil {
		return fmt.Errorf("failed to mark render success: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrReceiptNotFound
	}
	return nil
}

func (r *receiptRepository) IncrementRenderAttempts(ctx context.Context, receiptID uuid.UUID) error {
	query := `UPDATE receipts SET pdf_generation_attempts = pdf_generation_attempts + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, receiptID)
	if err != nil {
		return fmt.Errorf("failed to increment render attempts: %w", err)
	}
	return nil
}

func (r *receiptRepository) MarkUploadSuccess(ctx context.Context, receiptID uuid.UUID, publicID, secureURL, signedURL string, signedURLExpiresAt time.Time) error {
	query := `
		UPDATE receipts
		SET cloudinary_uploaded = true, cloudinary_uploaded_at = NOW(),
			cloudinary_public_id = $1, cloudinary_secure_url = $2,
			cloudinary_signed_url = $3, cloudinary_signed_url_expires_at = $4,
			cloudinary_upload_attempts = cloudinary_upload_attempts + 1,
			updated_at = NOW()
		WHERE id = $5
	`
	result, err := r.pool.Exec(ctx, query, publicID, secureURL, signedURL, signedURLExpiresAt, receiptID)
	if err != nil {
		return fmt.Errorf("failed to mark upload success: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrReceiptNotFound
	}
	return nil
}

func (r *receiptRepository) IncrementUploadAttempts(ctx context.Context, receiptID uuid.UUID) error {
	query := `UPDATE receipts SET cloudinary_upload_attempts = cloudinary_upload_attempts + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, receiptID)
	if err != nil {
		return fmt.Errorf("failed to increment upload attempts: %w", err)
	}
	return nil
}

func (r *receiptRepository) MarkEmailSuccess(ctx context.Context, receiptID uuid.UUID) error {
	query := `
		UPDATE receipts
		SET email_sent = true, email_sent_at = NOW(),
			email_send_attempts = email_send_attempts + 1, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, receiptID)
	if err != nil {
		return fmt.Errorf("failed to mark email success: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrReceiptNotFound
	}
	return nil
}

func (r *receiptRepository) MarkEmailPermanentFailure(ctx context.Context, receiptID uuid.UUID, reason string) error {
	query := `
		UPDATE receipts
		SET email_permanent_failure = true, email_last_error = $1,
			email_send_attempts = email_send_attempts + 1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.pool.Exec(ctx, query, reason, receiptID)
	if err != nil {
		return fmt.Errorf("failed to mark email permanent failure: %w", err)
	}
	return nil
}

func (r *receiptRepository) IncrementEmailAttempts(ctx context.Context, receiptID uuid.UUID, lastError string) error {
	query := `
		UPDATE receipts
		SET email_send_attempts = email_send_attempts + 1, email_last_error = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.pool.Exec(ctx, query, lastError, receiptID)
	if err != nil {
		return fmt.Errorf("failed to increment email attempts: %w", err)
	}
	return nil
}

// MarkCompletedIfDone is the idempotent §4.7 transition: PENDING -> COMPLETED
// only, and only when all three stage flags already hold.
func (r *receiptRepository) MarkCompletedIfDone(ctx context.Context, receiptID uuid.UUID) error {
	query := `
		UPDATE receipts
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status <> $1
			AND pdf_generated = true AND cloudinary_uploaded = true AND email_sent = true
	`
	_, err := r.pool.Exec(ctx, query, model.ReceiptStatusCompleted, receiptID)
	if err != nil {
		return fmt.Errorf("failed to mark receipt completed: %w", err)
	}
	return nil
}

func (r *receiptRepository) findStuck(ctx context.Context, predicate string, olderThan time.Time, limit int) ([]*model.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE ` + predicate + ` AND created_at < $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck receipts: %w", err)
	}
	defer rows.Close()

	var out []*model.Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// FindStuckRender/Upload/Email deliberately do not filter on attempt count:
// the recovery service needs both retryable rows (requeue) and
// budget-exhausted rows (flag as a critical failure) from the same scan, and
// distinguishes the two with Receipt.CanRetryX/IsXCriticalFailure (§4.6).
func (r *receiptRepository) FindStuckRender(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error) {
	return r.findStuck(ctx, "pdf_generated = false", olderThan, limit)
}

func (r *receiptRepository) FindStuckUpload(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error) {
	return r.findStuck(ctx, "pdf_generated = true AND cloudinary_uploaded = false", olderThan, limit)
}

func (r *receiptRepository) FindStuckEmail(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error) {
	return r.findStuck(ctx, "pdf_generated = true AND email_sent = false AND email_permanent_failure = false", olderThan, limit)
}

// ForceComplete is the operator escape hatch behind AdminReconcileReceipt's
// force_complete action (a FatalError-path unblock, §7).
func (r *receiptRepository) ForceComplete(ctx context.Context, receiptID uuid.UUID) error {
	query := `UPDATE receipts SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.pool.Exec(ctx, query, model.ReceiptStatusCompleted, receiptID)
	if err != nil {
		return fmt.Errorf("failed to force-complete receipt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrReceiptNotFound
	}
	return nil
}
