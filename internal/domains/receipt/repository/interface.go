package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"receiptflow/internal/domains/receipt/model"
)

// =====================================================
// ORDER REPOSITORY INTERFACE
// =====================================================
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByIDForUpdateWithTx re-reads the order inside the commit
	// transaction with a row lock, closing the TOCTOU window (§4.2 step 1).
	GetByIDForUpdateWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	MarkPaidWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) error
}

// =====================================================
// PAYMENT TRANSACTION REPOSITORY INTERFACE
// =====================================================
type PaymentTransactionRepository interface {
	// CreateWithTx inserts a payment transaction inside the commit
	// transaction; a unique_violation on transaction_id means another
	// committer already won the race (§4.2 step 2).
	CreateWithTx(ctx context.Context, tx pgx.Tx, payment *model.PaymentTransaction) error
	Create(ctx context.Context, payment *model.PaymentTransaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*model.PaymentTransaction, error)
}

// =====================================================
// RECEIPT REPOSITORY INTERFACE
// =====================================================
type ReceiptRepository interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, receipt *model.Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Receipt, error)

	// CountByStoreYearWithTx powers receipt number allocation (§4.2 step 4).
	CountByStoreYearWithTx(ctx context.Context, tx pgx.Tx, storeID uuid.UUID, year int) (int, error)

	MarkRenderAttemptWithTx(ctx context.Context, receiptID uuid.UUID, localPath string, sizeBytes int64) error
	IncrementRenderAttempts(ctx context.Context, receiptID uuid.UUID) error

	MarkUploadSuccess(ctx context.Context, receiptID uuid.UUID, publicID, secureURL, signedURL string, signedURLExpiresAt time.Time) error
	IncrementUploadAttempts(ctx context.Context, receiptID uuid.UUID) error

	MarkEmailSuccess(ctx context.Context, receiptID uuid.UUID) error
	MarkEmailPermanentFailure(ctx context.Context, receiptID uuid.UUID, reason string) error
	IncrementEmailAttempts(ctx context.Context, receiptID uuid.UUID, lastError string) error

	// MarkCompletedIfDone implements §4.7: flips status to COMPLETED only
	// when all three stage flags are true, idempotently.
	MarkCompletedIfDone(ctx context.Context, receiptID uuid.UUID) error

	// Recovery queries (§4.6), each bounded to `limit` rows.
	FindStuckRender(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error)
	FindStuckUpload(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error)
	FindStuckEmail(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error)

	ForceComplete(ctx context.Context, receiptID uuid.UUID) error
}

// =====================================================
// WEBHOOK LOG REPOSITORY INTERFACE
// =====================================================
type WebhookLogRepository interface {
	Create(ctx context.Context, log *model.WebhookLog) error

	// Exists is the dedup gate of §4.1 step 4.
	Exists(ctx context.Context, webhookID string) (bool, error)

	MarkInvalid(ctx context.Context, id uuid.UUID, reason string) error
	MarkProcessed(ctx context.Context, id uuid.UUID, outcome string) error
	MarkProcessingError(ctx context.Context, id uuid.UUID, errMsg string) error

	GetFailedForRetry(ctx context.Context, maxAge time.Duration, limit int) ([]*model.WebhookLog, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// =====================================================
// JOB LOG REPOSITORY INTERFACE
// =====================================================
type JobLogRepository interface {
	Create(ctx context.Context, log *model.JobLog) error
	MarkCompleted(ctx context.Context, jobID string, result []byte) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

// =====================================================
// EMAIL LOG / CLOUD STORAGE LOG REPOSITORY INTERFACES
// =====================================================
type EmailLogRepository interface {
	Create(ctx context.Context, log *model.EmailLog) error
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*model.EmailLog, error)
}

type CloudStorageLogRepository interface {
	Create(ctx context.Context, log *model.CloudStorageLog) error
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*model.CloudStorageLog, error)
}

// =====================================================
// REFUND REQUEST REPOSITORY INTERFACE
// =====================================================
type RefundRequestRepository interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, refund *model.RefundRequest) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.RefundRequest, error)
}

// =====================================================
// TRANSACTION MANAGER
// =====================================================
type TransactionManager interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
