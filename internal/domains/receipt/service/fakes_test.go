package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"receiptflow/internal/domains/receipt/model"
)

// fakeOrderRepository, fakeReceiptRepository, etc. are minimal in-memory
// stand-ins for the pgx-backed repositories, grounded on the same
// interfaces the real repositories implement (repository/interface.go).
//
// Every *WithTx method stages its mutation on the fakeTx it's given instead
// of applying it immediately, and fakeTxManager.CommitTx/RollbackTx decide
// whether the staged mutations ever take effect — mirroring real Postgres,
// where a rolled-back INSERT never becomes visible even though the
// statement itself ran without error.

// fakeTx embeds the pgx.Tx interface (always nil) purely so *fakeTx
// satisfies pgx.Tx; repositories only ever type-assert it back to *fakeTx
// to reach pending, never call a promoted method on the nil interface.
type fakeTx struct {
	pgx.Tx
	pending []func()
}

type fakeTxManager struct{}

func (fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

func (fakeTxManager) CommitTx(ctx context.Context, tx pgx.Tx) error {
	ftx := tx.(*fakeTx)
	for _, op := range ftx.pending {
		op()
	}
	ftx.pending = nil
	return nil
}

func (fakeTxManager) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	tx.(*fakeTx).pending = nil
	return nil
}

type fakeOrderRepository struct {
	orders map[uuid.UUID]*model.Order
}

func newFakeOrderRepository(orders ...*model.Order) *fakeOrderRepository {
	m := make(map[uuid.UUID]*model.Order)
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeOrderRepository{orders: m}
}

func (f *fakeOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrderRepository) GetByIDForUpdateWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeOrderRepository) MarkPaidWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error {
	o, ok := f.orders[id]
	if !ok {
		return model.ErrOrderNotFound
	}
	ftx := tx.(*fakeTx)
	ftx.pending = append(ftx.pending, func() {
		o.Status = model.OrderStatusPaid
		o.PaidAt = &paidAt
	})
	return nil
}

func (f *fakeOrderRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	o, ok := f.orders[id]
	if !ok {
		return model.ErrOrderNotFound
	}
	o.Status = model.OrderStatusPaymentFailed
	return nil
}

type fakePaymentTransactionRepository struct {
	byTransactionID map[string]*model.PaymentTransaction
}

func newFakePaymentTransactionRepository() *fakePaymentTransactionRepository {
	return &fakePaymentTransactionRepository{byTransactionID: make(map[string]*model.PaymentTransaction)}
}

func (f *fakePaymentTransactionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, p *model.PaymentTransaction) error {
	if _, exists := f.byTransactionID[p.TransactionID]; exists {
		return model.ErrReceiptAlreadyExists
	}
	ftx := tx.(*fakeTx)
	ftx.pending = append(ftx.pending, func() {
		f.byTransactionID[p.TransactionID] = p
	})
	return nil
}

func (f *fakePaymentTransactionRepository) Create(ctx context.Context, p *model.PaymentTransaction) error {
	if _, exists := f.byTransactionID[p.TransactionID]; exists {
		return model.ErrReceiptAlreadyExists
	}
	f.byTransactionID[p.TransactionID] = p
	return nil
}

func (f *fakePaymentTransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.PaymentTransaction, error) {
	return f.byTransactionID[transactionID], nil
}

type fakeReceiptRepository struct {
	byID            map[uuid.UUID]*model.Receipt
	byTransactionID map[string]*model.Receipt
	receiptNumbers  map[string]bool // "storeID:number" pairs already committed
	failNextCreate  bool
}

func newFakeReceiptRepository() *fakeReceiptRepository {
	return &fakeReceiptRepository{
		byID:            make(map[uuid.UUID]*model.Receipt),
		byTransactionID: make(map[string]*model.Receipt),
		receiptNumbers:  make(map[string]bool),
	}
}

func (f *fakeReceiptRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, rc *model.Receipt) error {
	if f.failNextCreate {
		f.failNextCreate = false
		return model.ErrReceiptAlreadyExists
	}
	key := rc.StoreID.String() + ":" + rc.ReceiptNumber
	if f.receiptNumbers[key] {
		return model.ErrReceiptAlreadyExists
	}
	if _, exists := f.byTransactionID[rc.TransactionID]; exists {
		return model.ErrReceiptAlreadyExists
	}
	ftx := tx.(*fakeTx)
	ftx.pending = append(ftx.pending, func() {
		f.receiptNumbers[key] = true
		f.byID[rc.ID] = rc
		f.byTransactionID[rc.TransactionID] = rc
	})
	return nil
}

func (f *fakeReceiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	rc, ok := f.byID[id]
	if !ok {
		return nil, model.ErrReceiptNotFound
	}
	return rc, nil
}

func (f *fakeReceiptRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.Receipt, error) {
	return f.byTransactionID[transactionID], nil
}

func (f *fakeReceiptRepository) CountByStoreYearWithTx(ctx context.Context, tx pgx.Tx, storeID uuid.UUID, year int) (int, error) {
	count := 0
	prefix := storeID.String() + ":"
	for key := range f.receiptNumbers {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			count++
		}
	}
	return count, nil
}

func (f *fakeReceiptRepository) MarkRenderAttemptWithTx(ctx context.Context, receiptID uuid.UUID, localPath string, sizeBytes int64) error {
	rc, ok := f.byID[receiptID]
	if !ok {
		return model.ErrReceiptNotFound
	}
	rc.PDFGenerated = true
	rc.PDFGenerationAttempts++
	return nil
}

func (f *fakeReceiptRepository) IncrementRenderAttempts(ctx context.Context, receiptID uuid.UUID) error {
	if rc, ok := f.byID[receiptID]; ok {
		rc.PDFGenerationAttempts++
	}
	return nil
}

func (f *fakeReceiptRepository) MarkUploadSuccess(ctx context.Context, receiptID uuid.UUID, publicID, secureURL, signedURL string, signedURLExpiresAt time.Time) error {
	rc, ok := f.byID[receiptID]
	if !ok {
		return model.ErrReceiptNotFound
	}
	rc.CloudinaryUploaded = true
	rc.CloudinaryUploadAttempts++
	return nil
}

func (f *fakeReceiptRepository) IncrementUploadAttempts(ctx context.Context, receiptID uuid.UUID) error {
	if rc, ok := f.byID[receiptID]; ok {
		rc.CloudinaryUploadAttempts++
	}
	return nil
}

func (f *fakeReceiptRepository) MarkEmailSuccess(ctx context.Context, receiptID uuid.UUID) error {
	rc, ok := f.byID[receiptID]
	if !ok {
		return model.ErrReceiptNotFound
	}
	rc.EmailSent = true
	rc.EmailSendAttempts++
	return nil
}

func (f *fakeReceiptRepository) MarkEmailPermanentFailure(ctx context.Context, receiptID uuid.UUID, reason string) error {
	if rc, ok := f.byID[receiptID]; ok {
		rc.EmailPermanentFailure = true
		rc.EmailLastError = &reason
	}
	return nil
}

func (f *fakeReceiptRepository) IncrementEmailAttempts(ctx context.Context, receiptID uuid.UUID, lastError string) error {
	if rc, ok := f.byID[receiptID]; ok {
		rc.EmailSendAttempts++
		rc.EmailLastError = &lastError
	}
	return nil
}

func (f *fakeReceiptRepository) MarkCompletedIfDone(ctx context.Context, receiptID uuid.UUID) error {
	rc, ok := f.byID[receiptID]
	if !ok {
		return model.ErrReceiptNotFound
	}
	if rc.IsComplete() {
		rc.Status = model.ReceiptStatusCompleted
	}
	return nil
}

func (f *fakeReceiptRepository) FindStuckRender(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error) {
	return f.findStuck(func(rc *model.Receipt) bool { return !rc.PDFGenerated }, olderThan, limit), nil
}

func (f *fakeReceiptRepository) FindStuckUpload(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error) {
	return f.findStuck(func(rc *model.Receipt) bool { return rc.PDFGenerated && !rc.CloudinaryUploaded }, olderThan, limit), nil
}

func (f *fakeReceiptRepository) FindStuckEmail(ctx context.Context, olderThan time.Time, limit int) ([]*model.Receipt, error) {
	return f.findStuck(func(rc *model.Receipt) bool {
		return rc.PDFGenerated && !rc.EmailSent && !rc.EmailPermanentFailure
	}, olderThan, limit), nil
}

func (f *fakeReceiptRepository) findStuck(pred func(*model.Receipt) bool, olderThan time.Time, limit int) []*model.Receipt {
	var out []*model.Receipt
	for _, rc := range f.byID {
		if pred(rc) && rc.CreatedAt.Before(olderThan) {
			out = append(out, rc)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

func (f *fakeReceiptRepository) ForceComplete(ctx context.Context, receiptID uuid.UUID) error {
	rc, ok := f.byID[receiptID]
	if !ok {
		return model.ErrReceiptNotFound
	}
	rc.Status = model.ReceiptStatusCompleted
	return nil
}

type fakeRefundRequestRepository struct {
	byOrderID map[uuid.UUID]*model.RefundRequest
}

func newFakeRefundRequestRepository() *fakeRefundRequestRepository {
	return &fakeRefundRequestRepository{byOrderID: make(map[uuid.UUID]*model.RefundRequest)}
}

func (f *fakeRefundRequestRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, refund *model.RefundRequest) error {
	ftx := tx.(*fakeTx)
	ftx.pending = append(ftx.pending, func() {
		f.byOrderID[refund.OrderID] = refund
	})
	return nil
}

func (f *fakeRefundRequestRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.RefundRequest, error) {
	return f.byOrderID[orderID], nil
}

type fakeEnqueuer struct {
	renderCalls    []uuid.UUID
	renderRecovery []bool
	uploadCalls    []uuid.UUID
	emailCalls     []uuid.UUID
}

func (f *fakeEnqueuer) EnqueueRender(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error {
	f.renderCalls = append(f.renderCalls, receiptID)
	f.renderRecovery = append(f.renderRecovery, isRecovery)
	return nil
}
func (f *fakeEnqueuer) EnqueueUpload(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error {
	f.uploadCalls = append(f.uploadCalls, receiptID)
	return nil
}
func (f *fakeEnqueuer) EnqueueEmail(ctx context.Context, receiptID uuid.UUID, isRecovery bool) error {
	f.emailCalls = append(f.emailCalls, receiptID)
	return nil
}
