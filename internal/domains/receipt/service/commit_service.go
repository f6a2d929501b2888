package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/repository"
)

// commitService implements CommitService, grounded on the teacher's
// handleSuccessfulPayment/handleFailedPayment pair in payment_service.go:
// validate the order outside the transaction, then re-validate with a row
// lock inside it before committing (§4.2).
type commitService struct {
	orderRepo       repository.OrderRepository
	paymentRepo     repository.PaymentTransactionRepository
	receiptRepo     repository.ReceiptRepository
	refundRepo      repository.RefundRequestRepository
	txManager       repository.TransactionManager
	enqueuer        Enqueuer
}

func NewCommitService(
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentTransactionRepository,
	receiptRepo repository.ReceiptRepository,
	refundRepo repository.RefundRequestRepository,
	txManager repository.TransactionManager,
	enqueuer Enqueuer,
) CommitService {
	return &commitService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		receiptRepo: receiptRepo,
		refundRepo:  refundRepo,
		txManager:   txManager,
		enqueuer:    enqueuer,
	}
}

// CommitPayment runs §4.2's algorithm: idempotency check, order re-read
// under FOR UPDATE, amount verification, payment+order+receipt writes in
// one serializable transaction, then a post-commit enqueue.
func (s *commitService) CommitPayment(ctx context.Context, req model.CommitRequest) (model.CommitResult, error) {
	// Step 0: idempotency — a transaction_id already holding a receipt means
	// a previous delivery of this same event already committed it.
	if existing, err := s.receiptRepo.GetByTransactionID(ctx, req.TransactionID); err == nil && existing != nil {
		return model.CommitResult{Outcome: model.CommitOutcomeAlreadyProcessed, ReceiptID: existing.ID}, nil
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return model.CommitResult{}, model.NewOrderNotFoundError(req.OrderID.String())
	}

	if order.IsCancelled() {
		// The order was cancelled after payment was initiated with the
		// provider; money moved but the order can't be fulfilled. Open a
		// refund request instead of failing the webhook outright (§9).
		if err := s.openRefundRequest(ctx, req, order); err != nil {
			return model.CommitResult{}, err
		}
		return model.CommitResult{Outcome: model.CommitOutcomeRefundRequired}, model.NewRefundRequiredError(order.ID.String())
	}

	var receiptID uuid.UUID
	var commitErr error

	for attempt := 0; attempt < model.MaxReceiptNumberRetries; attempt++ {
		receiptID, commitErr = s.tryCommit(ctx, req, order)
		if commitErr == nil {
			break
		}
		if !errors.Is(commitErr, model.ErrReceiptAlreadyExists) {
			break
		}
		// Another delivery of the same webhook won the race on
		// transaction_id; treat as already processed rather than retry.
		if existing, getErr := s.receiptRepo.GetByTransactionID(ctx, req.TransactionID); getErr == nil && existing != nil {
			return model.CommitResult{Outcome: model.CommitOutcomeAlreadyProcessed, ReceiptID: existing.ID}, nil
		}
	}

	if commitErr != nil {
		return model.CommitResult{}, commitErr
	}

	if err := s.enqueuer.EnqueueRender(ctx, receiptID, false); err != nil {
		// The commit already happened; the recovery sweep will pick this
		// receipt up if the enqueue itself failed (§4.6).
		log.Error().Err(err).Str("receipt_id", receiptID.String()).Msg("failed to enqueue receipt render job after commit")
	}

	return model.CommitResult{Outcome: model.CommitOutcomeCreated, ReceiptID: receiptID}, nil
}

// openRefundRequest records the supplemented refund bookkeeping feature:
// a payment succeeded against an order the store already cancelled.
func (s *commitService) openRefundRequest(ctx context.Context, req model.CommitRequest, order *model.Order) error {
	if existing, err := s.refundRepo.GetByOrderID(ctx, order.ID); err == nil && existing != nil {
		return nil
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin refund tx: %w", err)
	}
	defer func() {
		_ = s.txManager.RollbackTx(ctx, tx)
	}()

	now := time.Now()
	refund := &model.RefundRequest{
		ID:              uuid.New(),
		OrderID:         order.ID,
		TransactionID:   req.TransactionID,
		RequestedAmount: req.Amount,
		Reason:          "payment succeeded for a cancelled order",
		Status:          model.RefundStatusPending,
		RequestedAt:     now,
		UpdatedAt:       now,
	}
	if err := s.refundRepo.CreateWithTx(ctx, tx, refund); err != nil {
		return fmt.Errorf("create refund request: %w", err)
	}

	return s.txManager.CommitTx(ctx, tx)
}

// tryCommit runs one attempt of the commit transaction. A unique_violation
// on receipts.receipt_number surfaces as model.ErrReceiptAlreadyExists from
// the repository and is retried with a re-counted number by the caller.
func (s *commitService) tryCommit(ctx context.Context, req model.CommitRequest, order *model.Order) (uuid.UUID, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() {
		_ = s.txManager.RollbackTx(ctx, tx)
	}()

	lockedOrder, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, req.OrderID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lock order: %w", err)
	}
	if lockedOrder.IsPaid() {
		return uuid.Nil, model.NewOrderAlreadyPaidError(lockedOrder.ID.String())
	}
	if lockedOrder.IsCancelled() {
		return uuid.Nil, model.NewRefundRequiredError(lockedOrder.ID.String())
	}
	if !lockedOrder.Total.Equal(req.Amount) {
		return uuid.Nil, model.NewAmountMismatchError(lockedOrder.Total.String(), req.Amount.String())
	}

	now := time.Now()
	payment := &model.PaymentTransaction{
		ID:            uuid.New(),
		TransactionID: req.TransactionID,
		OrderID:       lockedOrder.ID,
		UserID:        lockedOrder.UserID,
		StoreID:       lockedOrder.StoreID,
		Provider:      req.Provider,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        model.TransactionStatusSucceeded,
		WebhookLogID:  req.WebhookLogID,
		SucceededAt:   &now,
		CreatedAt:     now,
	}
	if err := s.paymentRepo.CreateWithTx(ctx, tx, payment); err != nil {
		return uuid.Nil, err
	}

	if err := s.orderRepo.MarkPaidWithTx(ctx, tx, lockedOrder.ID, now); err != nil {
		return uuid.Nil, fmt.Errorf("mark order paid: %w", err)
	}

	receiptNumber, err := s.allocateReceiptNumber(ctx, tx, lockedOrder.StoreID, now.Year())
	if err != nil {
		return uuid.Nil, err
	}

	snapshot, err := lockedOrder.Freeze()
	if err != nil {
		return uuid.Nil, fmt.Errorf("freeze order snapshot: %w", err)
	}

	receipt := &model.Receipt{
		ID:            uuid.New(),
		ReceiptNumber: receiptNumber,
		OrderID:       lockedOrder.ID,
		TransactionID: req.TransactionID,
		UserID:        lockedOrder.UserID,
		StoreID:       lockedOrder.StoreID,
		OrderSnapshot: snapshot,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        model.ReceiptStatusPending,
		PaidAt:        now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.receiptRepo.CreateWithTx(ctx, tx, receipt); err != nil {
		return uuid.Nil, err
	}

	if err := s.txManager.CommitTx(ctx, tx); err != nil {
		return uuid.Nil, fmt.Errorf("commit tx: %w", err)
	}

	return receipt.ID, nil
}

// allocateReceiptNumber formats RCP-YYYY-NNNNNN from the current row count
// for (store, year); a unique_violation on insert bubbles back up to
// tryCommit's caller for a fresh count-and-retry (§9).
func (s *commitService) allocateReceiptNumber(ctx context.Context, tx pgx.Tx, storeID uuid.UUID, year int) (string, error) {
	count, err := s.receiptRepo.CountByStoreYearWithTx(ctx, tx, storeID, year)
	if err != nil {
		return "", fmt.Errorf("count receipts for numbering: %w", err)
	}
	return fmt.Sprintf("RCP-%d-%06d", year, count+1), nil
}
