package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptflow/internal/domains/receipt/model"
)

func newTestOrder(status string, total decimal.Decimal) *model.Order {
	return &model.Order{
		ID:      uuid.New(),
		StoreID: uuid.New(),
		UserID:  uuid.New(),
		Items:   []byte(`[{"sku":"abc","qty":1}]`),
		Total:   total,
		Status:  status,
	}
}

func newCommitServiceHarness(order *model.Order) (CommitService, *fakeReceiptRepository, *fakeEnqueuer) {
	orderRepo := newFakeOrderRepository(order)
	paymentRepo := newFakePaymentTransactionRepository()
	receiptRepo := newFakeReceiptRepository()
	refundRepo := newFakeRefundRequestRepository()
	enqueuer := &fakeEnqueuer{}

	svc := NewCommitService(orderRepo, paymentRepo, receiptRepo, refundRepo, fakeTxManager{}, enqueuer)
	return svc, receiptRepo, enqueuer
}

func TestCommitPaymentCreatesReceiptAndEnqueuesRender(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(100))
	svc, receiptRepo, enqueuer := newCommitServiceHarness(order)

	req := model.CommitRequest{
		OrderID:       order.ID,
		TransactionID: "txn_1",
		Provider:      model.ProviderMock,
		Amount:        decimal.NewFromInt(100),
		Currency:      "usd",
		WebhookLogID:  uuid.New(),
	}

	result, err := svc.CommitPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.CommitOutcomeCreated, result.Outcome)
	assert.NotEqual(t, uuid.Nil, result.ReceiptID)

	rc, err := receiptRepo.GetByID(context.Background(), result.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusPending, rc.Status)
	assert.Equal(t, "txn_1", rc.TransactionID)

	assert.Equal(t, []uuid.UUID{result.ReceiptID}, enqueuer.renderCalls, "render job must be enqueued exactly once after commit")
}

func TestCommitPaymentIsIdempotentOnDuplicateWebhookDelivery(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(50))
	svc, _, enqueuer := newCommitServiceHarness(order)

	req := model.CommitRequest{
		OrderID:       order.ID,
		TransactionID: "txn_dup",
		Provider:      model.ProviderMock,
		Amount:        decimal.NewFromInt(50),
		Currency:      "usd",
		WebhookLogID:  uuid.New(),
	}

	first, err := svc.CommitPayment(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, model.CommitOutcomeCreated, first.Outcome)

	second, err := svc.CommitPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.CommitOutcomeAlreadyProcessed, second.Outcome)
	assert.Equal(t, first.ReceiptID, second.ReceiptID)

	assert.Len(t, enqueuer.renderCalls, 1, "a replayed webhook must not enqueue a second render job")
}

func TestCommitPaymentRejectsAmountMismatch(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(100))
	svc, _, enqueuer := newCommitServiceHarness(order)

	req := model.CommitRequest{
		OrderID:       order.ID,
		TransactionID: "txn_bad_amount",
		Provider:      model.ProviderMock,
		Amount:        decimal.NewFromInt(1), // attacker-controlled mismatch
		Currency:      "usd",
		WebhookLogID:  uuid.New(),
	}

	_, err := svc.CommitPayment(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrAmountMismatch)
	assert.Empty(t, enqueuer.renderCalls, "a rejected commit must never enqueue fulfillment work")
}

func TestCommitPaymentOpensRefundRequestForCancelledOrder(t *testing.T) {
	order := newTestOrder(model.OrderStatusCancelled, decimal.NewFromInt(75))
	svc, _, enqueuer := newCommitServiceHarness(order)

	req := model.CommitRequest{
		OrderID:       order.ID,
		TransactionID: "txn_cancelled",
		Provider:      model.ProviderMock,
		Amount:        decimal.NewFromInt(75),
		Currency:      "usd",
		WebhookLogID:  uuid.New(),
	}

	result, err := svc.CommitPayment(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrRefundRequired)
	assert.Equal(t, model.CommitOutcomeRefundRequired, result.Outcome)
	assert.Empty(t, enqueuer.renderCalls)
}

func TestCommitPaymentRetriesReceiptNumberOnCollision(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(30))
	orderRepo := newFakeOrderRepository(order)
	paymentRepo := newFakePaymentTransactionRepository()
	receiptRepo := newFakeReceiptRepository()
	refundRepo := newFakeRefundRequestRepository()
	enqueuer := &fakeEnqueuer{}

	// Simulate another committer having already taken the next receipt
	// number for this store/year: the first CreateWithTx call collides,
	// and allocateReceiptNumber must be retried with a fresh count.
	receiptRepo.failNextCreate = true

	svc := NewCommitService(orderRepo, paymentRepo, receiptRepo, refundRepo, fakeTxManager{}, enqueuer)

	req := model.CommitRequest{
		OrderID:       order.ID,
		TransactionID: "txn_retry",
		Provider:      model.ProviderMock,
		Amount:        decimal.NewFromInt(30),
		Currency:      "usd",
		WebhookLogID:  uuid.New(),
	}

	result, err := svc.CommitPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.CommitOutcomeCreated, result.Outcome)
}

func TestCommitPaymentRejectsAlreadyPaidOrder(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(10))
	paidAt := time.Now()
	order.PaidAt = &paidAt

	orderRepo := newFakeOrderRepository(order)
	// A concurrent commit already flipped the order to PAID by the time
	// GetByIDForUpdateWithTx re-reads it under lock.
	order.Status = model.OrderStatusPaid

	svc := NewCommitService(
		orderRepo,
		newFakePaymentTransactionRepository(),
		newFakeReceiptRepository(),
		newFakeRefundRequestRepository(),
		fakeTxManager{},
		&fakeEnqueuer{},
	)

	req := model.CommitRequest{
		OrderID:       order.ID,
		TransactionID: "txn_already_paid",
		Provider:      model.ProviderMock,
		Amount:        decimal.NewFromInt(10),
		Currency:      "usd",
		WebhookLogID:  uuid.New(),
	}

	_, err := svc.CommitPayment(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrOrderAlreadyPaid)
}
