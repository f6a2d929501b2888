package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptflow/internal/domains/receipt/gateway"
	"receiptflow/internal/domains/receipt/gateway/generic"
	"receiptflow/internal/domains/receipt/gateway/mock"
	"receiptflow/internal/domains/receipt/model"
)

type fakeWebhookLogRepository struct {
	byWebhookID        map[string]*model.WebhookLog
	byID               map[uuid.UUID]*model.WebhookLog
	failedForRetry     []*model.WebhookLog
	expiredCount       int
	processedIDs       []uuid.UUID
	processingErrorIDs []uuid.UUID
}

func newFakeWebhookLogRepository() *fakeWebhookLogRepository {
	return &fakeWebhookLogRepository{
		byWebhookID: make(map[string]*model.WebhookLog),
		byID:        make(map[uuid.UUID]*model.WebhookLog),
	}
}

func (f *fakeWebhookLogRepository) Create(ctx context.Context, wlog *model.WebhookLog) error {
	f.byWebhookID[wlog.WebhookID] = wlog
	f.byID[wlog.ID] = wlog
	return nil
}

func (f *fakeWebhookLogRepository) Exists(ctx context.Context, webhookID string) (bool, error) {
	_, ok := f.byWebhookID[webhookID]
	return ok, nil
}

func (f *fakeWebhookLogRepository) MarkInvalid(ctx context.Context, id uuid.UUID, reason string) error {
	return nil
}
func (f *fakeWebhookLogRepository) MarkProcessed(ctx context.Context, id uuid.UUID, outcome string) error {
	f.processedIDs = append(f.processedIDs, id)
	if wlog, ok := f.byID[id]; ok {
		wlog.MarkProcessed(outcome)
	}
	return nil
}
func (f *fakeWebhookLogRepository) MarkProcessingError(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.processingErrorIDs = append(f.processingErrorIDs, id)
	return nil
}
func (f *fakeWebhookLogRepository) GetFailedForRetry(ctx context.Context, maxAge time.Duration, limit int) ([]*model.WebhookLog, error) {
	return f.failedForRetry, nil
}
func (f *fakeWebhookLogRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	return f.expiredCount, nil
}

type fakeDedupCache struct {
	claimed map[string]bool
}

func newFakeDedupCache() *fakeDedupCache { return &fakeDedupCache{claimed: make(map[string]bool)} }

func (f *fakeDedupCache) SeenWebhook(ctx context.Context, webhookID string) (bool, error) {
	if f.claimed[webhookID] {
		return true, nil
	}
	f.claimed[webhookID] = true
	return false, nil
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newIntakeHarness(order *model.Order) (IntakeService, *fakeWebhookLogRepository, *fakeReceiptRepository, *fakeEnqueuer) {
	webhookRepo := newFakeWebhookLogRepository()
	orderRepo := newFakeOrderRepository(order)
	paymentRepo := newFakePaymentTransactionRepository()
	receiptRepo := newFakeReceiptRepository()
	refundRepo := newFakeRefundRequestRepository()
	enqueuer := &fakeEnqueuer{}

	commitSvc := NewCommitService(orderRepo, paymentRepo, receiptRepo, refundRepo, fakeTxManager{}, enqueuer)

	registry := gateway.NewRegistry(generic.NewParser())
	registry.Register(model.ProviderMock, mock.NewParser())
	registry.Register(model.ProviderGeneric, generic.NewParser())

	secrets := map[string]string{model.ProviderGeneric: "whsec_test"}
	dedup := newFakeDedupCache()

	svc := NewIntakeService(webhookRepo, orderRepo, registry, secrets, dedup, commitSvc)
	return svc, webhookRepo, receiptRepo, enqueuer
}

func genericPayload(transactionID, orderID, status string) []byte {
	return []byte(`{"transaction_id":"` + transactionID + `","order_id":"` + orderID + `","status":"` + status + `","amount":"100","currency":"usd","event_type":"charge"}`)
}

func TestHandleWebhookRejectsInvalidSignature(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(100))
	svc, webhookRepo, _, _ := newIntakeHarness(order)

	payload := genericPayload("txn_sig", order.ID.String(), model.TransactionStatusSucceeded)
	req := model.WebhookRequest{
		Provider:   model.ProviderGeneric,
		WebhookID:  "evt_sig_bad",
		RawPayload: payload,
		Signature:  "deadbeef",
	}

	result, err := svc.HandleWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.ResultTypeInvalidSignature, result.Type)
	assert.False(t, result.Success)

	logged, ok := webhookRepo.byWebhookID["evt_sig_bad"]
	require.True(t, ok, "even a rejected webhook must be logged for audit")
	assert.False(t, logged.SignatureValid)
}

func TestHandleWebhookCommitsOnValidSuccessfulPayment(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(100))
	svc, webhookRepo, receiptRepo, enqueuer := newIntakeHarness(order)

	payload := genericPayload("txn_ok", order.ID.String(), model.TransactionStatusSucceeded)
	req := model.WebhookRequest{
		Provider:   model.ProviderGeneric,
		WebhookID:  "evt_ok",
		RawPayload: payload,
		Signature:  signPayload("whsec_test", payload),
	}

	result, err := svc.HandleWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.ResultTypeProcessed, result.Type)
	assert.True(t, result.Success)

	assert.True(t, webhookRepo.byWebhookID["evt_ok"].Processed)
	assert.Len(t, enqueuer.renderCalls, 1)
	assert.NotEqual(t, uuid.Nil, receiptRepo.byID[enqueuer.renderCalls[0]].ID)
}

func TestHandleWebhookDeduplicatesRepeatedDelivery(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(100))
	svc, _, _, enqueuer := newIntakeHarness(order)

	payload := genericPayload("txn_dup", order.ID.String(), model.TransactionStatusSucceeded)
	req := model.WebhookRequest{
		Provider:   model.ProviderGeneric,
		WebhookID:  "evt_dup",
		RawPayload: payload,
		Signature:  signPayload("whsec_test", payload),
	}

	first, err := svc.HandleWebhook(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, model.ResultTypeProcessed, first.Type)

	second, err := svc.HandleWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.ResultTypeDuplicate, second.Type)

	assert.Len(t, enqueuer.renderCalls, 1, "the cache-level dedup gate must stop a replay before it reaches commit")
}

func TestHandleWebhookMarksOrderFailedOnFailureEvent(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(100))
	svc, _, _, enqueuer := newIntakeHarness(order)

	payload := genericPayload("txn_failed", order.ID.String(), model.TransactionStatusFailed)
	req := model.WebhookRequest{
		Provider:   model.ProviderGeneric,
		WebhookID:  "evt_failed",
		RawPayload: payload,
		Signature:  signPayload("whsec_test", payload),
	}

	result, err := svc.HandleWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.ResultTypePaymentFailed, result.Type)
	assert.Equal(t, model.OrderStatusPaymentFailed, order.Status)
	assert.Empty(t, enqueuer.renderCalls)
}

func TestHandleWebhookBypassesSignatureForMockProvider(t *testing.T) {
	order := newTestOrder(model.OrderStatusPendingPayment, decimal.NewFromInt(100))
	svc, _, _, enqueuer := newIntakeHarness(order)

	payload := genericPayload("txn_mock", order.ID.String(), model.TransactionStatusSucceeded)
	req := model.WebhookRequest{
		Provider:   model.ProviderMock,
		WebhookID:  "evt_mock",
		RawPayload: payload,
		Signature:  "",
	}

	result, err := svc.HandleWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.ResultTypeProcessed, result.Type)
	assert.Len(t, enqueuer.renderCalls, 1)
}
