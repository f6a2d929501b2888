package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptflow/internal/domains/receipt/model"
)

func TestReconcileReceiptForceCompletesRegardlessOfStageFlags(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	rc := newTestReceipt()
	receiptRepo.byID[rc.ID] = rc
	svc := NewReconcileService(receiptRepo, &fakeEnqueuer{})

	err := svc.ReconcileReceipt(context.Background(), uuid.New(), rc.ID, model.ReconcileReceiptRequest{Action: "force_complete"})
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusCompleted, rc.Status)
}

func TestReconcileReceiptRetryRenderEnqueuesAsRecovery(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	rc := newTestReceipt()
	receiptRepo.byID[rc.ID] = rc
	enqueuer := &fakeEnqueuer{}
	svc := NewReconcileService(receiptRepo, enqueuer)

	err := svc.ReconcileReceipt(context.Background(), uuid.New(), rc.ID, model.ReconcileReceiptRequest{Action: "retry_render"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{rc.ID}, enqueuer.renderCalls)
	assert.Equal(t, []bool{true}, enqueuer.renderRecovery)
}

func TestReconcileReceiptRetryUploadRejectsUnrenderedReceipt(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	rc := newTestReceipt()
	rc.PDFGenerated = false
	receiptRepo.byID[rc.ID] = rc
	svc := NewReconcileService(receiptRepo, &fakeEnqueuer{})

	err := svc.ReconcileReceipt(context.Background(), uuid.New(), rc.ID, model.ReconcileReceiptRequest{Action: "retry_upload"})
	assert.ErrorIs(t, err, model.ErrRenderNotComplete)
}

func TestReconcileReceiptRejectsUnknownAction(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	rc := newTestReceipt()
	receiptRepo.byID[rc.ID] = rc
	svc := NewReconcileService(receiptRepo, &fakeEnqueuer{})

	err := svc.ReconcileReceipt(context.Background(), uuid.New(), rc.ID, model.ReconcileReceiptRequest{Action: "launch_rocket"})
	assert.Error(t, err)
}

func TestReconcileReceiptRejectsUnknownReceipt(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	svc := NewReconcileService(receiptRepo, &fakeEnqueuer{})

	err := svc.ReconcileReceipt(context.Background(), uuid.New(), uuid.New(), model.ReconcileReceiptRequest{Action: "force_complete"})
	assert.ErrorIs(t, err, model.ErrReceiptNotFound)
}
