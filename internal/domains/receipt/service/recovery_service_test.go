package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptflow/internal/domains/receipt/model"
)

func newStuckReceipt(createdAt time.Time) *model.Receipt {
	return &model.Receipt{
		ID:        uuid.New(),
		StoreID:   uuid.New(),
		CreatedAt: createdAt,
	}
}

func TestScanAndRecoverRequeuesWithinRetryBudget(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	enqueuer := &fakeEnqueuer{}

	stuck := newStuckReceipt(time.Now().Add(-model.RenderStuckAfter - time.Minute))
	stuck.PDFGenerationAttempts = 1 // under MaxRenderAttempts, not critical
	receiptRepo.byID[stuck.ID] = stuck

	svc := NewRecoveryService(receiptRepo, enqueuer, 10)
	report, err := svc.ScanAndRecover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.RenderRequeued)
	assert.Equal(t, 0, report.CriticalFailures)
	assert.Equal(t, []uuid.UUID{stuck.ID}, enqueuer.renderCalls)
}

func TestScanAndRecoverFlagsCriticalFailureWithoutRequeue(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	enqueuer := &fakeEnqueuer{}

	stuck := newStuckReceipt(time.Now().Add(-model.RenderCriticalAfter - time.Minute))
	stuck.PDFGenerationAttempts = model.MaxRenderAttempts
	receiptRepo.byID[stuck.ID] = stuck

	svc := NewRecoveryService(receiptRepo, enqueuer, 10)
	report, err := svc.ScanAndRecover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.RenderRequeued, "a critical failure must not also be requeued")
	assert.Equal(t, 1, report.CriticalFailures)
	assert.Empty(t, enqueuer.renderCalls)
}

func TestScanAndRecoverSkipsReceiptsNotYetStuck(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	enqueuer := &fakeEnqueuer{}

	fresh := newStuckReceipt(time.Now())
	receiptRepo.byID[fresh.ID] = fresh

	svc := NewRecoveryService(receiptRepo, enqueuer, 10)
	report, err := svc.ScanAndRecover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.RenderRequeued)
	assert.Empty(t, enqueuer.renderCalls)
}

func TestScanAndRecoverSkipsUploadStageUntilRenderCompletes(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	enqueuer := &fakeEnqueuer{}

	notYetRendered := newStuckReceipt(time.Now().Add(-model.UploadStuckAfter - time.Minute))
	notYetRendered.PDFGenerated = false
	receiptRepo.byID[notYetRendered.ID] = notYetRendered

	svc := NewRecoveryService(receiptRepo, enqueuer, 10)
	report, err := svc.ScanAndRecover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.UploadRequeued, "FindStuckUpload only matches receipts whose render already succeeded")
}

func TestScanAndRecoverDefaultsBatchSizeWhenNonPositive(t *testing.T) {
	svc := NewRecoveryService(newFakeReceiptRepository(), &fakeEnqueuer{}, 0)
	impl, ok := svc.(*recoveryService)
	require.True(t, ok)
	assert.Equal(t, model.RecoveryScanBatchSize, impl.batchSize)
}
