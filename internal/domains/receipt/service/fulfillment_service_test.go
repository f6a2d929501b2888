package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptflow/internal/domains/receipt/model"
)

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) RenderReceipt(data model.ReceiptData) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-fake"), nil
}

type fakeArtifactStore struct {
	uploadErr error
}

func (f *fakeArtifactStore) Upload(ctx context.Context, objectKey string, data []byte, contentType string, tags map[string]string) (string, string, error) {
	if f.uploadErr != nil {
		return "", "", f.uploadErr
	}
	return "public_" + objectKey, "https://storage.example/" + objectKey, nil
}

func (f *fakeArtifactStore) SignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	return "https://storage.example/signed/" + objectKey, nil
}

type fakeMailer struct {
	sendErr error
	sent    int
}

func (f *fakeMailer) SendReceipt(ctx context.Context, to, subject, html, text string, attachment []byte, attachmentName string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent++
	return "msg_1", nil
}

type fakeEmailLogRepository struct{ entries []*model.EmailLog }

func (f *fakeEmailLogRepository) Create(ctx context.Context, log *model.EmailLog) error {
	f.entries = append(f.entries, log)
	return nil
}
func (f *fakeEmailLogRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*model.EmailLog, error) {
	return f.entries, nil
}

type fakeCloudStorageLogRepository struct{ entries []*model.CloudStorageLog }

func (f *fakeCloudStorageLogRepository) Create(ctx context.Context, log *model.CloudStorageLog) error {
	f.entries = append(f.entries, log)
	return nil
}
func (f *fakeCloudStorageLogRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*model.CloudStorageLog, error) {
	return f.entries, nil
}

func newTestReceipt() *model.Receipt {
	return &model.Receipt{
		ID:             uuid.New(),
		ReceiptNumber:  "RCP-2026-000001",
		StoreID:        uuid.New(),
		OrderSnapshot:  []byte(`[]`),
		Amount:         decimal.NewFromInt(20),
		Currency:       "usd",
		EmailRecipient: "buyer@example.com",
		PaidAt:         time.Now(),
		CreatedAt:      time.Now(),
	}
}

func newFulfillmentHarness() (*fulfillmentService, *fakeReceiptRepository, *fakeRenderer, *fakeArtifactStore, *fakeMailer, *fakeEnqueuer) {
	receiptRepo := newFakeReceiptRepository()
	renderer := &fakeRenderer{}
	store := &fakeArtifactStore{}
	mailer := &fakeMailer{}
	enqueuer := &fakeEnqueuer{}

	svc := NewFulfillmentService(
		receiptRepo,
		newFakeOrderRepository(),
		&fakeEmailLogRepository{},
		&fakeCloudStorageLogRepository{},
		renderer,
		store,
		mailer,
		enqueuer,
		time.Hour,
	).(*fulfillmentService)

	return svc, receiptRepo, renderer, store, mailer, enqueuer
}

func TestRenderReceiptMarksSuccessAndEnqueuesUpload(t *testing.T) {
	svc, receiptRepo, _, _, _, enqueuer := newFulfillmentHarness()
	rc := newTestReceipt()
	receiptRepo.byID[rc.ID] = rc

	err := svc.RenderReceipt(context.Background(), rc.ID)
	require.NoError(t, err)

	assert.True(t, rc.PDFGenerated)
	assert.Equal(t, []uuid.UUID{rc.ID}, enqueuer.uploadCalls)
}

func TestRenderReceiptIsANoopOnceAlreadyGenerated(t *testing.T) {
	svc, receiptRepo, renderer, _, _, _ := newFulfillmentHarness()
	rc := newTestReceipt()
	rc.PDFGenerated = true
	receiptRepo.byID[rc.ID] = rc
	renderer.err = errors.New("renderer should not be called")

	err := svc.RenderReceipt(context.Background(), rc.ID)
	assert.NoError(t, err)
}

func TestRenderReceiptIncrementsAttemptsOnFailure(t *testing.T) {
	svc, receiptRepo, renderer, _, _, _ := newFulfillmentHarness()
	rc := newTestReceipt()
	receiptRepo.byID[rc.ID] = rc
	renderer.err = errors.New("disk full")

	err := svc.RenderReceipt(context.Background(), rc.ID)
	assert.Error(t, err)
	assert.Equal(t, 1, rc.PDFGenerationAttempts)
	assert.False(t, rc.PDFGenerated)
}

func TestUploadReceiptRejectsUnrenderedReceipt(t *testing.T) {
	svc, receiptRepo, _, _, _, _ := newFulfillmentHarness()
	rc := newTestReceipt()
	rc.PDFGenerated = false
	receiptRepo.byID[rc.ID] = rc

	err := svc.UploadReceipt(context.Background(), rc.ID)
	assert.ErrorIs(t, err, model.ErrRenderNotComplete)
}

func TestUploadReceiptMarksSuccessAndEnqueuesEmail(t *testing.T) {
	svc, receiptRepo, _, _, _, enqueuer := newFulfillmentHarness()
	rc := newTestReceipt()
	rc.PDFGenerated = true
	receiptRepo.byID[rc.ID] = rc

	err := svc.UploadReceipt(context.Background(), rc.ID)
	require.NoError(t, err)

	assert.True(t, rc.CloudinaryUploaded)
	assert.Equal(t, []uuid.UUID{rc.ID}, enqueuer.emailCalls)
}

func TestUploadReceiptIncrementsAttemptsOnStoreFailure(t *testing.T) {
	svc, receiptRepo, _, store, _, _ := newFulfillmentHarness()
	rc := newTestReceipt()
	rc.PDFGenerated = true
	receiptRepo.byID[rc.ID] = rc
	store.uploadErr = errors.New("bucket unreachable")

	err := svc.UploadReceipt(context.Background(), rc.ID)
	assert.Error(t, err)
	assert.False(t, rc.CloudinaryUploaded)
	assert.Equal(t, 1, rc.CloudinaryUploadAttempts)
}

func TestEmailReceiptMarksSuccessAndCompletesReceipt(t *testing.T) {
	svc, receiptRepo, _, _, mailer, _ := newFulfillmentHarness()
	rc := newTestReceipt()
	rc.PDFGenerated = true
	rc.CloudinaryUploaded = true
	receiptRepo.byID[rc.ID] = rc

	err := svc.EmailReceipt(context.Background(), rc.ID)
	require.NoError(t, err)

	assert.True(t, rc.EmailSent)
	assert.Equal(t, 1, mailer.sent)
	assert.Equal(t, model.ReceiptStatusCompleted, rc.Status, "the third stage flipping must complete the receipt")
}

func TestEmailReceiptPermanentlyFailsOnInvalidAddress(t *testing.T) {
	svc, receiptRepo, _, _, mailer, _ := newFulfillmentHarness()
	rc := newTestReceipt()
	rc.PDFGenerated = true
	receiptRepo.byID[rc.ID] = rc
	mailer.sendErr = errors.New("550 no such user here")

	err := svc.EmailReceipt(context.Background(), rc.ID)
	require.NoError(t, err, "a permanent failure is absorbed, not surfaced as a retryable job error")
	assert.True(t, rc.EmailPermanentFailure)
	assert.False(t, rc.EmailSent)
}

func TestEmailReceiptRetriesOnTransientServerError(t *testing.T) {
	svc, receiptRepo, _, _, mailer, _ := newFulfillmentHarness()
	rc := newTestReceipt()
	rc.PDFGenerated = true
	receiptRepo.byID[rc.ID] = rc
	mailer.sendErr = errors.New("421 server error, try again later")

	err := svc.EmailReceipt(context.Background(), rc.ID)
	assert.Error(t, err, "a transient failure must surface so asynq retries the job")
	assert.False(t, rc.EmailPermanentFailure)
	assert.Equal(t, 1, rc.EmailSendAttempts)
}

func TestMarkCompletedIfDoneIsIdempotent(t *testing.T) {
	receiptRepo := newFakeReceiptRepository()
	rc := newTestReceipt()
	rc.PDFGenerated = true
	rc.CloudinaryUploaded = true
	rc.EmailSent = true
	receiptRepo.byID[rc.ID] = rc

	require.NoError(t, receiptRepo.MarkCompletedIfDone(context.Background(), rc.ID))
	assert.Equal(t, model.ReceiptStatusCompleted, rc.Status)

	// Calling it again once already completed must not error or change state.
	require.NoError(t, receiptRepo.MarkCompletedIfDone(context.Background(), rc.ID))
	assert.Equal(t, model.ReceiptStatusCompleted, rc.Status)
}
