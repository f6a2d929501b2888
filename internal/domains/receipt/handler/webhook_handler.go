package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/service"
)

// WebhookHandler exposes the single payment-provider webhook intake
// endpoint. Unlike the teacher's per-provider VNPayWebhook/MomoWebhook
// pair, one route serves every provider since payload normalization moved
// into the gateway registry (§9's tagged-union redesign).
type WebhookHandler struct {
	intake service.IntakeService
}

func NewWebhookHandler(intake service.IntakeService) *WebhookHandler {
	return &WebhookHandler{intake: intake}
}

// HandlePaymentWebhook always answers 200 so the provider does not retry a
// request we have already durably logged (§4.1 step 7, §6).
// POST /api/v1/webhooks/payment/:provider
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	rawPayload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, model.ValidationFailedResult("could not read request body"))
		return
	}

	req := model.WebhookRequest{
		Provider:   provider,
		WebhookID:  c.GetHeader("x-webhook-id"),
		RawPayload: rawPayload,
		Signature:  c.GetHeader("x-signature"),
	}
	if req.WebhookID == "" {
		req.WebhookID = c.Query("webhook_id")
	}
	if req.WebhookID == "" {
		req.WebhookID = synthesizeWebhookID()
	}

	result, err := h.intake.HandleWebhook(c.Request.Context(), req)
	if err != nil {
		// Processing failed after the webhook was durably logged; the
		// retry sweep will pick it back up, so still acknowledge receipt.
		c.JSON(http.StatusOK, model.WebhookResult{Success: false, Type: "internal_error", Message: "processing deferred to retry"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// synthesizeWebhookID covers providers that omit x-webhook-id entirely; the
// random suffix keeps two headerless deliveries from colliding on the
// webhook_logs unique constraint the way a shared timestamp alone would.
func synthesizeWebhookID() string {
	suffix := make([]byte, 8)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("webhook_%d_%s", time.Now().UnixNano(), hex.EncodeToString(suffix))
}

// mapReceiptError is shared by the admin handler below.
func mapReceiptError(err error) (statusCode int, errorCode string) {
	statusCode = http.StatusInternalServerError
	errorCode = "INTERNAL_ERROR"

	if receiptErr, ok := err.(*model.ReceiptError); ok {
		errorCode = receiptErr.Code
		switch receiptErr.Code {
		case model.ErrCodeReceiptNotFound, model.ErrCodeOrderNotFound:
			statusCode = http.StatusNotFound
		case model.ErrCodeOrderAlreadyPaid, model.ErrCodeWebhookAlreadyHandled, model.ErrCodeReceiptAlreadyExists:
			statusCode = http.StatusConflict
		case model.ErrCodeAmountMismatch, model.ErrCodeOrderCancelled, model.ErrCodeRenderNotComplete:
			statusCode = http.StatusBadRequest
		case model.ErrCodeInvalidSignature:
			statusCode = http.StatusUnauthorized
		default:
			statusCode = http.StatusInternalServerError
		}
	}
	return statusCode, errorCode
}
