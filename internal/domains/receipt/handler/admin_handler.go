package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/repository"
	"receiptflow/internal/domains/receipt/service"
	res "receiptflow/internal/shared/response"
)

// AdminHandler exposes the operator escape hatches adapted from the
// teacher's AdminReconcilePayment, plus an audit export the teacher never
// had (this domain's JobLog/EmailLog/CloudStorageLog rows are new).
type AdminHandler struct {
	reconcile    service.ReconcileService
	emailLogs    repository.EmailLogRepository
	cloudLogs    repository.CloudStorageLogRepository
}

func NewAdminHandler(reconcile service.ReconcileService, emailLogs repository.EmailLogRepository, cloudLogs repository.CloudStorageLogRepository) *AdminHandler {
	return &AdminHandler{reconcile: reconcile, emailLogs: emailLogs, cloudLogs: cloudLogs}
}

// ReconcileReceipt manually unblocks a stuck receipt.
// POST /api/v1/admin/receipts/:receipt_id/reconcile
func (h *AdminHandler) ReconcileReceipt(c *gin.Context) {
	adminID, err := getAdminID(c)
	if err != nil {
		res.ErrorResponse(c, http.StatusUnauthorized, "AUTH_ERROR", "Unauthorized")
		return
	}

	receiptID, err := uuid.Parse(c.Param("receipt_id"))
	if err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "INVALID_RECEIPT_ID", "Invalid receipt ID")
		return
	}

	var req model.ReconcileReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := h.reconcile.ReconcileReceipt(c.Request.Context(), adminID, receiptID, req); err != nil {
		statusCode, errCode := mapReceiptError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, gin.H{"message": "receipt reconciled"})
}

// ExportAuditLog streams an XLSX workbook of email and cloud-storage
// delivery attempts for a date range, for store owners reconciling
// delivery complaints against what the pipeline actually attempted.
// GET /api/v1/admin/receipts/audit-log/export?from=...&to=...
func (h *AdminHandler) ExportAuditLog(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "INVALID_DATE_RANGE", err.Error())
		return
	}

	emailLogs, err := h.emailLogs.ListByDateRange(c.Request.Context(), from, to)
	if err != nil {
		res.ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	cloudLogs, err := h.cloudLogs.ListByDateRange(c.Request.Context(), from, to)
	if err != nil {
		res.ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const emailSheet = "Email Deliveries"
	f.SetSheetName("Sheet1", emailSheet)
	f.SetSheetRow(emailSheet, "A1", &[]string{"Receipt ID", "Recipient", "Status", "Message ID", "Error", "Attempted At"})
	for i, l := range emailLogs {
		row := fmt.Sprintf("A%d", i+2)
		messageID := ""
		if l.MessageID != nil {
			messageID = *l.MessageID
		}
		errMsg := ""
		if l.Error != nil {
			errMsg = *l.Error
		}
		f.SetSheetRow(emailSheet, row, &[]interface{}{
			l.ReceiptID.String(), l.Recipient, l.Status, messageID, errMsg, l.AttemptedAt.Format(time.RFC3339),
		})
	}

	const cloudSheet = "Cloud Uploads"
	f.NewSheet(cloudSheet)
	f.SetSheetRow(cloudSheet, "A1", &[]string{"Receipt ID", "Public ID", "Status", "Error", "Attempted At"})
	for i, l := range cloudLogs {
		row := fmt.Sprintf("A%d", i+2)
		publicID := ""
		if l.PublicID != nil {
			publicID = *l.PublicID
		}
		errMsg := ""
		if l.Error != nil {
			errMsg = *l.Error
		}
		f.SetSheetRow(cloudSheet, row, &[]interface{}{
			l.ReceiptID.String(), publicID, l.Status, errMsg, l.AttemptedAt.Format(time.RFC3339),
		})
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-audit-%s.xlsx"`, time.Now().Format("2006-01-02")))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		res.ErrorResponse(c, http.StatusInternalServerError, "EXPORT_FAILED", err.Error())
		return
	}
}

func parseDateRange(c *gin.Context) (from, to time.Time, err error) {
	layout := "2006-01-02"
	fromStr := c.Query("from")
	toStr := c.Query("to")

	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to query parameters are required (YYYY-MM-DD)")
	}

	from, err = time.Parse(layout, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %w", err)
	}
	to, err = time.Parse(layout, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %w", err)
	}
	return from, to.Add(24 * time.Hour), nil
}

// getAdminID extracts the authenticated admin's ID, set by AuthMiddleware
// under the "userID" context key as a uuid.UUID (AdminMiddleware gates
// access to admin-role tokens upstream of this handler).
func getAdminID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, fmt.Errorf("userID not found in context")
	}
	id, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid userID type in context")
	}
	return id, nil
}
