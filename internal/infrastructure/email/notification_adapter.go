package email

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ReceiptMailer adapts EmailService to service.Mailer, the boundary the
// email worker calls (§6). A real SMTP send has no provider-issued message
// ID to report, so one is synthesized the way the teacher's notification
// adapter already did for its own pseudo IDs.
type ReceiptMailer struct {
	emailService EmailService
}

func NewReceiptMailer(emailService EmailService) *ReceiptMailer {
	return &ReceiptMailer{emailService: emailService}
}

func (m *ReceiptMailer) SendReceipt(ctx context.Context, to, subject, html, text string, attachment []byte, attachmentName string) (messageID string, err error) {
	req := EmailRequest{
		To:      []string{to},
		Subject: subject,
		Body:    html,
		IsHTML:  true,
	}
	if len(attachment) > 0 {
		req.Attachments = []Attachment{{
			Filename: attachmentName,
			Content:  attachment,
			MimeType: "application/pdf",
		}}
	}

	if err := m.emailService.SendEmail(ctx, req); err != nil {
		return "", fmt.Errorf("send receipt email: %w", err)
	}

	return "smtp-" + uuid.New().String(), nil
}
