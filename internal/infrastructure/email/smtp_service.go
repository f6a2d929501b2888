package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"

	"receiptflow/pkg/logger"
)

type EmailService interface {
	SendEmail(ctx context.Context, req EmailRequest) error
}

type smtpEmailService struct {
	smtpAddr string
	smtpFrom string
	auth     smtp.Auth
}

func NewSMTPEmailService(host, port, username, password, fromAddress string) EmailService {
	addr := host + ":" + port
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &smtpEmailService{smtpAddr: addr, smtpFrom: fromAddress, auth: auth}
}

// SendEmail sends req, switching to a multipart/mixed envelope whenever
// attachments are present (RFC 2045) since receipt delivery always
// attaches the rendered PDF (§4.5).
func (s *smtpEmailService) SendEmail(ctx context.Context, req EmailRequest) error {
	if len(req.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	if req.Subject == "" {
		return fmt.Errorf("subject is required")
	}

	message, err := s.buildMessage(req)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	if err := smtp.SendMail(s.smtpAddr, s.auth, s.smtpFrom, req.To, []byte(message)); err != nil {
		log.Error().Err(err).Strs("to", req.To).Str("subject", req.Subject).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("email sent", map[string]interface{}{"to": req.To, "subject": req.Subject})
	return nil
}

func (s *smtpEmailService) buildMessage(req EmailRequest) (string, error) {
	if len(req.Attachments) == 0 {
		return s.buildSimpleMessage(req), nil
	}
	return s.buildMultipartMessage(req)
}

func (s *smtpEmailService) buildSimpleMessage(req EmailRequest) string {
	var b strings.Builder
	s.writeHeaders(&b, req)
	contentType := "text/plain; charset=UTF-8"
	if req.IsHTML {
		contentType = "text/html; charset=UTF-8"
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n\r\n")
	b.WriteString(req.Body)
	return b.String()
}

// buildMultipartMessage wraps the text/HTML body and each attachment in a
// multipart/mixed envelope, base64-encoding attachment content per RFC 2045.
func (s *smtpEmailService) buildMultipartMessage(req EmailRequest) (string, error) {
	var b strings.Builder
	s.writeHeaders(&b, req)
	b.WriteString("MIME-Version: 1.0\r\n")

	mw := multipart.NewWriter(&b)
	b.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary()))

	contentType := "text/plain; charset=UTF-8"
	if req.IsHTML {
		contentType = "text/html; charset=UTF-8"
	}
	bodyHeader := map[string][]string{"Content-Type": {contentType}}
	bodyPart, err := mw.CreatePart(bodyHeader)
	if err != nil {
		return "", fmt.Errorf("create body part: %w", err)
	}
	if _, err := bodyPart.Write([]byte(req.Body)); err != nil {
		return "", fmt.Errorf("write body part: %w", err)
	}

	for _, att := range req.Attachments {
		header := map[string][]string{
			"Content-Type":              {att.MimeType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", att.Filename)},
		}
		part, err := mw.CreatePart(header)
		if err != nil {
			return "", fmt.Errorf("create attachment part: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(att.Content)
		if _, err := part.Write([]byte(encoded)); err != nil {
			return "", fmt.Errorf("write attachment part: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	return b.String(), nil
}

func (s *smtpEmailService) writeHeaders(b *strings.Builder, req EmailRequest) {
	b.WriteString(fmt.Sprintf("From: %s\r\n", s.smtpFrom))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(req.To, ", ")))
	if len(req.Cc) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(req.Cc, ", ")))
	}
	if len(req.Bcc) > 0 {
		b.WriteString(fmt.Sprintf("Bcc: %s\r\n", strings.Join(req.Bcc, ", ")))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", req.Subject))
}
