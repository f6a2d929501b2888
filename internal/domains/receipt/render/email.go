package render

import (
	"fmt"

	"receiptflow/internal/domains/receipt/model"
)

// RenderEmail builds the subject/html/text triple from a receipt's
// immutable order snapshot (spec §1: pure function, template specifics
// out of scope beyond subject/html/text substitution).
func RenderEmail(data model.ReceiptData) model.RenderedEmail {
	subject := fmt.Sprintf("Your receipt %s from %s", data.ReceiptNumber, data.StoreName)

	html := fmt.Sprintf(
		"<h1>%s</h1><p>Receipt <strong>%s</strong></p><p>Amount: %s %s</p><p>Paid at: %s</p>",
		data.StoreName, data.ReceiptNumber, data.Currency, data.Amount.StringFixed(2),
		data.PaidAt.Format("2006-01-02 15:04:05"),
	)

	text := fmt.Sprintf(
		"%s\nReceipt %s\nAmount: %s %s\nPaid at: %s\n",
		data.StoreName, data.ReceiptNumber, data.Currency, data.Amount.StringFixed(2),
		data.PaidAt.Format("2006-01-02 15:04:05"),
	)

	return model.RenderedEmail{Subject: subject, HTML: html, Text: text}
}
