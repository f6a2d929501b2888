// Package render implements the two pure functions the rest of the
// pipeline treats as black boxes: RenderReceipt (PDF bytes) and
// RenderEmail (subject/html/text). Neither performs I/O beyond reading
// the in-memory ReceiptData.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"receiptflow/internal/domains/receipt/model"
)

// ReceiptRenderer is injected into the render worker so the PDF
// implementation can be swapped (e.g. in tests) without touching job
// handling (§4.3).
type ReceiptRenderer interface {
	RenderReceipt(data model.ReceiptData) ([]byte, error)
}

// pdfRenderer writes a minimal single-page PDF directly, without any
// external PDF library: Helvetica is a base-14 font PDF viewers already
// carry, so no font embedding is needed.
type pdfRenderer struct{}

func NewPDFRenderer() ReceiptRenderer { return &pdfRenderer{} }

func (p *pdfRenderer) RenderReceipt(data model.ReceiptData) ([]byte, error) {
	lines := receiptLines(data)
	return writeMinimalPDF(lines)
}

func receiptLines(data model.ReceiptData) []string {
	lines := []string{
		data.StoreName,
		"Receipt " + data.ReceiptNumber,
		fmt.Sprintf("Paid at: %s", data.PaidAt.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Amount: %s %s", data.Currency, data.Amount.StringFixed(2)),
		fmt.Sprintf("Recipient: %s", data.Recipient),
		"",
		"Order snapshot:",
	}
	return append(lines, wrapLine(string(data.OrderSnapshot), 90)...)
}

func wrapLine(s string, width int) []string {
	var out []string
	for len(s) > width {
		out = append(out, s[:width])
		s = s[width:]
	}
	return append(out, s)
}

// writeMinimalPDF lays out a single US Letter page with one text block,
// hand-building the object table and xref since no PDF library ships in
// the example pack to ground this on.
func writeMinimalPDF(lines []string) ([]byte, error) {
	var content bytes.Buffer
	content.WriteString("BT\n/F1 11 Tf\n14 TL\n50 770 Td\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		content.WriteString("(" + escapePDFText(line) + ") Tj\n")
	}
	content.WriteString("ET")
	stream := content.Bytes()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", len(objects)+1, xrefStart)

	return buf.Bytes(), nil
}

func escapePDFText(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return replacer.Replace(s)
}
