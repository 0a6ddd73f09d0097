package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedText marks content types we store but cannot extract text
// from, such as images.
var ErrUnsupportedText = fmt.Errorf("no text extraction for content type")

// ExtractText pulls plain text out of an uploaded file. PDFs go through the
// pdf reader page by page; plain text passes through as is.
func ExtractText(contentType string, data []byte) (string, error) {
	switch contentType {
	case "application/pdf":
		return extractPDF(data)
	case "text/plain":
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedText, contentType)
	}
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
