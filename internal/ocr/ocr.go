// Package ocr reads text out of PDF documents, page by page. Two readers
// exist: the pdftotext text layer (fast, local) and the Mistral OCR API
// (pixel-level reread for scanned or image-only pages).
package ocr

import "context"

// Page is the extracted text of a single PDF page. Numbers are 1-indexed to
// match how pages are cited in record provenance.
type Page struct {
	Number int
	Text   string
}

// PageReader extracts per-page text from a PDF file.
type PageReader interface {
	ReadPages(ctx context.Context, pdfPath string) ([]Page, error)
}

// NewPixelReader builds the pixel-reread reader from credentials. An empty
// API key returns nil with no error: the reread stage is optional and its
// absence only disables that stage, never the pipeline.
func NewPixelReader(apiKey, model string) PageReader {
	if apiKey == "" {
		return nil
	}
	return NewMistralOCR(apiKey, model)
}
