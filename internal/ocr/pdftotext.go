package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText reads the PDF text layer using the pdftotext CLI tool in layout
// mode, which preserves column alignment well enough for table parsing.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText reader. If binPath is empty, "pdftotext"
// is resolved from PATH.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ReadPages runs pdftotext -layout and splits the output on the form-feed
// separators pdftotext emits between pages.
func (p *PdfToText) ReadPages(ctx context.Context, pdfPath string) ([]Page, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	chunks := strings.Split(stdout.String(), "\f")
	// The final form feed leaves a trailing empty chunk.
	if n := len(chunks); n > 1 && strings.TrimSpace(chunks[n-1]) == "" {
		chunks = chunks[:n-1]
	}

	pages := make([]Page, len(chunks))
	for i, text := range chunks {
		pages[i] = Page{Number: i + 1, Text: text}
	}
	return pages, nil
}
