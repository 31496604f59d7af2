package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// TextExtractor pulls plain text out of a PDF attachment.
type TextExtractor interface {
	Extract(ctx context.Context, pdf []byte) (string, error)
}

// PDFToTextExtractor shells out to pdftotext. The binary reads the PDF
// from stdin and writes layout-preserving text to stdout; -layout keeps
// the receipt's label/value columns adjacent, which the parser regexes
// rely on.
type PDFToTextExtractor struct {
	binary string
}

// NewPDFToTextExtractor builds an extractor using the given binary
// ("pdftotext" when empty).
func NewPDFToTextExtractor(binary string) *PDFToTextExtractor {
	if binary == "" {
		binary = "pdftotext"
	}
	return &PDFToTextExtractor{binary: binary}
}

// Extract runs the conversion.
func (e *PDFToTextExtractor) Extract(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", errors.New("ingest: empty pdf")
	}

	cmd := exec.CommandContext(ctx, e.binary, "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(pdf)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("ingest: pdftotext: %w: %s", err, detail)
		}
		return "", fmt.Errorf("ingest: pdftotext: %w", err)
	}
	return stdout.String(), nil
}

var _ TextExtractor = (*PDFToTextExtractor)(nil)
