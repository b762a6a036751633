// Package extractor turns stored document bytes into plain text with page or
// sheet provenance.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract dispatches on file extension first, mime type second. Unknown
// formats are treated as plain text and rejected if not valid UTF-8.
func (e *Extractor) Extract(ctx context.Context, mimeType, fileName string, r io.Reader) (string, []domain.PageSpan, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read document: %w", err)
	}

	switch detectFormat(mimeType, fileName) {
	case formatPDF:
		return extractPDF(raw)
	case formatXLSX:
		return extractExcel(raw)
	default:
		return extractPlaintext(raw, fileName)
	}
}

type format int

const (
	formatPlain format = iota
	formatPDF
	formatXLSX
)

func detectFormat(mimeType, fileName string) format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return formatPDF
	case ".xlsx", ".xlsm", ".xltx":
		return formatXLSX
	}
	switch mimeType {
	case "application/pdf":
		return formatPDF
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return formatXLSX
	}
	return formatPlain
}
