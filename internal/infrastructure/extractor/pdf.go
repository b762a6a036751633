package extractor

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

func extractPDF(content []byte) (string, []domain.PageSpan, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, fmt.Errorf("open pdf: %w", err)
	}

	var buf bytes.Buffer
	spans := make([]domain.PageSpan, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", nil, fmt.Errorf("extract pdf page %d: %w", i, err)
		}

		start := buf.Len()
		buf.WriteString(text)
		if i < r.NumPage() {
			buf.WriteByte('\n')
		}
		spans = append(spans, domain.PageSpan{
			Start: start,
			End:   buf.Len(),
			Label: fmt.Sprintf("page_%d", i),
		})
	}
	return buf.String(), spans, nil
}
