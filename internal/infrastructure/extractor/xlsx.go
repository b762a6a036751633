package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

func extractExcel(content []byte) (string, []domain.PageSpan, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	sheets := f.GetSheetList()
	spans := make([]domain.PageSpan, 0, len(sheets))
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		start := buf.Len()
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		spans = append(spans, domain.PageSpan{
			Start: start,
			End:   buf.Len(),
			Label: sheet,
		})
	}
	// No trimming: span offsets refer to the buffer as written.
	return buf.String(), spans, nil
}
