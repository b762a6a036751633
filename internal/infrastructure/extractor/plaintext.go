package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

func extractPlaintext(raw []byte, fileName string) (string, []domain.PageSpan, error) {
	if !utf8.Valid(raw) {
		return "", nil, fmt.Errorf("unsupported binary format: %s", fileName)
	}
	return strings.TrimSpace(string(raw)), nil, nil
}
