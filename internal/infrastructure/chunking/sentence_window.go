// Package chunking splits extracted text into sentence-window passages: the
// embedded unit is a single sentence, the attached window carries the
// surrounding sentences for display and LLM context.
package chunking

import (
	"strings"
	"unicode"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

const defaultWindowSize = 3

type SentenceWindowSplitter struct {
	WindowSize int
}

// NewSentenceWindowSplitter creates a splitter attaching windowSize sentences
// of context on each side of every passage.
func NewSentenceWindowSplitter(windowSize int) *SentenceWindowSplitter {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &SentenceWindowSplitter{WindowSize: windowSize}
}

type sentence struct {
	text  string
	start int
}

func (s *SentenceWindowSplitter) Split(
	fileID string,
	tenant domain.TenantKey,
	text string,
	pages []domain.PageSpan,
) []domain.Passage {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	out := make([]domain.Passage, 0, len(sentences))
	for i, sent := range sentences {
		lo := i - s.WindowSize
		if lo < 0 {
			lo = 0
		}
		hi := i + s.WindowSize + 1
		if hi > len(sentences) {
			hi = len(sentences)
		}

		window := make([]string, 0, hi-lo)
		for _, w := range sentences[lo:hi] {
			window = append(window, w.text)
		}

		out = append(out, domain.Passage{
			ID:         domain.PassageID(fileID, i),
			Text:       sent.text,
			WindowText: strings.Join(window, " "),
			PageLabel:  domain.LabelAt(pages, sent.start),
			FileID:     fileID,
			Tenant:     tenant,
			Index:      i,
		})
	}
	return out
}

// splitSentences segments text on sentence-final punctuation followed by
// whitespace, and on blank lines. Offsets refer to the original text so page
// spans can be resolved.
func splitSentences(text string) []sentence {
	out := make([]sentence, 0, 64)
	runes := []rune(text)

	var b strings.Builder
	start := -1
	byteOffset := 0

	flush := func() {
		trimmed := strings.TrimSpace(b.String())
		if trimmed != "" {
			out = append(out, sentence{text: trimmed, start: start})
		}
		b.Reset()
		start = -1
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		runeLen := len(string(r))

		if start < 0 && !unicode.IsSpace(r) {
			start = byteOffset
		}
		b.WriteRune(r)

		switch {
		case r == '.' || r == '!' || r == '?':
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		case r == '\n':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				flush()
			}
		}
		byteOffset += runeLen
	}
	flush()
	return out
}
