package ollama

import (
	"fmt"
	"strings"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

func buildAnswerPrompt(question string, passages []domain.ScoredPassage) string {
	var contextBuilder strings.Builder
	for idx, p := range passages {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] file=%s page=%s score=%.3f\n%s\n\n",
			idx+1,
			p.Passage.Tenant.FileName,
			p.Passage.PageLabel,
			p.Score,
			passageText(p.Passage),
		))
	}

	return fmt.Sprintf(`Answer the user question only from the context below.
If the context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}

func buildExtractionPrompt(instruction, contextBlock string) string {
	return fmt.Sprintf(`You extract one field from document excerpts.

Task:
%s

Rules:
- Use only the context below, never outside knowledge.
- If every occurrence agrees, return the value as a single string.
- If the context contains different values for the field, return all of them as a list of strings.
- If the field is absent from the context, return value null and confidence 0.
- Return a strict JSON object with keys: value, confidence (number from 0 to 1), reasoning (short string). No markdown, no extra keys.

Context:
%s
`, instruction, contextBlock)
}

func passageText(p domain.Passage) string {
	if p.WindowText != "" {
		return p.WindowText
	}
	return p.Text
}
