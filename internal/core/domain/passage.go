package domain

import "fmt"

// Passage is the atomic retrievable unit: a short span that embeds well plus a
// wider sentence window used for display and LLM context, never for matching.
type Passage struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	WindowText string `json:"window_text"`
	PageLabel  string `json:"page_label,omitempty"`
	FileID     string `json:"file_id"`
	Tenant     TenantKey
	Index      int `json:"index"`
}

// PassageID builds the stable per-document passage identity.
func PassageID(fileID string, index int) string {
	return fmt.Sprintf("%s#%d", fileID, index)
}

// ScoredPassage pairs a passage with its relevance score for one retrieval.
// DenseRank is the 0-based position the dense retriever gave it, or -1 when
// the passage came only from the lexical source; fusion uses it to break ties.
type ScoredPassage struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`

	DenseRank int `json:"-"`
}

// RetrievalResult is an ordered ranking produced fresh per query. It is never
// persisted.
type RetrievalResult struct {
	Passages []ScoredPassage `json:"passages"`
}

func (r RetrievalResult) Empty() bool {
	return len(r.Passages) == 0
}

// PageSpan maps a half-open byte range [Start, End) of extracted text to its
// source page or sheet label.
type PageSpan struct {
	Start int
	End   int
	Label string
}

// LabelAt resolves the page label covering offset, or "" when none does.
func LabelAt(spans []PageSpan, offset int) string {
	for _, s := range spans {
		if offset >= s.Start && offset < s.End {
			return s.Label
		}
	}
	return ""
}

// Source is one citation attached to a free-form answer.
type Source struct {
	FileName  string  `json:"file_name"`
	PageLabel string  `json:"page_label,omitempty"`
	Score     float64 `json:"score"`
	Excerpt   string  `json:"excerpt"`
}

// Answer is the free-form retrieval-augmented response to a query.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}
