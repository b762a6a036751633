// Package lexical implements the sparse term index over Bleve. It holds the
// same passage set as the vector index and covers the exact/rare-term recall
// dense retrieval misses.
package lexical

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type Index struct {
	index bleve.Index
}

// keywordFields are indexed untokenized for exact-match tenant filtering.
var keywordFields = []string{
	"company_id",
	"project_id",
	"document_category",
	"document_type",
	"file_name",
	"file_id",
	"passage_id",
	"page_label",
}

// NewIndex opens or creates a Bleve index at path; an empty path builds an
// in-memory index.
func NewIndex(path string) (*Index, error) {
	im := buildMapping()

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("create in-memory lexical index: %w", err)
		}
		return &Index{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open lexical index: %w", err)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	return &Index{index: index}, nil
}

func buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) so exact rare
	// terms like concrete grades match verbatim.
	textMapping := bleve.NewTextFieldMapping()
	textMapping.Analyzer = standard.Name
	textMapping.Store = true
	docMapping.AddFieldMappingsAt("text", textMapping)

	// Window text is carried for display only, never matched against.
	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Index = false
	storedOnly.Store = true
	docMapping.AddFieldMappingsAt("window_text", storedOnly)

	for _, field := range keywordFields {
		km := bleve.NewTextFieldMapping()
		km.Analyzer = keyword.Name
		km.Store = true
		docMapping.AddFieldMappingsAt(field, km)
	}

	numMapping := bleve.NewNumericFieldMapping()
	numMapping.Store = true
	docMapping.AddFieldMappingsAt("passage_index", numMapping)

	im.DefaultMapping = docMapping
	return im
}

func (x *Index) Upsert(ctx context.Context, passages []domain.Passage) error {
	batch := x.index.NewBatch()
	for _, p := range passages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(p.ID, passageDoc(p)); err != nil {
			return fmt.Errorf("batch passage %s: %w", p.ID, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("index lexical batch: %w", err)
	}
	return nil
}

// Delete removes every passage matching the filter, paging through matches
// until none remain, and returns how many were deleted.
func (x *Index) Delete(ctx context.Context, filter map[string]string) (int, error) {
	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		req := bleve.NewSearchRequest(filterQuery(bleve.NewMatchAllQuery(), filter))
		req.Size = 1000
		res, err := x.index.Search(req)
		if err != nil {
			return deleted, fmt.Errorf("scan for deletion: %w", err)
		}
		if len(res.Hits) == 0 {
			return deleted, nil
		}

		batch := x.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := x.index.Batch(batch); err != nil {
			return deleted, fmt.Errorf("delete lexical batch: %w", err)
		}
		deleted += len(res.Hits)
	}
}

func (x *Index) Search(
	ctx context.Context,
	queryText string,
	filter map[string]string,
	topK int,
) ([]domain.ScoredPassage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	match := bleve.NewMatchQuery(queryText)
	match.SetField("text")

	req := bleve.NewSearchRequest(filterQuery(match, filter))
	req.Size = topK
	req.Fields = []string{"*"}

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	out := make([]domain.ScoredPassage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, domain.ScoredPassage{
			Passage:   passageFromFields(hit.ID, hit.Fields),
			Score:     hit.Score,
			DenseRank: -1,
		})
	}
	return out, nil
}

// filterQuery wraps base in a conjunction of exact-match term filters, one per
// non-empty tenant key component.
func filterQuery(base query.Query, filter map[string]string) query.Query {
	conj := bleve.NewConjunctionQuery(base)
	for _, field := range keywordFields {
		value, ok := filter[field]
		if !ok || value == "" {
			continue
		}
		term := bleve.NewTermQuery(value)
		term.SetField(field)
		conj.AddQuery(term)
	}
	return conj
}

// ApplySync replays a replicated mutation from a worker onto the local index.
func (x *Index) ApplySync(ctx context.Context, event domain.LexicalSyncEvent) error {
	switch event.Op {
	case domain.LexicalSyncUpsert:
		return x.Upsert(ctx, event.Passages)
	case domain.LexicalSyncDelete:
		_, err := x.Delete(ctx, event.Filter)
		return err
	default:
		return fmt.Errorf("unknown lexical sync op %q", event.Op)
	}
}

func (x *Index) Close() error {
	return x.index.Close()
}

func passageDoc(p domain.Passage) map[string]any {
	return map[string]any{
		"passage_id":        p.ID,
		"passage_index":     float64(p.Index),
		"text":              p.Text,
		"window_text":       p.WindowText,
		"page_label":        p.PageLabel,
		"file_id":           p.FileID,
		"company_id":        p.Tenant.CompanyID,
		"project_id":        p.Tenant.ProjectID,
		"document_category": p.Tenant.DocumentCategory,
		"document_type":     p.Tenant.DocumentType,
		"file_name":         p.Tenant.FileName,
	}
}

func passageFromFields(id string, fields map[string]any) domain.Passage {
	return domain.Passage{
		ID:         id,
		Text:       fieldString(fields, "text"),
		WindowText: fieldString(fields, "window_text"),
		PageLabel:  fieldString(fields, "page_label"),
		FileID:     fieldString(fields, "file_id"),
		Tenant: domain.TenantKey{
			CompanyID:        fieldString(fields, "company_id"),
			ProjectID:        fieldString(fields, "project_id"),
			DocumentCategory: fieldString(fields, "document_category"),
			DocumentType:     fieldString(fields, "document_type"),
			FileName:         fieldString(fields, "file_name"),
		},
		Index: fieldInt(fields, "passage_index"),
	}
}

func fieldString(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func fieldInt(fields map[string]any, key string) int {
	if f, ok := fields[key].(float64); ok {
		return int(f)
	}
	return 0
}
