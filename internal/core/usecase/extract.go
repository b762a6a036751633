package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
	"github.com/tendersuite/kbengine/internal/core/tenantcache"
)

const (
	extractTopK       = 6
	snippetCharBudget = 1500
	excerptCharBudget = 2000
)

// MultiValuePolicy decides what a scalar-typed field does when the corpus
// genuinely disagrees: take the first-ranked value, the most frequent one, or
// refuse the extraction.
type MultiValuePolicy string

const (
	PolicyFirst        MultiValuePolicy = "first"
	PolicyMostFrequent MultiValuePolicy = "most_frequent"
	PolicyReject       MultiValuePolicy = "reject"
)

type ExtractConfig struct {
	SchemaType    string
	TopK          int
	SnippetBudget int
	Policy        MultiValuePolicy
}

func (c ExtractConfig) normalize() ExtractConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = extractTopK
	}
	if out.SnippetBudget <= 0 {
		out.SnippetBudget = snippetCharBudget
	}
	switch out.Policy {
	case PolicyMostFrequent, PolicyReject:
	default:
		out.Policy = PolicyFirst
	}
	return out
}

// FieldExtractionUseCase retrieves context for a schema field's prompt, asks
// the language model for a structured answer, and normalizes multi-valued
// results deterministically.
type FieldExtractionUseCase struct {
	schema    ports.FieldSchema
	handles   *tenantcache.Handles
	extractor ports.StructuredExtractor
	vector    ports.VectorIndex
	cfg       ExtractConfig
	logger    *slog.Logger
}

func NewFieldExtractionUseCase(
	schema ports.FieldSchema,
	retriever ports.HybridRetriever,
	extractor ports.StructuredExtractor,
	vector ports.VectorIndex,
	cfg ExtractConfig,
	logger *slog.Logger,
) *FieldExtractionUseCase {
	return &FieldExtractionUseCase{
		schema:    schema,
		handles:   tenantcache.New(retriever),
		extractor: extractor,
		vector:    vector,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

func (uc *FieldExtractionUseCase) ExtractField(
	ctx context.Context,
	tenant domain.TenantKey,
	fieldID string,
) (*domain.FieldExtraction, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	// Schema lookup happens before any retrieval: an unknown field id must
	// never cost an index round trip.
	field, err := uc.schema.GetField(uc.schemaType(tenant), fieldID)
	if err != nil {
		return nil, err
	}

	exists, err := uc.vector.Exists(ctx, tenant.Filter())
	if err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "check tenant index", err)
	}
	if !exists {
		return nil, domain.WrapError(domain.ErrNotFound, "extract field",
			fmt.Errorf("no index for tenant %s; ingest documents first", tenant.ScopeID()))
	}

	result, err := uc.handles.Open(tenant).Retrieve(ctx, field.Prompt, uc.cfg.TopK)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return &domain.FieldExtraction{
			FieldID: fieldID,
			Value:   domain.NullValue(),
		}, nil
	}

	raw, err := uc.extractor.ExtractStructured(ctx, field.Prompt, uc.buildContext(result.Passages))
	if err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "structured extraction", err)
	}

	value, err := uc.normalizeValue(fieldID, raw.Value, field.Type)
	if err != nil {
		return nil, err
	}

	confidence := clamp01(raw.Confidence)
	if value.Null {
		confidence = 0
	}
	return &domain.FieldExtraction{
		FieldID:    fieldID,
		Value:      value,
		Confidence: confidence,
		Reasoning:  raw.Reasoning,
		Sources:    buildSources(result.Passages),
	}, nil
}

func (uc *FieldExtractionUseCase) ListFields(_ context.Context, schemaType string) ([]domain.FieldDefinition, error) {
	return uc.schema.ListFields(schemaType)
}

// schemaType resolves which schema document a tenant's fields live in: the
// document type when a schema exists for it, otherwise the configured default.
func (uc *FieldExtractionUseCase) schemaType(tenant domain.TenantKey) string {
	if tenant.DocumentType != "" {
		if _, err := uc.schema.ListFields(tenant.DocumentType); err == nil {
			return tenant.DocumentType
		}
	}
	return uc.cfg.SchemaType
}

// buildContext concatenates passages into one block, each prefixed with its
// 1-based index and provenance. The character budget applies per passage so a
// single long one cannot starve the rest.
func (uc *FieldExtractionUseCase) buildContext(passages []domain.ScoredPassage) string {
	parts := make([]string, 0, len(passages))
	for i, sp := range passages {
		parts = append(parts, fmt.Sprintf("[%d] file=%s page=%s\n%s",
			i+1,
			sp.Passage.Tenant.FileName,
			sp.Passage.PageLabel,
			truncate(windowOf(sp.Passage), uc.cfg.SnippetBudget),
		))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// normalizeValue applies the deterministic collapsing rules; the model's own
// formatting is never trusted. Conflicting scalar values are a warning, not an
// error, unless the policy is reject.
func (uc *FieldExtractionUseCase) normalizeValue(
	fieldID string,
	value domain.FieldValue,
	declared domain.FieldType,
) (domain.FieldValue, error) {
	if value.Null {
		return domain.NullValue(), nil
	}
	if !value.IsArray() {
		return value, nil
	}

	unique := dedupFirstSeen(value.Values)
	switch {
	case len(unique) == 0:
		return domain.NullValue(), nil
	case len(unique) == 1:
		// A single unique value collapses to a scalar regardless of the
		// declared type.
		return domain.ScalarValue(unique[0]), nil
	case declared == domain.FieldArray:
		return domain.ArrayValue(unique), nil
	}

	// Scalar-typed field with genuinely different observed values: expected
	// in multi-document corpora, resolved by policy.
	uc.logger.Warn("multiple values for scalar field",
		"field_id", fieldID,
		"values", unique,
		"policy", string(uc.cfg.Policy),
	)
	switch uc.cfg.Policy {
	case PolicyMostFrequent:
		return domain.ScalarValue(mostFrequent(value.Values, unique)), nil
	case PolicyReject:
		return domain.NullValue(), domain.WrapError(domain.ErrConflict, "normalize extraction",
			fmt.Errorf("field %s has %d conflicting values", fieldID, len(unique)))
	default:
		return domain.ScalarValue(unique[0]), nil
	}
}

func dedupFirstSeen(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// mostFrequent counts occurrences in the raw (pre-dedup) list; frequency ties
// go to the first-seen value.
func mostFrequent(raw, unique []string) string {
	counts := make(map[string]int, len(unique))
	for _, v := range raw {
		counts[v]++
	}
	best := unique[0]
	for _, v := range unique[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

func buildSources(passages []domain.ScoredPassage) []domain.Source {
	out := make([]domain.Source, 0, len(passages))
	for _, sp := range passages {
		out = append(out, domain.Source{
			FileName:  sp.Passage.Tenant.FileName,
			PageLabel: sp.Passage.PageLabel,
			Score:     sp.Score,
			Excerpt:   truncate(windowOf(sp.Passage), excerptCharBudget),
		})
	}
	return out
}

// truncate caps s at budget characters, not bytes, so multibyte text keeps
// its full character budget and is never cut mid rune.
func truncate(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget]) + "..."
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
