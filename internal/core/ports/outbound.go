package ports

import (
	"context"
	"io"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

// DocumentRegistry persists one record per live file_id.
type DocumentRegistry interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByFileID(ctx context.Context, fileID string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, fileID string, status domain.DocumentStatus, errMessage string) error
	SetPassageCount(ctx context.Context, fileID string, count int) error
	DeleteByFileID(ctx context.Context, fileID string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue transports ingest jobs from the API to the worker and lexical
// sync events back to the process owning the lexical index files.
type MessageQueue interface {
	PublishIngestJob(ctx context.Context, job domain.IngestJob) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, domain.IngestJob) error) error
	PublishLexicalSync(ctx context.Context, event domain.LexicalSyncEvent) error
	SubscribeLexicalSync(ctx context.Context, handler func(context.Context, domain.LexicalSyncEvent) error) error
}

// TextExtractor turns raw document bytes into plain text. The returned page
// labels map byte offsets in the text to source pages or sheet names; an empty
// map means no provenance beyond the file itself.
type TextExtractor interface {
	Extract(ctx context.Context, mimeType, fileName string, r io.Reader) (string, []domain.PageSpan, error)
}

// PassageSplitter builds sentence-window passages from extracted text.
type PassageSplitter interface {
	Split(fileID string, tenant domain.TenantKey, text string, pages []domain.PageSpan) []domain.Passage
}

// Embedder builds dense vectors for passage texts and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores passage vectors with tenant metadata and supports
// filtered similarity search and deletion by filter.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, passages []domain.Passage, vectors [][]float32) error
	Delete(ctx context.Context, filter map[string]string) (int, error)
	Search(ctx context.Context, queryVector []float32, filter map[string]string, topK int) ([]domain.ScoredPassage, error)
	Exists(ctx context.Context, filter map[string]string) (bool, error)
}

// LexicalIndex is the sparse term index over the same passage set.
type LexicalIndex interface {
	Upsert(ctx context.Context, passages []domain.Passage) error
	Delete(ctx context.Context, filter map[string]string) (int, error)
	Search(ctx context.Context, queryText string, filter map[string]string, topK int) ([]domain.ScoredPassage, error)
}

// Reranker scores (query, passage window) pairs with a cross-encoder.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}

// HybridRetriever fans a query out to both indexes, fuses, windows, reranks.
type HybridRetriever interface {
	Retrieve(ctx context.Context, query string, tenant domain.TenantKey, topK int) (domain.RetrievalResult, error)
}

// StructuredExtractor asks the language model for a {value, confidence,
// reasoning} answer over an instruction and context block.
type StructuredExtractor interface {
	ExtractStructured(ctx context.Context, instruction, contextBlock string) (domain.RawExtraction, error)
}

// AnswerGenerator creates the final user-facing answer from ranked passages.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, passages []domain.ScoredPassage) (string, error)
}

// FieldSchema resolves declarative field definitions.
type FieldSchema interface {
	GetField(schemaType, fieldID string) (*domain.FieldDefinition, error)
	ListFields(schemaType string) ([]domain.FieldDefinition, error)
}
