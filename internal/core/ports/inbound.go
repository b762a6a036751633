package ports

import (
	"context"
	"io"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document ingestion.
type DocumentIngestor interface {
	// Upload stores the raw file, registers it, and enqueues an ingest job.
	Upload(ctx context.Context, tenant domain.TenantKey, mimeType string, body io.Reader, mode domain.IngestMode) (*domain.Document, error)
	// Delete removes the live passage set for tenant's file_id from both
	// indexes. Idempotent: a missing document yields deleted=0, not an error.
	Delete(ctx context.Context, tenant domain.TenantKey) (int, error)
}

// IngestProcessor is the inbound contract for the asynchronous worker side.
type IngestProcessor interface {
	Process(ctx context.Context, job domain.IngestJob) error
}

// KnowledgeQueryService answers free-form questions over the tenant's corpus.
type KnowledgeQueryService interface {
	Answer(ctx context.Context, tenant domain.TenantKey, question string, topK int) (*domain.Answer, error)
}

// FieldExtractor runs schema-driven structured extraction.
type FieldExtractor interface {
	ExtractField(ctx context.Context, tenant domain.TenantKey, fieldID string) (*domain.FieldExtraction, error)
	ListFields(ctx context.Context, schemaType string) ([]domain.FieldDefinition, error)
}

// DocumentReader is the inbound read model for registry state.
type DocumentReader interface {
	GetByFileID(ctx context.Context, fileID string) (*domain.Document, error)
}
