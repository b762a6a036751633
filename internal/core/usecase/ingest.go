package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
)

// IngestDocumentUseCase orchestrates the API side of ingestion: store the raw
// file, register it, and either run the pipeline inline or enqueue a job for
// the worker.
type IngestDocumentUseCase struct {
	registry  ports.DocumentRegistry
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	processor *ProcessIngestUseCase
	vector    ports.VectorIndex
	lexical   ports.LexicalIndex
	async     bool
	logger    *slog.Logger
}

func NewIngestDocumentUseCase(
	registry ports.DocumentRegistry,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	processor *ProcessIngestUseCase,
	vector ports.VectorIndex,
	lexical ports.LexicalIndex,
	async bool,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		registry:  registry,
		storage:   storage,
		queue:     queue,
		processor: processor,
		vector:    vector,
		lexical:   lexical,
		async:     async,
		logger:    logger,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	tenant domain.TenantKey,
	mimeType string,
	body io.Reader,
	mode domain.IngestMode,
) (*domain.Document, error) {
	if err := tenant.ValidateDocument(); err != nil {
		return nil, err
	}
	if !mode.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("unknown ingest mode %q", mode))
	}

	fileID := tenant.FileID()
	replaceRow := mode == domain.IngestUpsert
	if mode == domain.IngestCreate {
		if existing, err := uc.registry.GetByFileID(ctx, fileID); err == nil && existing != nil {
			// A failed run leaves its registry row behind with no live
			// passages; only a non-failed row blocks create.
			if existing.Status != domain.StatusFailed {
				return nil, domain.WrapError(domain.ErrConflict, "upload document",
					fmt.Errorf("document %s already exists; use upsert to replace it", fileID))
			}
			replaceRow = true
		}
	}

	storageKey := fileID
	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		FileID:      fileID,
		Tenant:      tenant,
		StoragePath: storageKey,
		MimeType:    mimeType,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if replaceRow {
		// The old registry row (if any) goes away with the old passage set.
		if err := uc.registry.DeleteByFileID(ctx, fileID); err != nil {
			return nil, fmt.Errorf("clear registry row: %w", err)
		}
	}
	if err := uc.registry.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("register document: %w", err)
	}

	job := domain.IngestJob{
		Tenant:      tenant,
		StorageKey:  storageKey,
		MimeType:    mimeType,
		Mode:        mode,
		RequestedAt: now,
	}

	if uc.async {
		if err := uc.queue.PublishIngestJob(ctx, job); err != nil {
			return nil, fmt.Errorf("publish ingest job: %w", err)
		}
		return doc, nil
	}

	if err := uc.processor.Process(ctx, job); err != nil {
		return nil, err
	}
	return uc.registry.GetByFileID(ctx, fileID)
}

// Delete removes a document's passage set from both indexes, its registry row
// and its stored bytes. Idempotent: deleting an absent document returns 0.
func (uc *IngestDocumentUseCase) Delete(ctx context.Context, tenant domain.TenantKey) (int, error) {
	if err := tenant.ValidateDocument(); err != nil {
		return 0, err
	}
	filter := tenant.Filter()

	deleted, err := uc.vector.Delete(ctx, filter)
	if err != nil {
		return 0, domain.WrapError(domain.ErrProvider, "delete from vector index", err)
	}
	if _, err := uc.lexical.Delete(ctx, filter); err != nil {
		return 0, domain.WrapError(domain.ErrProvider, "delete from lexical index", err)
	}

	fileID := tenant.FileID()
	if err := uc.registry.DeleteByFileID(ctx, fileID); err != nil {
		return 0, fmt.Errorf("delete registry row: %w", err)
	}
	if err := uc.storage.Delete(ctx, fileID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		uc.logger.Warn("delete stored file", "file_id", fileID, "error", err)
	}

	uc.logger.Info("document deleted", "file_id", fileID, "deleted_passages", deleted)
	return deleted, nil
}
