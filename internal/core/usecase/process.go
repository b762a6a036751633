package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
)

// ProcessIngestUseCase runs the ingestion pipeline for one document: extract,
// split into sentence-window passages, embed, then populate both indexes from
// the identical passage set. Embedding happens before any index mutation, so a
// provider failure leaves the indexes untouched (create) or stale but
// consistent (upsert).
type ProcessIngestUseCase struct {
	registry  ports.DocumentRegistry
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	splitter  ports.PassageSplitter
	embedder  ports.Embedder
	vector    ports.VectorIndex
	lexical   ports.LexicalIndex
	logger    *slog.Logger
}

func NewProcessIngestUseCase(
	registry ports.DocumentRegistry,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	splitter ports.PassageSplitter,
	embedder ports.Embedder,
	vector ports.VectorIndex,
	lexical ports.LexicalIndex,
	logger *slog.Logger,
) *ProcessIngestUseCase {
	return &ProcessIngestUseCase{
		registry:  registry,
		storage:   storage,
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		vector:    vector,
		lexical:   lexical,
		logger:    logger,
	}
}

func (uc *ProcessIngestUseCase) Process(ctx context.Context, job domain.IngestJob) error {
	fileID := job.Tenant.FileID()
	if err := uc.registry.UpdateStatus(ctx, fileID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	count, err := uc.Ingest(ctx, job)
	if err != nil {
		if failErr := uc.registry.UpdateStatus(ctx, fileID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.registry.SetPassageCount(ctx, fileID, count); err != nil {
		return fmt.Errorf("record passage count: %w", err)
	}
	if err := uc.registry.UpdateStatus(ctx, fileID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

// Ingest runs the pipeline and returns the passage count. Exposed separately
// so the synchronous path can report the count without a registry round trip.
func (uc *ProcessIngestUseCase) Ingest(ctx context.Context, job domain.IngestJob) (int, error) {
	passages, err := uc.loadPassages(ctx, job)
	if err != nil {
		return 0, err
	}

	filter := job.Tenant.Filter()
	exists, err := uc.vector.Exists(ctx, filter)
	if err != nil {
		return 0, domain.WrapError(domain.ErrProvider, "check passage existence", err)
	}
	if exists && job.Mode == domain.IngestCreate {
		return 0, domain.WrapError(domain.ErrConflict, "ingest document",
			fmt.Errorf("passages already exist for %s; use upsert to replace them", job.Tenant.FileID()))
	}

	// Embed before touching either index: a provider failure here must not
	// leave a partial or missing passage set behind.
	vectors, err := uc.embed(ctx, passages)
	if err != nil {
		return 0, err
	}

	if exists {
		if _, err := uc.vector.Delete(ctx, filter); err != nil {
			return 0, domain.WrapError(domain.ErrProvider, "delete stale vectors", err)
		}
		if _, err := uc.lexical.Delete(ctx, filter); err != nil {
			return 0, domain.WrapError(domain.ErrProvider, "delete stale lexical passages", err)
		}
	}

	if err := uc.vector.Upsert(ctx, passages, vectors); err != nil {
		return 0, domain.WrapError(domain.ErrProvider, "index vectors", err)
	}
	// Both indexes always hold the identical passage set per ingestion; fusing
	// incomparable sets would make the hybrid ranking meaningless.
	if err := uc.lexical.Upsert(ctx, passages); err != nil {
		return 0, domain.WrapError(domain.ErrProvider, "index lexical passages", err)
	}

	uc.logger.Info("document ingested",
		"file_id", job.Tenant.FileID(),
		"mode", string(job.Mode),
		"passages", len(passages),
	)
	return len(passages), nil
}

func (uc *ProcessIngestUseCase) loadPassages(ctx context.Context, job domain.IngestJob) ([]domain.Passage, error) {
	reader, err := uc.storage.Open(ctx, job.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer reader.Close()

	text, pages, err := uc.extractor.Extract(ctx, job.MimeType, job.Tenant.FileName, reader)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return nil, domain.WrapError(domain.ErrNoContent, "extract text", errors.New("document yielded no text"))
	}

	passages := uc.splitter.Split(job.Tenant.FileID(), job.Tenant, text, pages)
	if len(passages) == 0 {
		return nil, domain.WrapError(domain.ErrNoContent, "split document", errors.New("splitting produced zero passages"))
	}
	return passages, nil
}

func (uc *ProcessIngestUseCase) embed(ctx context.Context, passages []domain.Passage) ([][]float32, error) {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "embed passages", err)
	}
	if len(vectors) != len(passages) {
		return nil, domain.WrapError(domain.ErrProvider, "embed passages",
			fmt.Errorf("vectors/passages mismatch: %d/%d", len(vectors), len(passages)))
	}
	return vectors, nil
}
