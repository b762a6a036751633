package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type processHarness struct {
	registry  *registryFake
	storage   *storageFake
	extractor *textExtractorFake
	splitter  *splitterFake
	embedder  *embedderFake
	vector    *vectorFake
	lexical   *lexicalFake
	uc        *ProcessIngestUseCase
}

func newProcessHarness() *processHarness {
	tenant := testTenant()
	h := &processHarness{
		registry:  &registryFake{docs: map[string]*domain.Document{tenant.FileID(): {FileID: tenant.FileID()}}},
		storage:   &storageFake{files: map[string][]byte{tenant.FileID(): []byte("raw bytes")}},
		extractor: &textExtractorFake{text: "Extracted body."},
		splitter:  &splitterFake{passages: []domain.Passage{{ID: "p#0", Text: "one"}, {ID: "p#1", Text: "two"}}},
		embedder:  &embedderFake{},
		vector:    &vectorFake{},
		lexical:   &lexicalFake{},
	}
	h.uc = NewProcessIngestUseCase(h.registry, h.storage, h.extractor, h.splitter, h.embedder, h.vector, h.lexical, testLogger())
	return h
}

func testJob(mode domain.IngestMode) domain.IngestJob {
	tenant := testTenant()
	return domain.IngestJob{Tenant: tenant, StorageKey: tenant.FileID(), MimeType: "application/pdf", Mode: mode}
}

func TestProcessLifecycle(t *testing.T) {
	h := newProcessHarness()

	if err := h.uc.Process(context.Background(), testJob(domain.IngestCreate)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.registry.statusLog) != 2 ||
		h.registry.statusLog[0] != domain.StatusProcessing ||
		h.registry.statusLog[1] != domain.StatusReady {
		t.Fatalf("unexpected status transitions: %v", h.registry.statusLog)
	}
	if h.registry.passageCount != 2 {
		t.Fatalf("expected passage count 2, got %d", h.registry.passageCount)
	}
	if len(h.vector.upsertPassages) != 2 {
		t.Fatalf("expected 2 indexed passages, got %d", len(h.vector.upsertPassages))
	}
	if h.vector.upsertPassages[0].FileID != "acme/bridge/tech/tender/spec.pdf" {
		t.Fatalf("split passages must carry the file id, got %q", h.vector.upsertPassages[0].FileID)
	}
}

func TestProcessMarksFailedOnEmptyText(t *testing.T) {
	h := newProcessHarness()
	h.extractor.text = ""

	err := h.uc.Process(context.Background(), testJob(domain.IngestCreate))
	if !domain.IsKind(err, domain.ErrNoContent) {
		t.Fatalf("expected no content, got %v", err)
	}
	if len(h.registry.statusLog) != 2 || h.registry.statusLog[1] != domain.StatusFailed {
		t.Fatalf("expected failed status recorded, got %v", h.registry.statusLog)
	}
	if h.registry.lastErrMsg == "" {
		t.Fatal("failed status must carry the error message")
	}
}

func TestIngestZeroPassagesIsNoContent(t *testing.T) {
	h := newProcessHarness()
	h.splitter.passages = nil

	_, err := h.uc.Ingest(context.Background(), testJob(domain.IngestCreate))
	if !domain.IsKind(err, domain.ErrNoContent) {
		t.Fatalf("expected no content, got %v", err)
	}
}

func TestIngestCreateConflictsWithLivePassages(t *testing.T) {
	h := newProcessHarness()
	h.vector.existsVal = true

	_, err := h.uc.Ingest(context.Background(), testJob(domain.IngestCreate))
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if h.vector.upsertCalls != 0 || h.vector.deleteCalls != 0 {
		t.Fatal("create conflict must leave the indexes untouched")
	}
}

func TestIngestEmbedFailureLeavesIndexesUntouched(t *testing.T) {
	h := newProcessHarness()
	h.vector.existsVal = true
	h.embedder.embedErr = errors.New("ollama down")

	_, err := h.uc.Ingest(context.Background(), testJob(domain.IngestUpsert))
	if !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	// Embedding runs before any index mutation, so the live passage set stays.
	if h.vector.deleteCalls != 0 || h.lexical.deleteCalls != 0 {
		t.Fatal("embed failure must not delete the live passage set")
	}
	if h.vector.upsertCalls != 0 || h.lexical.upsertCalls != 0 {
		t.Fatal("embed failure must not write to the indexes")
	}
}

func TestIngestVectorCountMismatchIsProviderError(t *testing.T) {
	h := newProcessHarness()
	h.embedder.vectors = [][]float32{{0.1}}

	_, err := h.uc.Ingest(context.Background(), testJob(domain.IngestCreate))
	if !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if h.vector.upsertCalls != 0 {
		t.Fatal("a vector count mismatch must not reach the index")
	}
}

func TestIngestMissingStoredFile(t *testing.T) {
	h := newProcessHarness()
	job := testJob(domain.IngestCreate)
	job.StorageKey = "acme/bridge/tech/tender/gone.pdf"

	_, err := h.uc.Ingest(context.Background(), job)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
