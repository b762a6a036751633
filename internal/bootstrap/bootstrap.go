// Package bootstrap wires configuration, infrastructure adapters, and use
// cases into a runnable application graph shared by the api and worker.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendersuite/kbengine/internal/config"
	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
	"github.com/tendersuite/kbengine/internal/core/usecase"
	"github.com/tendersuite/kbengine/internal/infrastructure/chunking"
	"github.com/tendersuite/kbengine/internal/infrastructure/extractor"
	"github.com/tendersuite/kbengine/internal/infrastructure/lexical"
	"github.com/tendersuite/kbengine/internal/infrastructure/llm/ollama"
	"github.com/tendersuite/kbengine/internal/infrastructure/queue/nats"
	"github.com/tendersuite/kbengine/internal/infrastructure/rerank/tei"
	"github.com/tendersuite/kbengine/internal/infrastructure/repository/postgres"
	"github.com/tendersuite/kbengine/internal/infrastructure/resilience"
	"github.com/tendersuite/kbengine/internal/infrastructure/schema/yamlschema"
	"github.com/tendersuite/kbengine/internal/infrastructure/storage/localfs"
	"github.com/tendersuite/kbengine/internal/infrastructure/vector/qdrant"
)

// Role selects per-process wiring. Bleve's file store takes an exclusive
// lock, so only the api process opens the lexical index; workers replicate
// their lexical writes to it over the queue.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    *nats.Queue
	Registry ports.DocumentRegistry

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.IngestProcessor
	QueryUC   ports.KnowledgeQueryService
	FieldsUC  ports.FieldExtractor

	ownedLexical *lexical.Index

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, role Role) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewDocumentRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewResilientEmbedder(ollama.NewEmbedder(ollamaClient), executor)
	generator := ollama.NewResilientGenerator(ollama.NewGenerator(ollamaClient), executor)
	structured := ollama.NewResilientExtractor(ollama.NewExtractor(ollamaClient), executor)

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantVectorSize)
	if err := vectorIndex.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure qdrant collection: %w", err)
	}

	var lexicalIndex ports.LexicalIndex
	var ownedLexical *lexical.Index
	if role == RoleWorker {
		lexicalIndex = lexical.NewReplicator(queue)
	} else {
		ownedLexical, err = lexical.NewIndex(cfg.BlevePath)
		if err != nil {
			return nil, fmt.Errorf("open lexical index: %w", err)
		}
		lexicalIndex = ownedLexical
	}

	// A blank reranker URL disables the cross-encoder stage.
	var reranker ports.Reranker
	if cfg.RerankerURL != "" {
		reranker = tei.New(cfg.RerankerURL)
	}

	splitter := chunking.NewSentenceWindowSplitter(cfg.SentenceWindowSize)
	textExtractor := extractor.New()
	schemaStore := yamlschema.NewStore(cfg.SchemaDir)

	retriever := usecase.NewHybridRetrieveUseCase(embedder, vectorIndex, lexicalIndex, reranker, usecase.RetrieveConfig{
		Candidates: cfg.KBCandidates,
		Strategy:   usecase.FusionStrategy(cfg.KBFusionStrategy),
		RRFK:       cfg.KBFusionRRFK,
	}, logger)

	processUC := usecase.NewProcessIngestUseCase(registry, storage, textExtractor, splitter, embedder, vectorIndex, lexicalIndex, logger)
	ingestUC := usecase.NewIngestDocumentUseCase(registry, storage, queue, processUC, vectorIndex, lexicalIndex, cfg.IngestAsync, logger)
	queryUC := usecase.NewQueryUseCase(retriever, generator, logger)
	fieldsUC := usecase.NewFieldExtractionUseCase(schemaStore, retriever, structured, vectorIndex, usecase.ExtractConfig{
		SchemaType:    cfg.SchemaDefaultType,
		TopK:          cfg.ExtractTopK,
		SnippetBudget: cfg.ExtractSnippetBudget,
		Policy:        usecase.MultiValuePolicy(cfg.ExtractMultiValuePolicy),
	}, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:    queue,
		Registry: registry,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,
		FieldsUC:  fieldsUC,

		ownedLexical: ownedLexical,

		closeFn: func() {
			queue.Close()
			if ownedLexical != nil {
				_ = ownedLexical.Close()
			}
			_ = db.Close()
		},
	}, nil
}

// RunLexicalSync applies worker lexical mutations to the locally owned index.
// Blocks until ctx is done; a process without the index returns immediately.
func (a *App) RunLexicalSync(ctx context.Context) error {
	if a.ownedLexical == nil {
		return nil
	}
	return a.Queue.SubscribeLexicalSync(ctx, func(ctx context.Context, event domain.LexicalSyncEvent) error {
		return a.ownedLexical.ApplySync(ctx, event)
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
