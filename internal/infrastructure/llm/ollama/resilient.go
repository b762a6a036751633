package ollama

import (
	"context"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/infrastructure/resilience"
)

// ResilientEmbedder retries transient embedding failures behind a breaker.
// Embedding is idempotent, so retries are safe.
type ResilientEmbedder struct {
	inner    *Embedder
	executor *resilience.Executor
}

func NewResilientEmbedder(inner *Embedder, executor *resilience.Executor) *ResilientEmbedder {
	return &ResilientEmbedder{inner: inner, executor: executor}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := e.executor.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		var innerErr error
		vectors, innerErr = e.inner.Embed(ctx, texts)
		return innerErr
	}, ClassifyError)
	if err != nil {
		return nil, WrapTemporaryIfNeeded("ollama_embed", err)
	}
	return vectors, nil
}

func (e *ResilientEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.executor.Execute(ctx, "ollama_embed_query", func(ctx context.Context) error {
		var innerErr error
		vector, innerErr = e.inner.EmbedQuery(ctx, text)
		return innerErr
	}, ClassifyError)
	if err != nil {
		return nil, WrapTemporaryIfNeeded("ollama_embed_query", err)
	}
	return vector, nil
}

// ResilientGenerator runs completions through the breaker without retries.
// A completion is not idempotent and must never re-fire on failure.
type ResilientGenerator struct {
	inner    *Generator
	executor *resilience.Executor
}

func NewResilientGenerator(inner *Generator, executor *resilience.Executor) *ResilientGenerator {
	return &ResilientGenerator{inner: inner, executor: executor}
}

func (g *ResilientGenerator) GenerateAnswer(ctx context.Context, question string, passages []domain.ScoredPassage) (string, error) {
	var answer string
	err := g.executor.Execute(ctx, "ollama_generate", func(ctx context.Context) error {
		var innerErr error
		answer, innerErr = g.inner.GenerateAnswer(ctx, question, passages)
		return innerErr
	}, resilience.NoRetry)
	if err != nil {
		return "", WrapTemporaryIfNeeded("ollama_generate", err)
	}
	return answer, nil
}

// ResilientExtractor is the no-retry breaker wrapper for field extraction
// completions.
type ResilientExtractor struct {
	inner    *Extractor
	executor *resilience.Executor
}

func NewResilientExtractor(inner *Extractor, executor *resilience.Executor) *ResilientExtractor {
	return &ResilientExtractor{inner: inner, executor: executor}
}

func (x *ResilientExtractor) ExtractStructured(ctx context.Context, instruction, contextBlock string) (domain.RawExtraction, error) {
	var result domain.RawExtraction
	err := x.executor.Execute(ctx, "ollama_extract", func(ctx context.Context) error {
		var innerErr error
		result, innerErr = x.inner.ExtractStructured(ctx, instruction, contextBlock)
		return innerErr
	}, resilience.NoRetry)
	if err != nil {
		return domain.RawExtraction{}, WrapTemporaryIfNeeded("ollama_extract", err)
	}
	return result, nil
}
