package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
)

const (
	defaultTopK       = 6
	defaultCandidates = 10
)

// FusionStrategy selects how the two source rankings are merged.
type FusionStrategy string

const (
	FusionRelativeScore FusionStrategy = "relative_score"
	FusionRRF           FusionStrategy = "rrf"
)

type RetrieveConfig struct {
	Candidates int
	Strategy   FusionStrategy
	RRFK       int
}

func (c RetrieveConfig) normalize() RetrieveConfig {
	out := c
	if out.Candidates <= 0 {
		out.Candidates = defaultCandidates
	}
	if out.Strategy != FusionRRF {
		out.Strategy = FusionRelativeScore
	}
	if out.RRFK <= 0 {
		out.RRFK = 60
	}
	return out
}

// HybridRetrieveUseCase fans a query out to the dense and lexical indexes,
// fuses the two rankings, swaps each passage's short span for its sentence
// window, and reranks the head with a cross-encoder.
type HybridRetrieveUseCase struct {
	embedder ports.Embedder
	vector   ports.VectorIndex
	lexical  ports.LexicalIndex
	reranker ports.Reranker
	cfg      RetrieveConfig
	logger   *slog.Logger
}

func NewHybridRetrieveUseCase(
	embedder ports.Embedder,
	vector ports.VectorIndex,
	lexical ports.LexicalIndex,
	reranker ports.Reranker,
	cfg RetrieveConfig,
	logger *slog.Logger,
) *HybridRetrieveUseCase {
	return &HybridRetrieveUseCase{
		embedder: embedder,
		vector:   vector,
		lexical:  lexical,
		reranker: reranker,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

func (uc *HybridRetrieveUseCase) Retrieve(
	ctx context.Context,
	query string,
	tenant domain.TenantKey,
	topK int,
) (domain.RetrievalResult, error) {
	if err := tenant.Validate(); err != nil {
		return domain.RetrievalResult{}, err
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	candidates := uc.cfg.Candidates
	if candidates < topK {
		candidates = topK
	}
	filter := tenant.Filter()

	// The two source searches are independent; fusion is the join point.
	var (
		wg         sync.WaitGroup
		dense      []domain.ScoredPassage
		lexical    []domain.ScoredPassage
		denseErr   error
		lexicalErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		queryVector, err := uc.embedder.EmbedQuery(ctx, query)
		if err != nil {
			denseErr = domain.WrapError(domain.ErrProvider, "embed query", err)
			return
		}
		dense, err = uc.vector.Search(ctx, queryVector, filter, candidates)
		if err != nil {
			denseErr = domain.WrapError(domain.ErrProvider, "dense search", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		lexical, err = uc.lexical.Search(ctx, query, filter, candidates)
		if err != nil {
			lexicalErr = domain.WrapError(domain.ErrProvider, "lexical search", err)
		}
	}()
	wg.Wait()

	if denseErr != nil {
		return domain.RetrievalResult{}, denseErr
	}
	if lexicalErr != nil {
		return domain.RetrievalResult{}, lexicalErr
	}

	var fused []domain.ScoredPassage
	switch uc.cfg.Strategy {
	case FusionRRF:
		fused = fuseRRF(dense, lexical, uc.cfg.RRFK)
	default:
		fused = fuseRelativeScore(dense, lexical)
	}
	if len(fused) == 0 {
		// No matches is an expected outcome, distinct from a query failure.
		return domain.RetrievalResult{}, nil
	}

	reranked, err := uc.rerank(ctx, query, fused, topK)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return domain.RetrievalResult{Passages: reranked}, nil
}

// rerank scores the fused top-(2*topK) candidates against their window text
// and re-sorts them. The window, not the anchor span, is what the model sees.
func (uc *HybridRetrieveUseCase) rerank(
	ctx context.Context,
	query string,
	fused []domain.ScoredPassage,
	topK int,
) ([]domain.ScoredPassage, error) {
	if uc.reranker == nil {
		return fused, nil
	}
	head := 2 * topK
	if head > len(fused) {
		head = len(fused)
	}

	texts := make([]string, head)
	for i := 0; i < head; i++ {
		texts[i] = windowOf(fused[i].Passage)
	}
	scores, err := uc.reranker.Rerank(ctx, query, texts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "rerank candidates", err)
	}
	if len(scores) != head {
		return nil, domain.WrapError(domain.ErrProvider, "rerank candidates",
			fmt.Errorf("scores/candidates mismatch: %d/%d", len(scores), head))
	}

	out := make([]domain.ScoredPassage, head)
	copy(out, fused[:head])
	for i := range out {
		out[i].Score = scores[i]
	}
	sortByScoreStable(out)
	return out, nil
}

// windowOf returns the passage text meant for downstream consumption: the
// expanded window when present, the anchor span otherwise.
func windowOf(p domain.Passage) string {
	if p.WindowText != "" {
		return p.WindowText
	}
	return p.Text
}
