package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
	"github.com/tendersuite/kbengine/internal/core/tenantcache"
)

// QueryUseCase answers free-form questions from the tenant's corpus with
// citations.
type QueryUseCase struct {
	handles   *tenantcache.Handles
	generator ports.AnswerGenerator
	logger    *slog.Logger
}

func NewQueryUseCase(
	retriever ports.HybridRetriever,
	generator ports.AnswerGenerator,
	logger *slog.Logger,
) *QueryUseCase {
	return &QueryUseCase{
		handles:   tenantcache.New(retriever),
		generator: generator,
		logger:    logger,
	}
}

func (uc *QueryUseCase) Answer(
	ctx context.Context,
	tenant domain.TenantKey,
	question string,
	topK int,
) (*domain.Answer, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("question is required"))
	}
	if topK <= 0 {
		topK = 5
	}

	result, err := uc.handles.Open(tenant).Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		// Nothing matched; not worth a completion call.
		return &domain.Answer{Sources: []domain.Source{}}, nil
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, result.Passages)
	if err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "generate answer", err)
	}

	return &domain.Answer{
		Text:    answerText,
		Sources: buildSources(result.Passages),
	}, nil
}
