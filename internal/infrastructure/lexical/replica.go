package lexical

import (
	"context"
	"errors"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
)

// Replicator is the worker-side lexical index. Bleve's file store takes an
// exclusive lock, so the index files live with a single owner process; worker
// mutations travel to it as sync events over the message queue.
type Replicator struct {
	queue ports.MessageQueue
}

func NewReplicator(queue ports.MessageQueue) *Replicator {
	return &Replicator{queue: queue}
}

func (r *Replicator) Upsert(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	return r.queue.PublishLexicalSync(ctx, domain.LexicalSyncEvent{
		Op:       domain.LexicalSyncUpsert,
		Passages: passages,
	})
}

// Delete forwards the filter to the owner. The owner counts the deleted set;
// the replicating side reports zero.
func (r *Replicator) Delete(ctx context.Context, filter map[string]string) (int, error) {
	err := r.queue.PublishLexicalSync(ctx, domain.LexicalSyncEvent{
		Op:     domain.LexicalSyncDelete,
		Filter: filter,
	})
	if err != nil {
		return 0, err
	}
	return 0, nil
}

// Search is not served here. Queries go to the process owning the index.
func (r *Replicator) Search(ctx context.Context, queryText string, filter map[string]string, topK int) ([]domain.ScoredPassage, error) {
	return nil, domain.WrapError(domain.ErrProvider, "lexical search",
		errors.New("lexical index is owned by another process"))
}
