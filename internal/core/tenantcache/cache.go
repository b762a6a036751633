// Package tenantcache provides explicit per-tenant retriever handles in place
// of process-global registries: handles are built lazily on first open and
// cached behind a mutex, so the "reuse the built retriever" optimization
// survives without hidden shared state.
package tenantcache

import (
	"context"
	"strings"
	"sync"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
)

// Handle is a retriever bound to one tenant key.
type Handle struct {
	tenant    domain.TenantKey
	retriever ports.HybridRetriever
}

func (h *Handle) Tenant() domain.TenantKey { return h.tenant }

func (h *Handle) Retrieve(ctx context.Context, query string, topK int) (domain.RetrievalResult, error) {
	return h.retriever.Retrieve(ctx, query, h.tenant, topK)
}

// Handles is the concurrency-safe handle cache. The key covers every tenant
// component including the file name, so a file-scoped handle never aliases the
// scope-wide one.
type Handles struct {
	retriever ports.HybridRetriever

	mu sync.Mutex
	m  map[string]*Handle
}

func New(retriever ports.HybridRetriever) *Handles {
	return &Handles{
		retriever: retriever,
		m:         make(map[string]*Handle),
	}
}

// Open returns the cached handle for the tenant, building it on first use.
func (c *Handles) Open(tenant domain.TenantKey) *Handle {
	key := handleKey(tenant)

	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.m[key]; ok {
		return h
	}
	h := &Handle{tenant: tenant, retriever: c.retriever}
	c.m[key] = h
	return h
}

// Close drops the tenant's handle; the next Open rebuilds it.
func (c *Handles) Close(tenant domain.TenantKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, handleKey(tenant))
}

func handleKey(k domain.TenantKey) string {
	return strings.Join([]string{
		k.CompanyID,
		k.ProjectID,
		k.DocumentCategory,
		k.DocumentType,
		k.FileName,
	}, "\x1f")
}
