// Package qdrant implements the vector index over Qdrant's HTTP API: one
// shared collection, exact-match payload filters for tenant isolation, and
// deterministic point ids so re-ingestion can never duplicate a passage.
package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type Client struct {
	baseURL    string
	collection string
	vectorSize int
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  bool
}

func New(baseURL, collection string, vectorSize int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		vectorSize: vectorSize,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// EnsureCollection idempotently creates the backing collection. It is called
// defensively before every mutating or filtered-search operation: collection
// absence must never surface as a hard error on first use.
func (c *Client) EnsureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	if c.ensured {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.vectorSize,
			"distance": "Cosine",
		},
	}
	status, err := c.putJSON(ctx, "/collections/"+c.collection, body, nil, "ensure collection")
	if err != nil && status != http.StatusConflict {
		return err
	}

	c.ensureMu.Lock()
	c.ensured = true
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) Upsert(ctx context.Context, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) == 0 {
		return nil
	}
	if len(passages) != len(vectors) {
		return fmt.Errorf("passages/vectors mismatch: %d/%d", len(passages), len(vectors))
	}
	if err := c.EnsureCollection(ctx); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(passages))
	for i, p := range passages {
		points = append(points, point{
			ID:      pointID(p.ID),
			Vector:  vectors[i],
			Payload: passagePayload(p),
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	_, err := c.putJSON(ctx, path, map[string]any{"points": points}, nil, "upsert points")
	return err
}

// Delete removes every point matching the filter and reports how many there
// were. Qdrant's delete API returns no count, so matching points are counted
// first; deleting an empty set is a no-op returning zero.
func (c *Client) Delete(ctx context.Context, filter map[string]string) (int, error) {
	if err := c.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	count, err := c.count(ctx, filter)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	body := map[string]any{"filter": buildFilter(filter)}
	if _, err := c.postJSON(ctx, path, body, nil, "delete points"); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	filter map[string]string,
	topK int,
) ([]domain.ScoredPassage, error) {
	if err := c.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	body := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if _, err := c.postJSON(ctx, path, body, &resp, "search points"); err != nil {
		return nil, err
	}

	out := make([]domain.ScoredPassage, 0, len(resp.Result))
	for rank, r := range resp.Result {
		out = append(out, domain.ScoredPassage{
			Passage:   passageFromPayload(r.Payload),
			Score:     r.Score,
			DenseRank: rank,
		})
	}
	return out, nil
}

func (c *Client) Exists(ctx context.Context, filter map[string]string) (bool, error) {
	if err := c.EnsureCollection(ctx); err != nil {
		return false, err
	}
	count, err := c.count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *Client) count(ctx context.Context, filter map[string]string) (int, error) {
	body := map[string]any{"exact": true}
	if f := buildFilter(filter); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.collection)
	if _, err := c.postJSON(ctx, path, body, &resp, "count points"); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// pointID derives the Qdrant point id from the stable passage id. SHA1-based
// UUIDs make upserting the same passage idempotent.
func pointID(passageID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(passageID)).String()
}

func buildFilter(filter map[string]string) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for _, key := range filterKeys {
		value, ok := filter[key]
		if !ok || value == "" {
			continue
		}
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

// filterKeys fixes the payload field order so request bodies are stable.
var filterKeys = []string{
	"company_id",
	"project_id",
	"document_category",
	"document_type",
	"file_name",
	"file_id",
}

func passagePayload(p domain.Passage) map[string]any {
	return map[string]any{
		"passage_id":        p.ID,
		"passage_index":     p.Index,
		"text":              p.Text,
		"window_text":       p.WindowText,
		"page_label":        p.PageLabel,
		"file_id":           p.FileID,
		"company_id":        p.Tenant.CompanyID,
		"project_id":        p.Tenant.ProjectID,
		"document_category": p.Tenant.DocumentCategory,
		"document_type":     p.Tenant.DocumentType,
		"file_name":         p.Tenant.FileName,
	}
}

func passageFromPayload(payload map[string]any) domain.Passage {
	return domain.Passage{
		ID:         payloadString(payload, "passage_id"),
		Text:       payloadString(payload, "text"),
		WindowText: payloadString(payload, "window_text"),
		PageLabel:  payloadString(payload, "page_label"),
		FileID:     payloadString(payload, "file_id"),
		Tenant: domain.TenantKey{
			CompanyID:        payloadString(payload, "company_id"),
			ProjectID:        payloadString(payload, "project_id"),
			DocumentCategory: payloadString(payload, "document_category"),
			DocumentType:     payloadString(payload, "document_type"),
			FileName:         payloadString(payload, "file_name"),
		},
		Index: payloadInt(payload, "passage_index"),
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}
