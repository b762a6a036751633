package qdrant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   map[string]any
}

type qdrantStub struct {
	requests  []recordedRequest
	responses map[string]string
	status    map[string]int
}

func newQdrantStub() *qdrantStub {
	return &qdrantStub{responses: map[string]string{}, status: map[string]int{}}
}

func (s *qdrantStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
		s.requests = append(s.requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   body,
		})

		if code, ok := s.status[r.URL.Path]; ok {
			http.Error(w, `{"status":{"error":"stub"}}`, code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if resp, ok := s.responses[r.URL.Path]; ok {
			io.WriteString(w, resp)
			return
		}
		io.WriteString(w, `{"result":{}}`)
	})
}

func (s *qdrantStub) find(t *testing.T, path string) recordedRequest {
	t.Helper()
	for _, req := range s.requests {
		if req.path == path {
			return req
		}
	}
	t.Fatalf("no request hit %s; got %+v", path, s.requests)
	return recordedRequest{}
}

func testPassage(index int) domain.Passage {
	tenant := domain.TenantKey{
		CompanyID:        "acme",
		ProjectID:        "bridge",
		DocumentCategory: "tech",
		DocumentType:     "tender",
		FileName:         "spec.pdf",
	}
	fileID := tenant.FileID()
	return domain.Passage{
		ID:         domain.PassageID(fileID, index),
		Text:       "anchor text",
		WindowText: "window text",
		PageLabel:  "3",
		FileID:     fileID,
		Tenant:     tenant,
		Index:      index,
	}
}

func TestEnsureCollectionToleratesConflict(t *testing.T) {
	stub := newQdrantStub()
	stub.status["/collections/passages"] = http.StatusConflict
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, "passages", 768)
	if err := c.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("an existing collection must not be an error: %v", err)
	}

	// The ensured flag suppresses repeat creation calls.
	if err := c.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created := 0
	for _, req := range stub.requests {
		if req.path == "/collections/passages" {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected a single create call, got %d", created)
	}
}

func TestUpsertBuildsDeterministicPoints(t *testing.T) {
	stub := newQdrantStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, "passages", 768)
	p := testPassage(0)
	if err := c.Upsert(context.Background(), []domain.Passage{p}, [][]float32{{0.1, 0.2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := stub.find(t, "/collections/passages/points")
	if req.method != http.MethodPut || req.query != "wait=true" {
		t.Fatalf("unexpected upsert request: %s ?%s", req.method, req.query)
	}
	points := req.body["points"].([]any)
	if len(points) != 1 {
		t.Fatalf("expected one point, got %d", len(points))
	}
	point := points[0].(map[string]any)
	if point["id"] != pointID(p.ID) {
		t.Fatalf("point id must derive from the passage id, got %v", point["id"])
	}
	payload := point["payload"].(map[string]any)
	if payload["company_id"] != "acme" || payload["file_name"] != "spec.pdf" {
		t.Fatalf("payload missing tenant fields: %v", payload)
	}
	if payload["window_text"] != "window text" {
		t.Fatalf("payload missing window text: %v", payload)
	}

	// Same passage, same point id on every call.
	if pointID(p.ID) != pointID(p.ID) {
		t.Fatal("point ids must be deterministic")
	}
}

func TestSearchSendsFilterAndMapsResults(t *testing.T) {
	stub := newQdrantStub()
	stub.responses["/collections/passages/points/search"] = `{
		"result": [
			{"score": 0.92, "payload": {
				"passage_id": "acme/bridge/tech/tender/spec.pdf#0",
				"passage_index": 0,
				"text": "anchor text",
				"window_text": "window text",
				"page_label": "3",
				"file_id": "acme/bridge/tech/tender/spec.pdf",
				"company_id": "acme",
				"project_id": "bridge",
				"document_category": "tech",
				"document_type": "tender",
				"file_name": "spec.pdf"
			}},
			{"score": 0.41, "payload": {"passage_id": "other#1", "passage_index": 1}}
		]
	}`
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, "passages", 768)
	filter := map[string]string{"company_id": "acme", "project_id": "bridge"}
	got, err := c.Search(context.Background(), []float32{0.1, 0.2}, filter, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := stub.find(t, "/collections/passages/points/search")
	reqFilter := req.body["filter"].(map[string]any)
	must := reqFilter["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("expected two must clauses, got %v", must)
	}
	first := must[0].(map[string]any)
	if first["key"] != "company_id" {
		t.Fatalf("filter keys must keep their fixed order, got %v", must)
	}
	if req.body["with_payload"] != true {
		t.Fatal("search must request payloads")
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	if got[0].Passage.ID != "acme/bridge/tech/tender/spec.pdf#0" || got[0].Score != 0.92 {
		t.Fatalf("unexpected first hit: %+v", got[0])
	}
	if got[0].Passage.Tenant.FileName != "spec.pdf" || got[0].Passage.Index != 0 {
		t.Fatalf("payload not mapped back to passage: %+v", got[0].Passage)
	}
	if got[0].DenseRank != 0 || got[1].DenseRank != 1 {
		t.Fatalf("dense ranks must follow result order: %d %d", got[0].DenseRank, got[1].DenseRank)
	}
}

func TestDeleteCountsThenDeletes(t *testing.T) {
	stub := newQdrantStub()
	stub.responses["/collections/passages/points/count"] = `{"result":{"count":4}}`
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, "passages", 768)
	deleted, err := c.Delete(context.Background(), map[string]string{"company_id": "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("expected 4 deleted points, got %d", deleted)
	}
	req := stub.find(t, "/collections/passages/points/delete")
	if req.query != "wait=true" {
		t.Fatalf("delete must wait for completion, got %q", req.query)
	}
	if _, ok := req.body["filter"]; !ok {
		t.Fatal("delete must carry the tenant filter")
	}
}

func TestDeleteEmptySetSkipsDeleteCall(t *testing.T) {
	stub := newQdrantStub()
	stub.responses["/collections/passages/points/count"] = `{"result":{"count":0}}`
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, "passages", 768)
	deleted, err := c.Delete(context.Background(), map[string]string{"company_id": "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0, got %d", deleted)
	}
	for _, req := range stub.requests {
		if req.path == "/collections/passages/points/delete" {
			t.Fatal("no delete call for an empty match set")
		}
	}
}

func TestExists(t *testing.T) {
	stub := newQdrantStub()
	stub.responses["/collections/passages/points/count"] = `{"result":{"count":1}}`
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := New(srv.URL, "passages", 768)
	exists, err := c.Exists(context.Background(), map[string]string{"company_id": "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true for a non-zero count")
	}
	req := stub.find(t, "/collections/passages/points/count")
	if req.body["exact"] != true {
		t.Fatal("existence check must use an exact count")
	}
}
