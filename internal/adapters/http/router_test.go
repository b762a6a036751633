package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type ingestFake struct {
	uploadErr error
	deleted   int
	deleteErr error
	lastMode  domain.IngestMode
}

func (f *ingestFake) Upload(_ context.Context, tenant domain.TenantKey, mimeType string, body io.Reader, mode domain.IngestMode) (*domain.Document, error) {
	f.lastMode = mode
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.Document{
		FileID:       tenant.FileID(),
		Tenant:       tenant,
		MimeType:     mimeType,
		StoragePath:  tenant.FileID(),
		PassageCount: 3,
		Status:       domain.StatusReady,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (f *ingestFake) Delete(context.Context, domain.TenantKey) (int, error) {
	return f.deleted, f.deleteErr
}

type queryFake struct {
	err error
}

func (f queryFake) Answer(context.Context, domain.TenantKey, string, int) (*domain.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{
		Text:    "the price is 120000",
		Sources: []domain.Source{{FileName: "spec.pdf", PageLabel: "page_3", Score: 0.9}},
	}, nil
}

type fieldsFake struct {
	extractErr error
	listErr    error
}

func (f fieldsFake) ExtractField(_ context.Context, _ domain.TenantKey, fieldID string) (*domain.FieldExtraction, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return &domain.FieldExtraction{
		FieldID:    fieldID,
		Value:      domain.ScalarValue("B25"),
		Confidence: 0.8,
	}, nil
}

func (f fieldsFake) ListFields(context.Context, string) ([]domain.FieldDefinition, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []domain.FieldDefinition{{FieldID: "general.contract_price", Type: domain.FieldScalar}}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByFileID(_ context.Context, fileID string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{FileID: fileID, Status: domain.StatusReady}, nil
}

func newTestRouter(ingest *ingestFake, query queryFake, fields fieldsFake, docs docsFake, opts Options) http.Handler {
	if ingest == nil {
		ingest = &ingestFake{}
	}
	return NewRouter(ingest, query, fields, docs, opts).Handler()
}

func multipartUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range map[string]string{
		"company_id":        "acme",
		"project_id":        "bridge",
		"document_category": "tech",
		"document_type":     "tender",
	} {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField(%s) error = %v", key, err)
		}
	}
	part, err := writer.CreateFormFile("file", "spec.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("content")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(nil, queryFake{}, fieldsFake{}, docsFake{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentCreateSuccess(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestRouter(ingest, queryFake{}, fieldsFake{}, docsFake{}, Options{})

	body, contentType := multipartUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if ingest.lastMode != domain.IngestCreate {
		t.Fatalf("expected create mode, got %q", ingest.lastMode)
	}

	var doc map[string]any
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc["file_id"] != "acme/bridge/tech/tender/spec.pdf" {
		t.Fatalf("unexpected file id: %v", doc["file_id"])
	}
}

func TestUploadDocumentPutUsesUpsertMode(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestRouter(ingest, queryFake{}, fieldsFake{}, docsFake{}, Options{})

	body, contentType := multipartUpload(t)
	req := httptest.NewRequest(http.MethodPut, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if ingest.lastMode != domain.IngestUpsert {
		t.Fatalf("expected upsert mode, got %q", ingest.lastMode)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestRouter(nil, queryFake{}, fieldsFake{}, docsFake{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentConflictMapsTo409(t *testing.T) {
	ingest := &ingestFake{uploadErr: domain.WrapError(domain.ErrConflict, "upload", errors.New("exists"))}
	handler := newTestRouter(ingest, queryFake{}, fieldsFake{}, docsFake{}, Options{})

	body, contentType := multipartUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestDeleteDocumentReturnsDeletedCount(t *testing.T) {
	ingest := &ingestFake{deleted: 17}
	handler := newTestRouter(ingest, queryFake{}, fieldsFake{}, docsFake{}, Options{})

	req := httptest.NewRequest(http.MethodDelete,
		"/v1/documents?company_id=acme&project_id=bridge&document_category=tech&document_type=tender&file_name=spec.pdf", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp map[string]int
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["deleted_count"] != 17 {
		t.Fatalf("expected deleted_count 17, got %d", resp["deleted_count"])
	}
}

func TestQueryKBMapsDomainInvalidInputTo400(t *testing.T) {
	handler := newTestRouter(nil,
		queryFake{err: domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("bad tenant"))},
		fieldsFake{}, docsFake{}, Options{})

	payload, _ := json.Marshal(map[string]any{"question": "test"})
	req := httptest.NewRequest(http.MethodPost, "/v1/kb/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryKBReturnsAnswerWithSources(t *testing.T) {
	handler := newTestRouter(nil, queryFake{}, fieldsFake{}, docsFake{}, Options{})

	payload, _ := json.Marshal(map[string]any{
		"company_id":        "acme",
		"project_id":        "bridge",
		"document_category": "tech",
		"document_type":     "tender",
		"question":          "what is the price?",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/kb/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Text    string          `json:"text"`
		Sources []domain.Source `json:"sources"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Text == "" || len(resp.Sources) != 1 {
		t.Fatalf("unexpected answer payload: %+v", resp)
	}
}

func TestExtractFieldConflictMapsTo409(t *testing.T) {
	handler := newTestRouter(nil, queryFake{},
		fieldsFake{extractErr: domain.WrapError(domain.ErrConflict, "normalize", errors.New("conflicting values"))},
		docsFake{}, Options{})

	payload, _ := json.Marshal(map[string]any{"field_id": "general.contract_price"})
	req := httptest.NewRequest(http.MethodPost, "/v1/fields/extract", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestExtractFieldSerializesScalarValue(t *testing.T) {
	handler := newTestRouter(nil, queryFake{}, fieldsFake{}, docsFake{}, Options{})

	payload, _ := json.Marshal(map[string]any{"field_id": "general.concrete_grade"})
	req := httptest.NewRequest(http.MethodPost, "/v1/fields/extract", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["value"] != "B25" {
		t.Fatalf("expected scalar value in payload, got %v", resp["value"])
	}
}

func TestListFieldsEndpoint(t *testing.T) {
	handler := newTestRouter(nil, queryFake{}, fieldsFake{}, docsFake{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/fields?schema_type=tender", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestDocumentStatusReturns404ForNotFound(t *testing.T) {
	handler := newTestRouter(nil, queryFake{}, fieldsFake{},
		docsFake{err: domain.WrapError(domain.ErrNotFound, "get", errors.New("missing"))}, Options{})

	req := httptest.NewRequest(http.MethodGet,
		"/v1/documents/status?company_id=acme&project_id=bridge&document_category=tech&document_type=tender&file_name=missing.pdf", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
