// Package httpadapter exposes the engine's operations over JSON HTTP.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendersuite/kbengine/internal/core/domain"
	"github.com/tendersuite/kbengine/internal/core/ports"
	"github.com/tendersuite/kbengine/internal/observability/metrics"
)

type Router struct {
	ingest ports.DocumentIngestor
	query  ports.KnowledgeQueryService
	fields ports.FieldExtractor
	docs   ports.DocumentReader
	opts   Options
}

type Options struct {
	Service         string
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxConcurrent   int
	OverloadTimeout time.Duration
	Metrics         *metrics.HTTPServerMetrics
}

func NewRouter(
	ingest ports.DocumentIngestor,
	query ports.KnowledgeQueryService,
	fields ports.FieldExtractor,
	docs ports.DocumentReader,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	return &Router{
		ingest: ingest,
		query:  query,
		fields: fields,
		docs:   docs,
		opts:   opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/status", rt.documentStatus)
	mux.HandleFunc("/v1/kb/query", rt.queryKB)
	mux.HandleFunc("/v1/fields/extract", rt.extractField)
	mux.HandleFunc("/v1/fields", rt.listFields)
	if rt.opts.Metrics != nil {
		mux.Handle("/metrics", rt.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, rt.opts.OverloadTimeout)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// documents dispatches the ingestion surface: POST creates, PUT replaces,
// DELETE removes.
func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r, domain.IngestCreate)
	case http.MethodPut:
		rt.uploadDocument(w, r, domain.IngestUpsert)
	case http.MethodDelete:
		rt.deleteDocument(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request, mode domain.IngestMode) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	tenant := tenantFromForm(r)
	if tenant.FileName == "" {
		tenant.FileName = fileHeader.Filename
	}

	doc, err := rt.ingest.Upload(r.Context(), tenant, fileHeader.Header.Get("Content-Type"), file, mode)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if doc.Status != domain.StatusReady {
		status = http.StatusAccepted
	}
	writeJSON(w, status, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromQuery(r.URL.Query())

	deleted, err := rt.ingest.Delete(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted_count": deleted})
}

func (rt *Router) documentStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	tenant := tenantFromQuery(r.URL.Query())
	if err := tenant.ValidateDocument(); err != nil {
		writeError(w, err)
		return
	}

	doc, err := rt.docs.GetByFileID(r.Context(), tenant.FileID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) queryKB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		tenantRequest
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.query.Answer(r.Context(), req.tenant(), req.Question, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRetrieval(rt.opts.Service, "kb_query", len(answer.Sources), time.Since(start))
		rt.opts.Metrics.RecordAnswerSources(rt.opts.Service, len(answer.Sources))
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) extractField(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		tenantRequest
		FieldID string `json:"field_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.FieldID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field_id is required"})
		return
	}

	extraction, err := rt.fields.ExtractField(r.Context(), req.tenant(), req.FieldID)
	if err != nil {
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordExtraction(rt.opts.Service, "error")
		}
		writeError(w, err)
		return
	}
	if rt.opts.Metrics != nil {
		outcome := "ok"
		if extraction.Value.Null {
			outcome = "null"
		}
		rt.opts.Metrics.RecordExtraction(rt.opts.Service, outcome)
	}

	writeJSON(w, http.StatusOK, extraction)
}

func (rt *Router) listFields(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	schemaType := r.URL.Query().Get("schema_type")
	fields, err := rt.fields.ListFields(r.Context(), schemaType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

type tenantRequest struct {
	CompanyID        string `json:"company_id"`
	ProjectID        string `json:"project_id"`
	DocumentCategory string `json:"document_category"`
	DocumentType     string `json:"document_type"`
	FileName         string `json:"file_name"`
}

func (t tenantRequest) tenant() domain.TenantKey {
	return domain.TenantKey{
		CompanyID:        t.CompanyID,
		ProjectID:        t.ProjectID,
		DocumentCategory: t.DocumentCategory,
		DocumentType:     t.DocumentType,
		FileName:         t.FileName,
	}
}

func tenantFromForm(r *http.Request) domain.TenantKey {
	return domain.TenantKey{
		CompanyID:        r.FormValue("company_id"),
		ProjectID:        r.FormValue("project_id"),
		DocumentCategory: r.FormValue("document_category"),
		DocumentType:     r.FormValue("document_type"),
		FileName:         r.FormValue("file_name"),
	}
}

func tenantFromQuery(q url.Values) domain.TenantKey {
	return domain.TenantKey{
		CompanyID:        q.Get("company_id"),
		ProjectID:        q.Get("project_id"),
		DocumentCategory: q.Get("document_category"),
		DocumentType:     q.Get("document_type"),
		FileName:         q.Get("file_name"),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
