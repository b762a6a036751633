package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type embedderFake struct {
	queryVec  []float32
	queryErr  error
	vectors   [][]float32
	embedErr  error
	lastTexts []string

	queryCalls int
	embedCalls int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	f.lastTexts = texts
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryVec != nil {
		return f.queryVec, nil
	}
	return []float32{0.1, 0.2}, nil
}

type vectorFake struct {
	searchResults  []domain.ScoredPassage
	searchErr      error
	existsVal      bool
	existsErr      error
	deleteCount    int
	deleteErr      error
	upsertErr      error
	upsertPassages []domain.Passage

	searchCalls int
	existsCalls int
	deleteCalls int
	upsertCalls int
}

func (f *vectorFake) EnsureCollection(context.Context) error { return nil }

func (f *vectorFake) Upsert(_ context.Context, passages []domain.Passage, _ [][]float32) error {
	f.upsertCalls++
	f.upsertPassages = passages
	return f.upsertErr
}

func (f *vectorFake) Delete(context.Context, map[string]string) (int, error) {
	f.deleteCalls++
	return f.deleteCount, f.deleteErr
}

func (f *vectorFake) Search(context.Context, []float32, map[string]string, int) ([]domain.ScoredPassage, error) {
	f.searchCalls++
	return f.searchResults, f.searchErr
}

func (f *vectorFake) Exists(context.Context, map[string]string) (bool, error) {
	f.existsCalls++
	return f.existsVal, f.existsErr
}

type lexicalFake struct {
	searchResults []domain.ScoredPassage
	searchErr     error
	deleteCount   int
	deleteErr     error
	upsertErr     error

	deleteCalls int
	upsertCalls int
}

func (f *lexicalFake) Upsert(_ context.Context, _ []domain.Passage) error {
	f.upsertCalls++
	return f.upsertErr
}

func (f *lexicalFake) Delete(context.Context, map[string]string) (int, error) {
	f.deleteCalls++
	return f.deleteCount, f.deleteErr
}

func (f *lexicalFake) Search(context.Context, string, map[string]string, int) ([]domain.ScoredPassage, error) {
	return f.searchResults, f.searchErr
}

type rerankerFake struct {
	scores    []float64
	err       error
	lastTexts []string
	calls     int
}

func (f *rerankerFake) Rerank(_ context.Context, _ string, texts []string) ([]float64, error) {
	f.calls++
	f.lastTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type retrieverFake struct {
	result    domain.RetrievalResult
	err       error
	lastQuery string
	lastTopK  int
	calls     int
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, _ domain.TenantKey, topK int) (domain.RetrievalResult, error) {
	f.calls++
	f.lastQuery = query
	f.lastTopK = topK
	return f.result, f.err
}

type generatorFake struct {
	answer string
	err    error
	calls  int
}

func (f *generatorFake) GenerateAnswer(_ context.Context, _ string, _ []domain.ScoredPassage) (string, error) {
	f.calls++
	return f.answer, f.err
}

type structuredFake struct {
	raw         domain.RawExtraction
	err         error
	lastContext string
	calls       int
}

func (f *structuredFake) ExtractStructured(_ context.Context, _, contextBlock string) (domain.RawExtraction, error) {
	f.calls++
	f.lastContext = contextBlock
	return f.raw, f.err
}

type schemaFake struct {
	field   *domain.FieldDefinition
	getErr  error
	list    []domain.FieldDefinition
	listErr error

	lastGetSchemaType string
	getCalls          int
}

func (f *schemaFake) GetField(schemaType, _ string) (*domain.FieldDefinition, error) {
	f.getCalls++
	f.lastGetSchemaType = schemaType
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.field, nil
}

func (f *schemaFake) ListFields(string) ([]domain.FieldDefinition, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

type registryFake struct {
	docs      map[string]*domain.Document
	createErr error

	statusLog    []domain.DocumentStatus
	lastErrMsg   string
	passageCount int
	deletedIDs   []string
	createCalls  int
}

func (r *registryFake) Create(_ context.Context, doc *domain.Document) error {
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	if r.docs == nil {
		r.docs = make(map[string]*domain.Document)
	}
	r.docs[doc.FileID] = doc
	return nil
}

func (r *registryFake) GetByFileID(_ context.Context, fileID string) (*domain.Document, error) {
	doc, ok := r.docs[fileID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", errors.New(fileID))
	}
	return doc, nil
}

func (r *registryFake) UpdateStatus(_ context.Context, fileID string, status domain.DocumentStatus, errMessage string) error {
	r.statusLog = append(r.statusLog, status)
	r.lastErrMsg = errMessage
	if doc, ok := r.docs[fileID]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (r *registryFake) SetPassageCount(_ context.Context, fileID string, count int) error {
	r.passageCount = count
	if doc, ok := r.docs[fileID]; ok {
		doc.PassageCount = count
	}
	return nil
}

func (r *registryFake) DeleteByFileID(_ context.Context, fileID string) error {
	r.deletedIDs = append(r.deletedIDs, fileID)
	delete(r.docs, fileID)
	return nil
}

type storageFake struct {
	files   map[string][]byte
	saveErr error
	openErr error

	saveCalls   int
	deletedKeys []string
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[key] = raw
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	raw, ok := s.files[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open stored file", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *storageFake) Delete(_ context.Context, key string) error {
	s.deletedKeys = append(s.deletedKeys, key)
	if _, ok := s.files[key]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete stored file", errors.New(key))
	}
	delete(s.files, key)
	return nil
}

type queueFake struct {
	published  []domain.IngestJob
	syncEvents []domain.LexicalSyncEvent
	publishErr error
}

func (q *queueFake) PublishIngestJob(_ context.Context, job domain.IngestJob) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, job)
	return nil
}

func (q *queueFake) SubscribeIngestJobs(context.Context, func(context.Context, domain.IngestJob) error) error {
	return nil
}

func (q *queueFake) PublishLexicalSync(_ context.Context, event domain.LexicalSyncEvent) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.syncEvents = append(q.syncEvents, event)
	return nil
}

func (q *queueFake) SubscribeLexicalSync(context.Context, func(context.Context, domain.LexicalSyncEvent) error) error {
	return nil
}

type textExtractorFake struct {
	text  string
	pages []domain.PageSpan
	err   error
}

func (f *textExtractorFake) Extract(context.Context, string, string, io.Reader) (string, []domain.PageSpan, error) {
	return f.text, f.pages, f.err
}

type splitterFake struct {
	passages []domain.Passage
}

func (f *splitterFake) Split(fileID string, tenant domain.TenantKey, _ string, _ []domain.PageSpan) []domain.Passage {
	out := make([]domain.Passage, len(f.passages))
	for i, p := range f.passages {
		p.FileID = fileID
		p.Tenant = tenant
		out[i] = p
	}
	return out
}

func testTenant() domain.TenantKey {
	return domain.TenantKey{
		CompanyID:        "acme",
		ProjectID:        "bridge",
		DocumentCategory: "tech",
		DocumentType:     "tender",
		FileName:         "spec.pdf",
	}
}

func scored(id string, score float64) domain.ScoredPassage {
	return domain.ScoredPassage{
		Passage: domain.Passage{ID: id, Text: "text " + id},
		Score:   score,
	}
}
