package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"legal-analyzer/internal/analyses"
	"legal-analyzer/internal/documents"
	"legal-analyzer/internal/extract"
	"legal-analyzer/internal/llm"
	"legal-analyzer/internal/shared/storage/spool"
)

const terminationText = "7. Termination. Either party may terminate this Agreement on seven (7) days written notice."

const terminationAnalysis = `{
  "summary": "A services agreement with a short termination window.",
  "overallRisk": "moderate",
  "keyInsights": [{"title": "Short notice", "description": "Seven days is brief.", "riskLevel": "moderate"}],
  "recommendations": ["Ask for thirty days notice."],
  "clauses": [{
    "id": "termination",
    "title": "Termination",
    "content": "Either party may terminate this Agreement on seven (7) days written notice.",
    "riskLevel": "moderate",
    "explanation": "You could lose the service with a week's warning.",
    "section": "7"
  }],
  "riskStats": {"safe": 0, "moderate": 99, "high": 0, "total": 99}
}`

type stubLLM struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	delay    time.Duration
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls++
	resp, err, delay := s.response, s.err, s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return resp, err
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) set(response string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response, s.err = response, err
}

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type testEnv struct {
	router    *gin.Engine
	pipeline  *Pipeline
	llm       *stubLLM
	docRepo   *documents.MemoryRepo
	spoolDir  string
	analyses  *analyses.MemoryRepo
	documents *documents.Service
}

func newTestEnv(t *testing.T, response string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	spoolDir := filepath.Join(t.TempDir(), "spool")
	client := &stubLLM{response: response}
	docRepo := documents.NewMemoryRepo()
	analysisRepo := analyses.NewMemoryRepo()
	docSvc := documents.NewService(docRepo)
	analysisSvc := analyses.NewService(analysisRepo)

	p := &Pipeline{
		Extractor: extract.New(spool.New(spoolDir)),
		Analyzer:  analyses.NewAnalyzer(client),
		Documents: docSvc,
		Analyses:  analysisSvc,
	}

	r := gin.New()
	api := r.Group("/api")
	NewHandler(p).RegisterRoutes(api)
	documents.NewHandler(docSvc).RegisterRoutes(api)
	analyses.NewHandler(analysisSvc, docRepo).RegisterRoutes(api)

	return &testEnv{
		router:    r,
		pipeline:  p,
		llm:       client,
		docRepo:   docRepo,
		spoolDir:  spoolDir,
		analyses:  analysisRepo,
		documents: docSvc,
	}
}

func (e *testEnv) upload(t *testing.T, field, fileName, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, httptest.NewRequest(method, path, nil))
	return resp
}

func (e *testEnv) documentCount(t *testing.T) int {
	t.Helper()
	docs, err := e.docRepo.List(context.Background())
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	return len(docs)
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	return body.Error.Code
}

func assertSpoolEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read spool dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty spool dir, found %d entries", len(entries))
	}
}

func TestUploadAnalyzesAndRecomputesStats(t *testing.T) {
	env := newTestEnv(t, terminationAnalysis)

	resp := env.upload(t, "document", "services.txt", "text/plain; charset=utf-8", []byte(terminationText))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out Outcome
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := analyses.RiskStats{Safe: 0, Moderate: 1, High: 0, Total: 1}
	if out.Analysis.RiskStats != want {
		t.Fatalf("expected %+v, got %+v", want, out.Analysis.RiskStats)
	}
	stats := out.Analysis.RiskStats
	if stats.Total != len(out.Analysis.Clauses) || stats.Safe+stats.Moderate+stats.High != stats.Total {
		t.Fatalf("stats do not partition clauses: %+v", stats)
	}
	if out.Analysis.DocumentID != out.Document.ID {
		t.Fatalf("analysis not linked: %s vs %s", out.Analysis.DocumentID, out.Document.ID)
	}
	if out.Document.FileType != extract.MimeText || out.Document.FileSize != fmt.Sprint(len(terminationText)) {
		t.Fatalf("unexpected document: %+v", out.Document)
	}
	if out.Document.Text() != terminationText {
		t.Fatalf("unexpected stored text: %q", out.Document.Text())
	}

	stored, err := env.analyses.GetByDocumentID(context.Background(), out.Document.ID)
	if err != nil {
		t.Fatalf("stored analysis: %v", err)
	}
	if stored.RiskStats != want {
		t.Fatalf("expected stored %+v, got %+v", want, stored.RiskStats)
	}

	get := env.do(http.MethodGet, "/api/documents/"+out.Document.ID+"/analysis")
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200 for analysis, got %d", get.Code)
	}
	assertSpoolEmpty(t, env.spoolDir)
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		fileName    string
		contentType string
		content     []byte
		code        string
	}{
		{name: "missing file", field: "file", fileName: "a.txt", contentType: "text/plain", content: []byte("hello"), code: CodeNoFileProvided},
		{name: "image", field: "document", fileName: "scan.png", contentType: "image/png", content: []byte("\x89PNG\r\n\x1a\n"), code: CodeUnsupportedMediaType},
		{name: "html", field: "document", fileName: "page.html", contentType: "text/html", content: []byte("<html></html>"), code: CodeUnsupportedMediaType},
		{name: "corrupt pdf", field: "document", fileName: "broken.pdf", contentType: "application/pdf", content: []byte("%PDF-1.4 not really"), code: CodeExtractionFailed},
		{name: "whitespace only", field: "document", fileName: "blank.txt", contentType: "text/plain", content: []byte("  \n\t \r\n "), code: CodeNoTextExtracted},
		{name: "invalid utf8", field: "document", fileName: "bad.txt", contentType: "text/plain", content: []byte{0xff, 0xfe, 0x41}, code: CodeExtractionFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, terminationAnalysis)

			resp := env.upload(t, tc.field, tc.fileName, tc.contentType, tc.content)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
			if code := errorCode(t, resp); code != tc.code {
				t.Fatalf("expected %q, got %q", tc.code, code)
			}
			if n := env.documentCount(t); n != 0 {
				t.Fatalf("expected no documents, got %d", n)
			}
			if env.llm.callCount() != 0 {
				t.Fatalf("expected no model call")
			}
			assertSpoolEmpty(t, env.spoolDir)
		})
	}
}

func TestUploadTooLargeRejectedBeforeExtraction(t *testing.T) {
	env := newTestEnv(t, terminationAnalysis)

	content := bytes.Repeat([]byte("a"), int(DefaultMaxFileBytes)+1)
	resp := env.upload(t, "document", "huge.txt", "text/plain", content)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != CodeFileTooLarge {
		t.Fatalf("expected file_too_large, got %q", code)
	}
	if env.documentCount(t) != 0 || env.llm.callCount() != 0 {
		t.Fatalf("expected nothing stored and no model call")
	}
	if _, err := os.Stat(env.spoolDir); !os.IsNotExist(err) {
		t.Fatalf("expected spool never to be touched, stat err=%v", err)
	}
}

func TestUploadBodyOverCapRejectedWhileParsing(t *testing.T) {
	env := newTestEnv(t, terminationAnalysis)
	env.pipeline.MaxFileBytes = 1024

	content := bytes.Repeat([]byte("a"), 1024+2*multipartSlack)
	resp := env.upload(t, "document", "huge.txt", "text/plain", content)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != CodeFileTooLarge {
		t.Fatalf("expected file_too_large, got %q", code)
	}
	if env.documentCount(t) != 0 || env.llm.callCount() != 0 {
		t.Fatalf("expected nothing stored and no model call")
	}
}

func TestUploadWithEmptyModelResponseLeavesOrphan(t *testing.T) {
	env := newTestEnv(t, "  ")

	resp := env.upload(t, "document", "services.txt", "text/plain", []byte(terminationText))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != CodeAnalysisFailed {
		t.Fatalf("expected analysis_failed, got %q", code)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("empty model response")) {
		t.Fatalf("internal error leaked to client: %s", resp.Body.String())
	}

	docs, _ := env.docRepo.List(context.Background())
	if len(docs) != 1 {
		t.Fatalf("expected orphan document, got %d documents", len(docs))
	}
	orphan := docs[0]

	first := env.do(http.MethodGet, "/api/documents/"+orphan.ID)
	second := env.do(http.MethodGet, "/api/documents/"+orphan.ID)
	if first.Code != http.StatusOK || !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("expected stable 200 responses, got %d / %d", first.Code, second.Code)
	}

	missing := env.do(http.MethodGet, "/api/documents/"+orphan.ID+"/analysis")
	if missing.Code != http.StatusNotFound || errorCode(t, missing) != "analysis_not_found" {
		t.Fatalf("expected 404 analysis_not_found, got %d %s", missing.Code, missing.Body.String())
	}
	malformed := env.do(http.MethodGet, "/api/documents/not-an-id/analysis")
	if malformed.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", malformed.Code)
	}
}

func TestProcessReturnsTypedErrors(t *testing.T) {
	env := newTestEnv(t, "")
	env.llm.set("", errors.New("upstream unavailable"))

	_, err := env.pipeline.Process(context.Background(), Upload{
		FileName:  "services.txt",
		MediaType: "text/plain",
		Body:      bytes.NewReader([]byte(terminationText)),
	})
	var ie *Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ie.Stage != StageExtracted || ie.Code != CodeAnalysisFailed || ie.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected error: %+v", ie)
	}
	if ie.DocumentID == "" {
		t.Fatalf("expected orphan document id on error")
	}
	if !errors.Is(err, analyses.ErrProviderFailure) {
		t.Fatalf("expected provider failure in chain, got %v", err)
	}

	_, err = env.pipeline.Process(context.Background(), Upload{FileName: "x.txt"})
	if !errors.As(err, &ie) || ie.Code != CodeNoFileProvided {
		t.Fatalf("expected no_file_provided, got %v", err)
	}
}

func TestProcessSurvivesCanceledRequestAfterExtraction(t *testing.T) {
	env := newTestEnv(t, terminationAnalysis)
	env.llm.delay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	env.pipeline.Analyzer = cancelingAnalyzer{next: env.pipeline.Analyzer, cancel: cancel}

	out, err := env.pipeline.Process(ctx, Upload{
		FileName:  "services.txt",
		MediaType: "text/plain",
		Body:      bytes.NewReader([]byte(terminationText)),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := env.analyses.GetByDocumentID(context.Background(), out.Document.ID); err != nil {
		t.Fatalf("expected analysis to be stored: %v", err)
	}
}

// cancelingAnalyzer cancels the request context before delegating.
type cancelingAnalyzer struct {
	next   DocumentAnalyzer
	cancel context.CancelFunc
}

func (a cancelingAnalyzer) Analyze(ctx context.Context, text, fileName string) (analyses.Result, error) {
	a.cancel()
	if err := ctx.Err(); err != nil {
		return analyses.Result{}, err
	}
	return a.next.Analyze(ctx, text, fileName)
}

func TestReanalyzeOrphanDocument(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.upload(t, "document", "services.txt", "text/plain", []byte(terminationText))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	docs, _ := env.docRepo.List(context.Background())
	docID := docs[0].ID

	env.llm.set(terminationAnalysis, nil)
	again := env.do(http.MethodPost, "/api/documents/"+docID+"/analyze")
	if again.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", again.Code, again.Body.String())
	}
	var out Outcome
	if err := json.Unmarshal(again.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Document.ID != docID || out.Analysis.RiskStats.Total != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	conflict := env.do(http.MethodPost, "/api/documents/"+docID+"/analyze")
	if conflict.Code != http.StatusConflict || errorCode(t, conflict) != CodeAnalysisExists {
		t.Fatalf("expected 409 analysis_exists, got %d %s", conflict.Code, conflict.Body.String())
	}
}

func TestReanalyzeErrors(t *testing.T) {
	env := newTestEnv(t, terminationAnalysis)

	noText := "8b0c4a52-1f0e-4a4e-9d6c-1c3f1f3b6f10"
	if err := env.docRepo.Create(context.Background(), documents.Document{
		ID:         noText,
		Filename:   "legacy.pdf",
		FileType:   extract.MimePDF,
		FileSize:   "10",
		UploadedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{path: "/api/documents/abc/analyze", status: http.StatusBadRequest, code: "invalid_id"},
		{path: "/api/documents/00000000-0000-4000-8000-000000000000/analyze", status: http.StatusNotFound, code: CodeDocumentNotFound},
		{path: "/api/documents/" + noText + "/analyze", status: http.StatusUnprocessableEntity, code: CodeNoTextExtracted},
	}
	for _, tc := range tests {
		resp := env.do(http.MethodPost, tc.path)
		if resp.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.status, resp.Code)
		}
		if code := errorCode(t, resp); code != tc.code {
			t.Fatalf("%s: expected %q, got %q", tc.path, tc.code, code)
		}
	}
	if env.llm.callCount() != 0 {
		t.Fatalf("expected no model call")
	}
}

func TestReanalyzeConcurrentCallsStoreOneAnalysis(t *testing.T) {
	env := newTestEnv(t, terminationAnalysis)
	env.llm.delay = 10 * time.Millisecond

	doc, err := env.documents.Create(context.Background(), "services.txt", extract.MimeText, int64(len(terminationText)), terminationText)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	const callers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.pipeline.Reanalyze(context.Background(), doc.ID)
			mu.Lock()
			defer mu.Unlock()
			var ie *Error
			switch {
			case err == nil:
				ok++
			case errors.As(err, &ie) && ie.Code == CodeAnalysisExists:
				conflicts++
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != callers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", callers-1, ok, conflicts)
	}
	if env.llm.callCount() != 1 {
		t.Fatalf("expected one model call, got %d", env.llm.callCount())
	}
	if n := env.pipeline.locks.size(); n != 0 {
		t.Fatalf("expected lock entries to be released, got %d", n)
	}
}

func TestReanalyzeWaitsForInFlightUpload(t *testing.T) {
	env := newTestEnv(t, terminationAnalysis)
	env.llm.delay = 200 * time.Millisecond

	uploaded := make(chan error, 1)
	go func() {
		_, err := env.pipeline.Process(context.Background(), Upload{
			FileName:  "services.txt",
			MediaType: "text/plain",
			Body:      bytes.NewReader([]byte(terminationText)),
		})
		uploaded <- err
	}()

	var docID string
	deadline := time.Now().Add(2 * time.Second)
	for docID == "" {
		if time.Now().After(deadline) {
			t.Fatalf("upload never stored its document")
		}
		docs, err := env.docRepo.List(context.Background())
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(docs) > 0 {
			docID = docs[0].ID
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := env.pipeline.Reanalyze(context.Background(), docID)
	var ie *Error
	if !errors.As(err, &ie) || ie.Code != CodeAnalysisExists || ie.Status != http.StatusConflict {
		t.Fatalf("expected 409 analysis_exists, got %v", err)
	}
	if err := <-uploaded; err != nil {
		t.Fatalf("Process: %v", err)
	}
	if env.llm.callCount() != 1 {
		t.Fatalf("expected one model call, got %d", env.llm.callCount())
	}
	if n := env.pipeline.locks.size(); n != 0 {
		t.Fatalf("expected lock entries to be released, got %d", n)
	}
}

func TestAnalyzeAndStoreMapsDuplicateToConflict(t *testing.T) {
	env := newTestEnv(t, terminationAnalysis)
	ctx := context.Background()

	doc, err := env.documents.Create(ctx, "services.txt", extract.MimeText, int64(len(terminationText)), terminationText)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	existing := analyses.NewAnalysis("b3f7d1c2-5a44-4e0b-9a53-6f1f0a2e9c11", doc.ID,
		analyses.Result{Summary: "earlier", OverallRisk: analyses.RiskSafe}, time.Now())
	if err := env.analyses.Create(ctx, existing); err != nil {
		t.Fatalf("seed analysis: %v", err)
	}

	_, err = env.pipeline.analyzeAndStore(ctx, ctx, doc)
	var ie *Error
	if !errors.As(err, &ie) || ie.Status != http.StatusConflict || ie.Code != CodeAnalysisExists {
		t.Fatalf("expected 409 analysis_exists, got %v", err)
	}
	if ie.DocumentID != doc.ID {
		t.Fatalf("expected document id on error, got %q", ie.DocumentID)
	}
	got, err := env.analyses.GetByDocumentID(ctx, doc.ID)
	if err != nil || got.ID != existing.ID {
		t.Fatalf("expected earlier analysis kept, got %+v, %v", got, err)
	}
}
