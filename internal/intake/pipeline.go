package intake

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"legal-analyzer/internal/analyses"
	"legal-analyzer/internal/documents"
	"legal-analyzer/internal/extract"
	"legal-analyzer/internal/shared/metrics"
	"legal-analyzer/internal/shared/telemetry"
	"legal-analyzer/internal/shared/util"
)

// DefaultMaxFileBytes is the upload size limit.
const DefaultMaxFileBytes int64 = 10 << 20

// TextExtractor converts an uploaded blob to plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mediaType, fileName string) (string, error)
}

// DocumentAnalyzer runs the model analysis for a document's text.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, text, fileName string) (analyses.Result, error)
}

// Pipeline takes an upload from receipt to a stored document and analysis.
type Pipeline struct {
	Extractor    TextExtractor
	Analyzer     DocumentAnalyzer
	Documents    *documents.Service
	Analyses     *analyses.Service
	MaxFileBytes int64

	locks keyedMutex
}

// Upload is one received file.
type Upload struct {
	FileName     string
	MediaType    string
	DeclaredSize int64
	Body         io.Reader
}

// Outcome is the response of a successful intake.
type Outcome struct {
	Document documents.Document `json:"document"`
	Analysis analyses.Analysis  `json:"analysis"`
}

// Process validates, extracts, analyzes and stores an upload. Errors are
// always *Error.
func (p *Pipeline) Process(ctx context.Context, up Upload) (out Outcome, err error) {
	start := time.Now()
	if name := util.DisplayName(up.FileName); name != "" {
		up.FileName = name
	}
	fields := map[string]any{"file_name": up.FileName}
	defer func() {
		metrics.IncUpload(outcomeOf(err))
		if err == nil {
			p.transition(ctx, StagePersisted, StageResponded, map[string]any{
				"document_id": out.Document.ID,
				"analysis_id": out.Analysis.ID,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		}
	}()

	if up.Body == nil {
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusBadRequest, CodeNoFileProvided, ErrNoFileProvided), fields)
	}
	limit := p.maxFileBytes()
	if up.DeclaredSize > limit {
		fields["declared_size"] = up.DeclaredSize
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusBadRequest, CodeFileTooLarge, ErrFileTooLarge), fields)
	}

	data, readErr := io.ReadAll(io.LimitReader(up.Body, limit+1))
	if readErr != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(readErr, &tooLarge) {
			return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusBadRequest, CodeFileTooLarge, ErrFileTooLarge), fields)
		}
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusInternalServerError, CodeInternal, readErr), fields)
	}
	if int64(len(data)) > limit {
		fields["size"] = len(data)
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusBadRequest, CodeFileTooLarge, ErrFileTooLarge), fields)
	}
	fields["size"] = len(data)
	fields["content_hash"] = util.ContentHash(data)

	mediaType, typeErr := extract.ResolveMediaType(up.MediaType, up.FileName, data)
	if typeErr != nil {
		fields["declared_type"] = up.MediaType
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusBadRequest, CodeUnsupportedMediaType, typeErr), fields)
	}
	fields["file_type"] = mediaType
	p.transition(ctx, StageReceived, StageValidated, copyFields(fields))

	text, extractErr := p.Extractor.Extract(ctx, data, mediaType, up.FileName)
	if extractErr != nil {
		switch {
		case errors.Is(extractErr, extract.ErrUnsupportedMediaType):
			return Outcome{}, p.fail(ctx, fail(StageValidated, http.StatusBadRequest, CodeUnsupportedMediaType, extractErr), fields)
		case errors.Is(extractErr, extract.ErrExtractionFailed):
			return Outcome{}, p.fail(ctx, fail(StageValidated, http.StatusBadRequest, CodeExtractionFailed, extractErr), fields)
		default:
			return Outcome{}, p.fail(ctx, fail(StageValidated, http.StatusInternalServerError, CodeInternal, extractErr), fields)
		}
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{}, p.fail(ctx, fail(StageValidated, http.StatusBadRequest, CodeNoTextExtracted, ErrNoTextExtracted), fields)
	}
	fields["text_chars"] = len([]rune(text))
	p.transition(ctx, StageValidated, StageExtracted, copyFields(fields))

	// Analysis and persistence outlive the request.
	detached := context.WithoutCancel(ctx)

	// Held until the analysis is stored; Reanalyze takes the same lock.
	docID := p.Documents.NewID()
	unlock := p.locks.Lock(docID)
	defer unlock()

	doc, storeErr := p.Documents.CreateWithID(detached, docID, up.FileName, mediaType, int64(len(data)), text)
	if storeErr != nil {
		return Outcome{}, p.fail(ctx, fail(StageExtracted, http.StatusInternalServerError, CodeStorageFailed, storeErr), fields)
	}
	telemetry.Info("document.created", map[string]any{
		"document_id": doc.ID,
		"file_type":   doc.FileType,
		"file_size":   doc.FileSize,
		"request_id":  requestIDFrom(ctx),
	})

	analysis, err := p.analyzeAndStore(detached, ctx, doc)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Document: doc, Analysis: analysis}, nil
}

// Reanalyze runs analysis for a stored document that has none yet. Calls for
// the same document are serialized so at most one analysis is stored.
func (p *Pipeline) Reanalyze(ctx context.Context, documentID string) (Outcome, error) {
	unlock := p.locks.Lock(documentID)
	defer unlock()

	fields := map[string]any{"document_id": documentID}
	doc, err := p.Documents.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusNotFound, CodeDocumentNotFound, err), fields)
		}
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusInternalServerError, CodeInternal, err), fields)
	}

	existing, err := p.Analyses.ForDocument(ctx, documentID)
	switch {
	case err == nil:
		fields["analysis_id"] = existing.ID
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusConflict, CodeAnalysisExists, ErrAnalysisExists), fields)
	case !errors.Is(err, analyses.ErrNotFound):
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusInternalServerError, CodeInternal, err), fields)
	}

	if strings.TrimSpace(doc.Text()) == "" {
		return Outcome{}, p.fail(ctx, fail(StageReceived, http.StatusUnprocessableEntity, CodeNoTextExtracted, ErrNoStoredText), fields)
	}
	p.transition(ctx, StageReceived, StageExtracted, map[string]any{"document_id": documentID, "reanalysis": true})

	analysis, err := p.analyzeAndStore(context.WithoutCancel(ctx), ctx, doc)
	if err != nil {
		return Outcome{}, err
	}
	p.transition(ctx, StagePersisted, StageResponded, map[string]any{
		"document_id": doc.ID,
		"analysis_id": analysis.ID,
		"reanalysis":  true,
	})
	return Outcome{Document: doc, Analysis: analysis}, nil
}

// analyzeAndStore runs the Extracted→Analyzed→Persisted tail. work carries no
// cancellation; logCtx carries the request id.
func (p *Pipeline) analyzeAndStore(work, logCtx context.Context, doc documents.Document) (analyses.Analysis, error) {
	fields := map[string]any{"document_id": doc.ID, "file_name": doc.Filename}

	res, err := p.Analyzer.Analyze(work, doc.Text(), doc.Filename)
	if err != nil {
		e := fail(StageExtracted, http.StatusInternalServerError, CodeAnalysisFailed, err)
		e.DocumentID = doc.ID
		return analyses.Analysis{}, p.fail(logCtx, e, fields)
	}
	fields["clauses"] = res.RiskStats.Total
	fields["truncated"] = res.Truncated
	p.transition(logCtx, StageExtracted, StageAnalyzed, copyFields(fields))

	analysis, err := p.Analyses.Record(work, doc.ID, res)
	if errors.Is(err, analyses.ErrAlreadyExists) {
		e := fail(StageAnalyzed, http.StatusConflict, CodeAnalysisExists, ErrAnalysisExists)
		e.DocumentID = doc.ID
		return analyses.Analysis{}, p.fail(logCtx, e, fields)
	}
	if err != nil {
		e := fail(StageAnalyzed, http.StatusInternalServerError, CodeStorageFailed, err)
		e.DocumentID = doc.ID
		return analyses.Analysis{}, p.fail(logCtx, e, fields)
	}
	fields["analysis_id"] = analysis.ID
	p.transition(logCtx, StageAnalyzed, StagePersisted, fields)
	return analysis, nil
}

func (p *Pipeline) maxFileBytes() int64 {
	if p.MaxFileBytes <= 0 {
		return DefaultMaxFileBytes
	}
	return p.MaxFileBytes
}

func (p *Pipeline) transition(ctx context.Context, from, to Stage, fields map[string]any) {
	fields["status_transition"] = string(from) + "->" + string(to)
	if id := requestIDFrom(ctx); id != "" {
		fields["request_id"] = id
	}
	telemetry.Info("intake.transition", fields)
}

func (p *Pipeline) fail(ctx context.Context, e *Error, fields map[string]any) *Error {
	out := copyFields(fields)
	out["status_transition"] = string(e.Stage) + "->failed"
	out["stage"] = string(e.Stage)
	out["code"] = e.Code
	out["error"] = e.Err
	if id := requestIDFrom(ctx); id != "" {
		out["request_id"] = id
	}
	if e.Status >= http.StatusInternalServerError {
		telemetry.Error("intake.failed", out)
	} else {
		telemetry.Warn("intake.failed", out)
	}
	return e
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var e *Error
	if !errors.As(err, &e) {
		return metrics.OutcomeInternalError
	}
	switch e.Code {
	case CodeExtractionFailed, CodeNoTextExtracted:
		return metrics.OutcomeExtractionFailed
	case CodeAnalysisFailed:
		return metrics.OutcomeAnalysisFailed
	case CodeStorageFailed:
		return metrics.OutcomeStorageFailed
	case CodeInternal:
		return metrics.OutcomeInternalError
	default:
		return metrics.OutcomeRejected
	}
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
