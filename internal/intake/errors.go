package intake

import (
	"errors"
	"fmt"
	"net/http"
)

// Stage is a step of the intake state machine.
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageExtracted Stage = "extracted"
	StageAnalyzed  Stage = "analyzed"
	StagePersisted Stage = "persisted"
	StageResponded Stage = "responded"
)

var (
	ErrNoFileProvided  = errors.New("no file provided")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoTextExtracted = errors.New("no text could be extracted")
	ErrAnalysisExists  = errors.New("document already has an analysis")
	ErrNoStoredText    = errors.New("document has no stored text")
)

// Error is the terminal Failed state. Stage is the last stage that was
// reached before the failure; Code and Status are what the client sees.
// DocumentID is set when a document was already stored.
type Error struct {
	Stage      Stage
	Code       string
	Status     int
	Err        error
	DocumentID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("intake %s: %s: %v", e.Stage, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the text shown to clients. Upstream failures get a generic one.
func (e *Error) Message() string {
	if e.Status >= http.StatusInternalServerError {
		switch e.Code {
		case CodeAnalysisFailed:
			return "Failed to analyze document"
		case CodeStorageFailed:
			return "Failed to store document"
		default:
			return "Internal server error"
		}
	}
	switch e.Code {
	case CodeNoFileProvided:
		return "No file uploaded"
	case CodeFileTooLarge:
		return "File exceeds the 10MB limit"
	case CodeUnsupportedMediaType:
		return "Invalid file type. Only PDF, DOCX, and TXT files are allowed."
	case CodeExtractionFailed:
		return "Could not read text from the file"
	case CodeNoTextExtracted:
		if errors.Is(e.Err, ErrNoStoredText) {
			return "Document has no stored text to analyze"
		}
		return "No text could be extracted from the file"
	case CodeAnalysisExists:
		return "Document already has an analysis"
	case CodeDocumentNotFound:
		return "Document not found"
	default:
		return e.Err.Error()
	}
}

const (
	CodeNoFileProvided       = "no_file_provided"
	CodeFileTooLarge         = "file_too_large"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeExtractionFailed     = "extraction_failed"
	CodeNoTextExtracted      = "no_text_extracted"
	CodeAnalysisFailed       = "analysis_failed"
	CodeStorageFailed        = "storage_failed"
	CodeDocumentNotFound     = "document_not_found"
	CodeAnalysisExists       = "analysis_exists"
	CodeInternal             = "internal"
)

func fail(stage Stage, status int, code string, err error) *Error {
	return &Error{Stage: stage, Code: code, Status: status, Err: err}
}
