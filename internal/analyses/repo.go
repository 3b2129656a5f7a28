package analyses

import "context"

// Repo defines persistence operations for analyses. Records are append-only.
type Repo interface {
	// Create returns ErrAlreadyExists when the document already has an analysis.
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	// GetByDocumentID returns the first analysis stored for the document.
	GetByDocumentID(ctx context.Context, documentID string) (Analysis, error)
}
