package analyses

import (
	"context"
	"sync"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu         sync.RWMutex
	byID       map[string]Analysis
	byDocument map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:       make(map[string]Analysis),
		byDocument: make(map[string]string),
	}
}

// Create stores the analysis. A document holds at most one; a second one
// returns ErrAlreadyExists.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byDocument[analysis.DocumentID]; ok {
		return ErrAlreadyExists
	}
	r.byID[analysis.ID] = analysis
	r.byDocument[analysis.DocumentID] = analysis.ID
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// GetByDocumentID returns the first analysis stored for a document.
func (r *MemoryRepo) GetByDocumentID(ctx context.Context, documentID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byDocument[documentID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return r.byID[id], nil
}
