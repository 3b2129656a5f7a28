package documents

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repo defines persistence operations for documents. Records are append-only.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	// List returns every document in upload order, oldest first.
	List(ctx context.Context) ([]Document, error)
}
