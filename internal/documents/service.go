package documents

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"legal-analyzer/internal/shared/util"
)

// Service contains business logic for documents.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service backed by repo.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

// NewID returns a fresh document id for callers that must know it before
// the document is stored.
func (s *Service) NewID() string {
	return uuid.NewString()
}

// Create records a newly extracted document and returns it.
func (s *Service) Create(ctx context.Context, fileName, fileType string, size int64, text string) (Document, error) {
	return s.CreateWithID(ctx, s.NewID(), fileName, fileType, size, text)
}

// CreateWithID is Create with a caller-chosen id, usually from NewID.
func (s *Service) CreateWithID(ctx context.Context, id, fileName, fileType string, size int64, text string) (Document, error) {
	if _, ok := util.ParseID(id); !ok {
		return Document{}, ErrInvalidInput
	}
	if strings.TrimSpace(fileName) == "" || fileType == "" || size < 0 {
		return Document{}, ErrInvalidInput
	}

	doc := Document{
		ID:           id,
		Filename:     fileName,
		OriginalText: &text,
		FileType:     fileType,
		FileSize:     FormatSize(size),
		UploadedAt:   s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, documentID string) (Document, error) {
	return s.Repo.GetByID(ctx, documentID)
}

// List returns every document, oldest first.
func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.Repo.List(ctx)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
