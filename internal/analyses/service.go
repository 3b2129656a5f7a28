package analyses

import (
	"context"
	"time"

	"github.com/google/uuid"

	"legal-analyzer/internal/shared/telemetry"
)

// Service stores analyses produced by the Analyzer.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service backed by repo.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

// Record attaches res to a document and persists it.
func (s *Service) Record(ctx context.Context, documentID string, res Result) (Analysis, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	analysis := NewAnalysis(uuid.NewString(), documentID, res, now())
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}
	telemetry.Info("analysis.stored", map[string]any{
		"analysis_id": analysis.ID,
		"document_id": documentID,
		"clauses":     analysis.RiskStats.Total,
	})
	return analysis, nil
}

// ForDocument returns the analysis of a document.
func (s *Service) ForDocument(ctx context.Context, documentID string) (Analysis, error) {
	return s.Repo.GetByDocumentID(ctx, documentID)
}
