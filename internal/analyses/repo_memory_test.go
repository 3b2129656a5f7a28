package analyses

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoRejectsSecondAnalysisPerDocument(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	first := NewAnalysis("a1", "doc-1", Result{Summary: "first", OverallRisk: RiskSafe}, time.Now())
	second := NewAnalysis("a2", "doc-1", Result{Summary: "second", OverallRisk: RiskHigh}, time.Now())

	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create first: %v", err)
	}
	if err := repo.Create(ctx, second); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := repo.GetByDocumentID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByDocumentID: %v", err)
	}
	if got.ID != "a1" {
		t.Fatalf("expected first analysis, got %s", got.ID)
	}
	if _, err := repo.GetByID(ctx, "a2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rejected analysis to be absent, got %v", err)
	}
}

func TestMemoryRepoNotFound(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.GetByDocumentID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
