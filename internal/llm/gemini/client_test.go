package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"

	"legal-analyzer/internal/llm"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), " ", "", time.Second); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestToGenaiSchema(t *testing.T) {
	got := toGenaiSchema(llm.LegalAnalysisSchema())
	if got.Type != genai.TypeObject {
		t.Fatalf("expected object, got %v", got.Type)
	}
	if len(got.Required) != 5 {
		t.Fatalf("expected 5 required fields, got %v", got.Required)
	}
	clauses := got.Properties["clauses"]
	if clauses == nil || clauses.Type != genai.TypeArray || clauses.Items == nil {
		t.Fatalf("unexpected clauses schema: %+v", clauses)
	}
	risk := clauses.Items.Properties["riskLevel"]
	if risk.Type != genai.TypeString || risk.Format != "enum" || len(risk.Enum) != 3 {
		t.Fatalf("unexpected riskLevel schema: %+v", risk)
	}
	if total := got.Properties["riskStats"].Properties["total"]; total.Type != genai.TypeInteger {
		t.Fatalf("expected integer total, got %v", total.Type)
	}
	if toGenaiSchema(nil) != nil {
		t.Fatalf("expected nil schema for nil input")
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"summary":`), genai.Text(`"ok"}`)}},
		}},
	}
	got, err := responseText(resp)
	if err != nil {
		t.Fatalf("responseText: %v", err)
	}
	if got != `{"summary":"ok"}` {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestResponseTextWithoutCandidates(t *testing.T) {
	if _, err := responseText(&genai.GenerateContentResponse{}); !errors.Is(err, errNoCandidates) {
		t.Fatalf("expected errNoCandidates, got %v", err)
	}
	got, err := responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	if err != nil || got != "" {
		t.Fatalf("expected empty text for empty candidate, got %q, %v", got, err)
	}
}
