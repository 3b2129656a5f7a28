package analyses

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"legal-analyzer/internal/llm"
	"legal-analyzer/internal/shared/metrics"
	"legal-analyzer/internal/shared/telemetry"
)

const (
	DefaultMaxChars = 30000
	truncatedMarker = "\n...[truncated]"
	maxLoggedRaw    = 2048
)

// Analyzer sends document text to the model and validates the answer.
type Analyzer struct {
	LLM      llm.Client
	MaxChars int
}

// NewAnalyzer returns an Analyzer with the default text budget.
func NewAnalyzer(client llm.Client) *Analyzer {
	return &Analyzer{LLM: client, MaxChars: DefaultMaxChars}
}

// Analyze makes exactly one provider request for text and returns the
// validated result. Failures match ErrProviderFailure, ErrEmptyModelResponse,
// ErrMalformedModelResponse or ErrSchemaViolation.
func (a *Analyzer) Analyze(ctx context.Context, text, fileName string) (Result, error) {
	if a.LLM == nil {
		return Result{}, fmt.Errorf("%w: %w", ErrProviderFailure, llm.ErrNotConfigured)
	}
	start := time.Now()
	defer func() { metrics.ObserveAnalysisDuration(time.Since(start)) }()

	sent, analyzedChars, truncated := truncateText(text, a.maxChars())
	if truncated {
		metrics.IncAnalysisTruncated()
		telemetry.Info("analysis.truncated", map[string]any{
			"file_name":      fileName,
			"total_chars":    utf8.RuneCountInString(text),
			"analyzed_chars": analyzedChars,
		})
	}

	provider := a.LLM.Name()
	raw, err := a.LLM.Complete(ctx, llm.Request{
		System: llm.LegalAnalysisSystemPrompt(),
		Prompt: llm.LegalAnalysisUserPrompt(fileName, sent),
		Schema: llm.LegalAnalysisSchema(),
	})
	if err != nil {
		metrics.IncLLMRequest(provider, "error")
		return Result{}, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}
	metrics.IncLLMRequest(provider, "ok")

	res, err := parseResult(raw)
	if err != nil {
		fields := map[string]any{
			"provider":    provider,
			"file_name":   fileName,
			"error":       err,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if !errors.Is(err, ErrEmptyModelResponse) {
			fields["raw_response"] = clip(raw, maxLoggedRaw)
			fields["raw_length"] = len(raw)
		}
		telemetry.Error("analysis.invalid_response", fields)
		return Result{}, err
	}

	res.Truncated = truncated
	res.AnalyzedChars = analyzedChars
	telemetry.Info("analysis.completed", map[string]any{
		"provider":     provider,
		"file_name":    fileName,
		"clauses":      res.RiskStats.Total,
		"overall_risk": string(res.OverallRisk),
		"truncated":    truncated,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return res, nil
}

func (a *Analyzer) maxChars() int {
	if a.MaxChars <= 0 {
		return DefaultMaxChars
	}
	return a.MaxChars
}

// truncateText cuts text to limit runes and appends a marker when it does.
func truncateText(text string, limit int) (string, int, bool) {
	n := utf8.RuneCountInString(text)
	if n <= limit {
		return text, n, false
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i] + truncatedMarker, limit, true
		}
		count++
	}
	return text, n, false
}

// clip bounds s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
