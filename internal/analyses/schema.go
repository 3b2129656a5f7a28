package analyses

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"legal-analyzer/internal/shared/metrics"
	"legal-analyzer/internal/shared/telemetry"
)

// Model output is untrusted. It is decoded into pointer fields so absent keys
// can be told apart from zero values, then validated into a Result.
type wireAnalysis struct {
	Summary         *string          `json:"summary"`
	OverallRisk     *string          `json:"overallRisk"`
	KeyInsights     *[]wireInsight   `json:"keyInsights"`
	Recommendations *[]string        `json:"recommendations"`
	Clauses         *[]wireClause    `json:"clauses"`
	RiskStats       *json.RawMessage `json:"riskStats"`
}

type wireInsight struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	RiskLevel   *string `json:"riskLevel"`
}

type wireClause struct {
	ID             json.RawMessage `json:"id"`
	Title          *string         `json:"title"`
	Content        *string         `json:"content"`
	RiskLevel      *string         `json:"riskLevel"`
	Explanation    *string         `json:"explanation"`
	Recommendation *string         `json:"recommendation"`
	Section        *string         `json:"section"`
}

// parseResult turns raw model text into a validated Result.
func parseResult(raw string) (Result, error) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return Result{}, ErrEmptyModelResponse
	}

	var wire wireAnalysis
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "$"
			}
			return Result{}, &SchemaError{Field: field, Reason: "must be " + jsonKind(typeErr.Type)}
		}
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedModelResponse, err)
	}
	return wire.validate()
}

func (w wireAnalysis) validate() (Result, error) {
	summary, ok := requiredString(w.Summary)
	if !ok {
		return Result{}, missing("summary")
	}
	if w.OverallRisk == nil {
		return Result{}, missing("overallRisk")
	}
	overall := RiskLevel(strings.TrimSpace(*w.OverallRisk))
	if !overall.Valid() {
		return Result{}, &SchemaError{Field: "overallRisk", Reason: fmt.Sprintf("has unknown level %q", *w.OverallRisk)}
	}
	if w.KeyInsights == nil {
		return Result{}, missing("keyInsights")
	}
	if w.Recommendations == nil {
		return Result{}, missing("recommendations")
	}
	if w.Clauses == nil {
		return Result{}, missing("clauses")
	}

	insights := make([]KeyInsight, 0, len(*w.KeyInsights))
	for i, in := range *w.KeyInsights {
		field := fmt.Sprintf("keyInsights[%d]", i)
		title, ok := requiredString(in.Title)
		if !ok {
			return Result{}, missing(field + ".title")
		}
		desc, ok := requiredString(in.Description)
		if !ok {
			return Result{}, missing(field + ".description")
		}
		if in.RiskLevel == nil {
			return Result{}, missing(field + ".riskLevel")
		}
		level := RiskLevel(strings.TrimSpace(*in.RiskLevel))
		if !level.Valid() {
			return Result{}, &SchemaError{Field: field + ".riskLevel", Reason: fmt.Sprintf("has unknown level %q", *in.RiskLevel)}
		}
		insights = append(insights, KeyInsight{Title: title, Description: desc, RiskLevel: level})
	}

	recs := make([]string, 0, len(*w.Recommendations))
	for _, r := range *w.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			recs = append(recs, r)
		}
	}

	clauses, err := validateClauses(*w.Clauses)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Summary:         summary,
		OverallRisk:     overall,
		KeyInsights:     insights,
		Recommendations: recs,
		Clauses:         clauses,
		RiskStats:       ComputeRiskStats(clauses),
	}, nil
}

// validateClauses checks required clause fields, drops clauses whose level is
// unknown and makes ids unique within the analysis.
func validateClauses(in []wireClause) ([]Clause, error) {
	out := make([]Clause, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, wc := range in {
		field := fmt.Sprintf("clauses[%d]", i)
		id, ok := clauseID(wc.ID)
		if !ok {
			return nil, missing(field + ".id")
		}
		title, ok := requiredString(wc.Title)
		if !ok {
			return nil, missing(field + ".title")
		}
		content, ok := requiredString(wc.Content)
		if !ok {
			return nil, missing(field + ".content")
		}
		explanation, ok := requiredString(wc.Explanation)
		if !ok {
			return nil, missing(field + ".explanation")
		}

		level := RiskLevel("")
		if wc.RiskLevel != nil {
			level = RiskLevel(strings.TrimSpace(*wc.RiskLevel))
		}
		if !level.Valid() {
			metrics.IncClauseAnomaly("invalid_risk_level")
			telemetry.Warn("analysis.clause_dropped", map[string]any{
				"clause_id":  id,
				"risk_level": string(level),
				"reason":     "invalid_risk_level",
			})
			continue
		}

		if _, dup := seen[id]; dup {
			unique := uniqueID(id, seen)
			metrics.IncClauseAnomaly("duplicate_id")
			telemetry.Warn("analysis.clause_renamed", map[string]any{
				"clause_id": id,
				"new_id":    unique,
				"reason":    "duplicate_id",
			})
			id = unique
		}
		seen[id] = struct{}{}

		out = append(out, Clause{
			ID:             id,
			Title:          title,
			Content:        content,
			RiskLevel:      level,
			Explanation:    explanation,
			Recommendation: optionalString(wc.Recommendation),
			Section:        optionalString(wc.Section),
		})
	}
	return out, nil
}

func uniqueID(id string, seen map[string]struct{}) string {
	for n := 2; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if _, taken := seen[candidate]; !taken {
			return candidate
		}
	}
}

// clauseID accepts a string or a number; models emit both.
func clauseID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "a different type"
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.String:
		return "a string"
	default:
		return "a " + t.Kind().String()
	}
}

func requiredString(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// stripCodeFence removes one surrounding markdown fence such as ```json ... ```.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s
	}
	inner := strings.TrimSpace(s[nl+1:])
	if !strings.HasSuffix(inner, "```") {
		return s
	}
	return strings.TrimSpace(strings.TrimSuffix(inner, "```"))
}
