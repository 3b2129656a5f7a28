package llm

import (
	_ "embed"
	"fmt"
)

//go:embed prompts/legal_analysis_v1.txt
var legalAnalysisSystemV1 string

var riskLevels = []string{"safe", "moderate", "high"}

// LegalAnalysisSystemPrompt returns the system instruction for contract review.
func LegalAnalysisSystemPrompt() string {
	return legalAnalysisSystemV1
}

// LegalAnalysisUserPrompt wraps the document text for the model.
func LegalAnalysisUserPrompt(fileName, text string) string {
	return fmt.Sprintf("Please analyze this legal document: %q\n\nDocument content:\n%s\n\nProvide a comprehensive analysis following the JSON format specified.", fileName, text)
}

// LegalAnalysisSchema describes the JSON object the model must return.
func LegalAnalysisSchema() *Schema {
	str := func(desc string) *Schema { return &Schema{Type: TypeString, Description: desc} }
	risk := &Schema{Type: TypeString, Enum: riskLevels}
	count := &Schema{Type: TypeInteger}

	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"summary":     str("Plain language summary of the document"),
			"overallRisk": risk,
			"keyInsights": {
				Type: TypeArray,
				Items: &Schema{
					Type: TypeObject,
					Properties: map[string]*Schema{
						"title":       str("Brief insight title"),
						"description": str("Description of the insight"),
						"riskLevel":   risk,
					},
					Required: []string{"title", "description", "riskLevel"},
				},
			},
			"recommendations": {Type: TypeArray, Items: str("Actionable recommendation")},
			"clauses": {
				Type: TypeArray,
				Items: &Schema{
					Type: TypeObject,
					Properties: map[string]*Schema{
						"id":             str("Unique clause id"),
						"title":          str("Clause title"),
						"content":        str("Original clause text"),
						"riskLevel":      risk,
						"explanation":    str("Plain language explanation"),
						"recommendation": str("Specific recommendation for this clause"),
						"section":        str("Section number or reference"),
					},
					Required: []string{"id", "title", "content", "riskLevel", "explanation"},
				},
			},
			"riskStats": {
				Type: TypeObject,
				Properties: map[string]*Schema{
					"safe":     count,
					"moderate": count,
					"high":     count,
					"total":    count,
				},
			},
		},
		Required: []string{"summary", "overallRisk", "keyInsights", "recommendations", "clauses"},
	}
}
