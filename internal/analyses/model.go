package analyses

import "time"

// RiskLevel grades a clause, an insight or a whole document.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Valid reports whether r is one of the three known levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskSafe, RiskModerate, RiskHigh:
		return true
	default:
		return false
	}
}

// KeyInsight is a headline finding about the document.
type KeyInsight struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RiskLevel   RiskLevel `json:"riskLevel"`
}

// Clause is one analysed clause, in document order.
type Clause struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	Explanation    string    `json:"explanation"`
	Recommendation string    `json:"recommendation,omitempty"`
	Section        string    `json:"section,omitempty"`
}

// RiskStats counts clauses by risk level.
type RiskStats struct {
	Safe     int `json:"safe"`
	Moderate int `json:"moderate"`
	High     int `json:"high"`
	Total    int `json:"total"`
}

// Result is a validated model answer before it is attached to a document.
type Result struct {
	Summary         string
	OverallRisk     RiskLevel
	KeyInsights     []KeyInsight
	Recommendations []string
	Clauses         []Clause
	RiskStats       RiskStats
	Truncated       bool
	AnalyzedChars   int
}

// Analysis is the stored analysis of one document.
type Analysis struct {
	ID              string       `json:"id"`
	DocumentID      string       `json:"documentId"`
	Summary         string       `json:"summary"`
	OverallRisk     RiskLevel    `json:"overallRisk"`
	KeyInsights     []KeyInsight `json:"keyInsights"`
	Recommendations []string     `json:"recommendations"`
	Clauses         []Clause     `json:"clauses"`
	RiskStats       RiskStats    `json:"riskStats"`
	Truncated       bool         `json:"truncated"`
	AnalyzedChars   int          `json:"analyzedChars"`
	AnalyzedAt      time.Time    `json:"analyzedAt"`
}

// NewAnalysis attaches a result to a document. Stats are recomputed from the
// clause list so the stored record always agrees with it.
func NewAnalysis(id, documentID string, res Result, analyzedAt time.Time) Analysis {
	a := Analysis{
		ID:              id,
		DocumentID:      documentID,
		Summary:         res.Summary,
		OverallRisk:     res.OverallRisk,
		KeyInsights:     res.KeyInsights,
		Recommendations: res.Recommendations,
		Clauses:         res.Clauses,
		RiskStats:       ComputeRiskStats(res.Clauses),
		Truncated:       res.Truncated,
		AnalyzedChars:   res.AnalyzedChars,
		AnalyzedAt:      analyzedAt.UTC(),
	}
	if a.KeyInsights == nil {
		a.KeyInsights = []KeyInsight{}
	}
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	if a.Clauses == nil {
		a.Clauses = []Clause{}
	}
	return a
}

// ComputeRiskStats partitions clauses by level. Clauses with an unknown
// level add to Total only; validated results never contain any.
func ComputeRiskStats(clauses []Clause) RiskStats {
	stats := RiskStats{Total: len(clauses)}
	for _, c := range clauses {
		switch c.RiskLevel {
		case RiskSafe:
			stats.Safe++
		case RiskModerate:
			stats.Moderate++
		case RiskHigh:
			stats.High++
		}
	}
	return stats
}
