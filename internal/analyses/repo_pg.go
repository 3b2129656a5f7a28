package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectAnalysisColumns = `
SELECT id, document_id, summary, overall_risk, key_insights, recommendations, clauses,
       risk_stats, truncated, analyzed_chars, analyzed_at
FROM document_analyses`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO document_analyses (
	id, document_id, summary, overall_risk, key_insights, recommendations, clauses,
	risk_stats, truncated, analyzed_chars, analyzed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	insights, err := marshalJSONB(analysis.KeyInsights, "[]")
	if err != nil {
		return err
	}
	recs, err := marshalJSONB(analysis.Recommendations, "[]")
	if err != nil {
		return err
	}
	clauses, err := marshalJSONB(analysis.Clauses, "[]")
	if err != nil {
		return err
	}
	stats, err := json.Marshal(analysis.RiskStats)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.DocumentID,
		analysis.Summary,
		string(analysis.OverallRisk),
		insights,
		recs,
		clauses,
		stats,
		analysis.Truncated,
		analysis.AnalyzedChars,
		analysis.AnalyzedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	row := r.DB.QueryRowContext(ctx, selectAnalysisColumns+`
WHERE id = $1
LIMIT 1`, analysisID)
	return scanAnalysis(row)
}

// GetByDocumentID returns the earliest analysis for a document.
func (r *PGRepo) GetByDocumentID(ctx context.Context, documentID string) (Analysis, error) {
	row := r.DB.QueryRowContext(ctx, selectAnalysisColumns+`
WHERE document_id = $1
ORDER BY analyzed_at ASC, id ASC
LIMIT 1`, documentID)
	return scanAnalysis(row)
}

func scanAnalysis(row *sql.Row) (Analysis, error) {
	var (
		a                                    Analysis
		overall                              string
		insights, recs, clauses, riskStatsJS []byte
	)
	err := row.Scan(
		&a.ID,
		&a.DocumentID,
		&a.Summary,
		&overall,
		&insights,
		&recs,
		&clauses,
		&riskStatsJS,
		&a.Truncated,
		&a.AnalyzedChars,
		&a.AnalyzedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	a.OverallRisk = RiskLevel(overall)
	a.AnalyzedAt = a.AnalyzedAt.UTC()
	if err := unmarshalJSONB(insights, &a.KeyInsights); err != nil {
		return Analysis{}, fmt.Errorf("decode key_insights: %w", err)
	}
	if err := unmarshalJSONB(recs, &a.Recommendations); err != nil {
		return Analysis{}, fmt.Errorf("decode recommendations: %w", err)
	}
	if err := unmarshalJSONB(clauses, &a.Clauses); err != nil {
		return Analysis{}, fmt.Errorf("decode clauses: %w", err)
	}
	if err := unmarshalJSONB(riskStatsJS, &a.RiskStats); err != nil {
		return Analysis{}, fmt.Errorf("decode risk_stats: %w", err)
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
	return a, nil
}

func marshalJSONB(value any, empty string) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte(empty), nil
	}
	return data, nil
}

func unmarshalJSONB(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
