package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/talent-match/internal/types"
)

const analysisColumns = `id, job_id, candidate_id, status, data, rank, newly_analysed,
	attempts, error_message, created_at, updated_at`

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	var data []byte
	if err := row.Scan(&a.ID, &a.JobID, &a.CandidateID, &a.Status, &data, &a.Rank,
		&a.NewlyAnalysed, &a.Attempts, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		var d types.AnalysisData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode analysis %s: %w", a.ID, err)
		}
		a.Data = &d
	}
	return &a, nil
}

// GetAnalysis returns the analysis for a pair, or nil if none exists.
func (db *DB) GetAnalysis(ctx context.Context, jobID, candidateID uuid.UUID) (*Analysis, error) {
	a, err := scanAnalysis(db.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE job_id = $1 AND candidate_id = $2`,
		jobID, candidateID,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ClaimAnalysis inserts a pending placeholder for the pair. It returns nil
// when another caller already holds a record for the pair.
func (db *DB) ClaimAnalysis(ctx context.Context, jobID, candidateID uuid.UUID) (*Analysis, error) {
	a, err := scanAnalysis(db.pool.QueryRow(ctx,
		`INSERT INTO analyses (job_id, candidate_id, status)
		 VALUES ($1, $2, 'pending')
		 ON CONFLICT (job_id, candidate_id) DO NOTHING
		 RETURNING `+analysisColumns,
		jobID, candidateID,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim analysis: %w", err)
	}
	return a, nil
}

// ReclaimAnalysis moves a failed record, or a pending one last touched
// before staleBefore, back to pending. It returns nil when the record is not
// eligible, including when a concurrent caller reclaimed it first.
func (db *DB) ReclaimAnalysis(ctx context.Context, id uuid.UUID, staleBefore time.Time) (*Analysis, error) {
	a, err := scanAnalysis(db.pool.QueryRow(ctx,
		`UPDATE analyses
		 SET status = 'pending', attempts = attempts + 1, error_message = NULL, updated_at = NOW()
		 WHERE id = $1 AND (status = 'failed' OR (status = 'pending' AND updated_at < $2))
		 RETURNING `+analysisColumns,
		id, staleBefore,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reclaim analysis: %w", err)
	}
	return a, nil
}

// CompleteAnalysis stores the result and rank and marks the record newly analysed.
func (db *DB) CompleteAnalysis(ctx context.Context, id uuid.UUID, data *types.AnalysisData, rank int) (*Analysis, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis data: %w", err)
	}

	a, err := scanAnalysis(db.pool.QueryRow(ctx,
		`UPDATE analyses
		 SET status = 'complete', data = $2, rank = $3, newly_analysed = TRUE,
		     error_message = NULL, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+analysisColumns,
		id, payload, rank,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("analysis not found: %s", id)
		}
		return nil, fmt.Errorf("failed to complete analysis: %w", err)
	}
	return a, nil
}

// FailAnalysis marks a claimed record as failed so it can be retried.
func (db *DB) FailAnalysis(ctx context.Context, id uuid.UUID, message string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE analyses SET status = 'failed', error_message = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'`,
		id, message,
	)
	if err != nil {
		return fmt.Errorf("failed to mark analysis failed: %w", err)
	}
	return nil
}

// CountHigherScores counts completed analyses for the job, other than
// excludeID, whose match score is strictly greater than score.
func (db *DB) CountHigherScores(ctx context.Context, jobID uuid.UUID, score float64, excludeID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analyses
		 WHERE job_id = $1 AND status = 'complete' AND id <> $3 AND match_score > $2`,
		jobID, score, excludeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count higher scores: %w", err)
	}
	return n, nil
}

// ListAnalysesByJob returns every analysis for the job, best first.
func (db *DB) ListAnalysesByJob(ctx context.Context, jobID uuid.UUID) ([]Analysis, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM analyses
		 WHERE job_id = $1
		 ORDER BY match_score DESC NULLS LAST, candidate_id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// AcknowledgeAnalyses clears the newly analysed flag.
func (db *DB) AcknowledgeAnalyses(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE analyses SET newly_analysed = FALSE WHERE id = ANY($1::uuid[])`,
		uuidStrings(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge analyses: %w", err)
	}
	return nil
}

// ListRetryableAnalyses returns failed analyses and pending ones last
// touched before staleBefore, oldest first.
func (db *DB) ListRetryableAnalyses(ctx context.Context, staleBefore time.Time, limit int) ([]Analysis, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM analyses
		 WHERE status = 'failed' OR (status = 'pending' AND updated_at < $1)
		 ORDER BY updated_at
		 LIMIT $2`,
		staleBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
