package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/talent-match/internal/types"
)

const culturalFitColumns = `product_score, customer_score, teamwork_score, ownership_score,
	innovation_score, communication_score, adaptability_score, integrity_score`

func culturalFitArgs(fit types.CulturalFit) []any {
	v := fit.Values()
	args := make([]any, len(v))
	for i := range v {
		args[i] = v[i]
	}
	return args
}

func scanCulturalFit(row pgx.Row) (types.CulturalFit, error) {
	var v [8]float64
	if err := row.Scan(&v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6], &v[7]); err != nil {
		return types.CulturalFit{}, err
	}
	return types.CulturalFitFromValues(v), nil
}

// CreateCandidate inserts a candidate with skills and cultural fit in one transaction.
func (db *DB) CreateCandidate(ctx context.Context, input *CandidateInput) (*Candidate, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c := Candidate{
		OrgID:       input.OrgID,
		Name:        input.Name,
		Email:       input.Email,
		Phone:       input.Phone,
		ResumeKey:   input.ResumeKey,
		Skills:      input.Skills,
		CulturalFit: &input.CulturalFit,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO candidates (org_id, name, email, phone, resume_key)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, bookmark_count, created_at, updated_at`,
		input.OrgID, input.Name, input.Email, input.Phone, input.ResumeKey,
	).Scan(&c.ID, &c.BookmarkCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert candidate: %w", err)
	}

	for _, s := range input.Skills {
		if _, err := tx.Exec(ctx,
			`INSERT INTO candidate_skills (candidate_id, name, score, years_experience)
			 VALUES ($1, $2, $3, $4)`,
			c.ID, s.Name, s.Score, s.YearsExperience,
		); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("skill %q listed twice: %w", s.Name, ErrDuplicate)
			}
			return nil, fmt.Errorf("failed to insert candidate skill: %w", err)
		}
	}

	args := append([]any{c.ID}, culturalFitArgs(input.CulturalFit)...)
	if _, err := tx.Exec(ctx,
		`INSERT INTO candidate_cultural_fit (candidate_id, `+culturalFitColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		args...,
	); err != nil {
		return nil, fmt.Errorf("failed to insert candidate cultural fit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit candidate: %w", err)
	}
	return &c, nil
}

// GetCandidate returns a candidate with skills and cultural fit, or nil if not found.
func (db *DB) GetCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error) {
	var c Candidate
	err := db.pool.QueryRow(ctx,
		`SELECT id, org_id, name, email, phone, resume_key, bookmark_count, created_at, updated_at
		 FROM candidates WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &c.ResumeKey, &c.BookmarkCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT name, score, years_experience FROM candidate_skills
		 WHERE candidate_id = $1 ORDER BY name`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate skills: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s types.SkillScore
		if err := rows.Scan(&s.Name, &s.Score, &s.YearsExperience); err != nil {
			return nil, fmt.Errorf("failed to scan candidate skill: %w", err)
		}
		c.Skills = append(c.Skills, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidate skills: %w", err)
	}

	fit, err := scanCulturalFit(db.pool.QueryRow(ctx,
		`SELECT `+culturalFitColumns+` FROM candidate_cultural_fit WHERE candidate_id = $1`, id,
	))
	switch {
	case err == nil:
		c.CulturalFit = &fit
	case err != pgx.ErrNoRows:
		return nil, fmt.Errorf("failed to get candidate cultural fit: %w", err)
	}

	return &c, nil
}

// GetCandidatesByIDs returns candidate rows without skills, keyed by id.
// Unknown ids are omitted.
func (db *DB) GetCandidatesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Candidate, error) {
	out := make(map[uuid.UUID]Candidate, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, org_id, name, email, phone, resume_key, bookmark_count, created_at, updated_at
		 FROM candidates WHERE id = ANY($1::uuid[])`,
		uuidStrings(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &c.ResumeKey,
			&c.BookmarkCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// DeleteCandidate removes a candidate and everything that references it,
// including its embedding, in one transaction. It returns false when the
// candidate does not exist.
func (db *DB) DeleteCandidate(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// call_details and embeddings are not foreign-keyed to candidates;
	// everything else cascades.
	if _, err := tx.Exec(ctx, `DELETE FROM call_details WHERE candidate_id = $1`, id); err != nil {
		return false, fmt.Errorf("failed to delete candidate call details: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM embeddings WHERE namespace = $1 AND id = $2`,
		NamespaceCandidates, id.String(),
	); err != nil {
		return false, fmt.Errorf("failed to delete candidate embedding: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit candidate delete: %w", err)
	}
	return true, nil
}
