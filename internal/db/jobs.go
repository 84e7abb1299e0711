package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/talent-match/internal/types"
)

// CreateJob inserts a job with its skill requirements and cultural profile.
func (db *DB) CreateJob(ctx context.Context, input *JobInput) (*Job, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	createdBy := input.CreatedBy
	job := Job{
		OrgID:       input.OrgID,
		Title:       input.Title,
		Description: input.Description,
		Skills:      input.Skills,
		CulturalFit: input.CulturalFit,
	}
	if createdBy != uuid.Nil {
		job.CreatedBy = &createdBy
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO jobs (org_id, title, description, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		input.OrgID, input.Title, input.Description, job.CreatedBy,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	for i, s := range input.Skills {
		if _, err := tx.Exec(ctx,
			`INSERT INTO job_skills (job_id, position, name, score, years_experience, mandatory)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			job.ID, i, s.Name, s.Score, s.YearsExperience, s.Mandatory,
		); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("skill %q listed twice: %w", s.Name, ErrDuplicate)
			}
			return nil, fmt.Errorf("failed to insert job skill: %w", err)
		}
	}

	args := append([]any{job.ID}, culturalFitArgs(input.CulturalFit)...)
	if _, err := tx.Exec(ctx,
		`INSERT INTO job_cultural_fit (job_id, `+culturalFitColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		args...,
	); err != nil {
		return nil, fmt.Errorf("failed to insert job cultural fit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit job: %w", err)
	}
	return &job, nil
}

// GetJob returns a job with requirements, or nil if not found.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	err := db.pool.QueryRow(ctx,
		`SELECT id, org_id, title, description, created_by, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.OrgID, &job.Title, &job.Description, &job.CreatedBy, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT name, score, years_experience, mandatory FROM job_skills
		 WHERE job_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job skills: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s types.ExpectedSkill
		if err := rows.Scan(&s.Name, &s.Score, &s.YearsExperience, &s.Mandatory); err != nil {
			return nil, fmt.Errorf("failed to scan job skill: %w", err)
		}
		job.Skills = append(job.Skills, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job skills: %w", err)
	}

	fit, err := scanCulturalFit(db.pool.QueryRow(ctx,
		`SELECT `+culturalFitColumns+` FROM job_cultural_fit WHERE job_id = $1`, id,
	))
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to get job cultural fit: %w", err)
	}
	job.CulturalFit = fit

	return &job, nil
}
