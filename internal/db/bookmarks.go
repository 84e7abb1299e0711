package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AddBookmark records a member's bookmark and bumps the candidate's
// bookmark count. Re-adding an existing bookmark is a no-op.
func (db *DB) AddBookmark(ctx context.Context, jobID, candidateID, memberID uuid.UUID) (bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO bookmarks (job_id, candidate_id, member_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		jobID, candidateID, memberID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert bookmark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE candidates SET bookmark_count = bookmark_count + 1, updated_at = NOW() WHERE id = $1`,
		candidateID,
	); err != nil {
		return false, fmt.Errorf("failed to update bookmark count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit bookmark: %w", err)
	}
	return true, nil
}

// RemoveBookmark deletes a member's bookmark. It returns false when there
// was nothing to remove.
func (db *DB) RemoveBookmark(ctx context.Context, jobID, candidateID, memberID uuid.UUID) (bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM bookmarks WHERE job_id = $1 AND candidate_id = $2 AND member_id = $3`,
		jobID, candidateID, memberID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE candidates SET bookmark_count = GREATEST(bookmark_count - 1, 0), updated_at = NOW()
		 WHERE id = $1`,
		candidateID,
	); err != nil {
		return false, fmt.Errorf("failed to update bookmark count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit bookmark removal: %w", err)
	}
	return true, nil
}

// ListBookmarks returns every bookmark on a job, oldest first.
func (db *DB) ListBookmarks(ctx context.Context, jobID uuid.UUID) ([]Bookmark, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT job_id, candidate_id, member_id, created_at FROM bookmarks
		 WHERE job_id = $1 ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []Bookmark
	for rows.Next() {
		var b Bookmark
		if err := rows.Scan(&b.JobID, &b.CandidateID, &b.MemberID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}
