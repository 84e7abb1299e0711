package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpsertMember mirrors a member from the identity provider.
func (db *DB) UpsertMember(ctx context.Context, m *Member) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO members (id, org_id, name, email)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
		 RETURNING created_at`,
		m.ID, m.OrgID, m.Name, m.Email,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

// MemberDisplayName returns the member's name, falling back to email.
// An unknown member yields an empty string.
func (db *DB) MemberDisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(NULLIF(name, ''), email) FROM members WHERE id = $1`,
		id,
	).Scan(&name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get member: %w", err)
	}
	return name, nil
}
