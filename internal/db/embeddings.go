package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// UpsertEmbedding stores or replaces the vector for (namespace, id).
func (db *DB) UpsertEmbedding(ctx context.Context, namespace, id string, vec []float32, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO embeddings (namespace, id, embedding, metadata)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace, id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()`,
		namespace, id, pgvector.NewVector(vec), metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// FetchEmbedding returns the stored vector, or nil if there is none.
func (db *DB) FetchEmbedding(ctx context.Context, namespace, id string) ([]float32, error) {
	var vec pgvector.Vector
	err := db.pool.QueryRow(ctx,
		`SELECT embedding FROM embeddings WHERE namespace = $1 AND id = $2`,
		namespace, id,
	).Scan(&vec)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch embedding: %w", err)
	}
	return vec.Slice(), nil
}

// QueryEmbeddings returns the TopK nearest vectors by cosine similarity whose
// metadata contains every key/value in the filter.
func (db *DB) QueryEmbeddings(ctx context.Context, namespace string, q VectorQuery) ([]VectorMatch, error) {
	if q.TopK <= 0 {
		return nil, nil
	}
	filter := q.Filter
	if filter == nil {
		filter = map[string]string{}
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, 1 - (embedding <=> $2) AS score, metadata
		 FROM embeddings
		 WHERE namespace = $1 AND metadata @> $3
		 ORDER BY embedding <=> $2, id
		 LIMIT $4`,
		namespace, pgvector.NewVector(q.Vector), filter, q.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.ID, &m.Score, &m.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan embedding match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CountEmbeddings counts vectors in a namespace matching the metadata filter.
func (db *DB) CountEmbeddings(ctx context.Context, namespace string, filter map[string]string) (int, error) {
	if filter == nil {
		filter = map[string]string{}
	}
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE namespace = $1 AND metadata @> $2`,
		namespace, filter,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// DeleteEmbedding removes a vector. Missing vectors are not an error.
func (db *DB) DeleteEmbedding(ctx context.Context, namespace, id string) error {
	if _, err := db.pool.Exec(ctx,
		`DELETE FROM embeddings WHERE namespace = $1 AND id = $2`,
		namespace, id,
	); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}
