package search

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Index stores a document for a post. Redelivered create events hit the
// conflict clause and become no-ops.
func (r *Repository) Index(ctx context.Context, d *Document) error {
	const sql = `
		INSERT INTO search_documents (post_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, sql, d.PostID, d.UserID, d.Content, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	return nil
}

// DeleteByPostID removes the document for a post; deleting an already-absent
// row is fine (redelivery).
func (r *Repository) DeleteByPostID(ctx context.Context, postID string) error {
	const sql = `DELETE FROM search_documents WHERE post_id = $1`
	if _, err := r.pool.Exec(ctx, sql, postID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Search returns the newest documents whose content matches the query.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	const sql = `
		SELECT post_id, user_id, content, created_at
		FROM search_documents
		WHERE content ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.PostID, &d.UserID, &d.Content, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return docs, nil
}
