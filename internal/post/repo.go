package post

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p *Post) error {
	const sql = `
		INSERT INTO posts (id, user_id, content, media_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, sql, p.ID, p.UserID, p.Content, p.MediaIDs, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Post, error) {
	const sql = `
		SELECT id, user_id, content, media_ids, created_at
		FROM posts
		WHERE id = $1
	`
	var p Post
	err := r.pool.QueryRow(ctx, sql, id).
		Scan(&p.ID, &p.UserID, &p.Content, &p.MediaIDs, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

func (r *Repository) List(ctx context.Context, offset, limit int) ([]Post, error) {
	const sql = `
		SELECT id, user_id, content, media_ids, created_at
		FROM posts
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2
	`
	rows, err := r.pool.Query(ctx, sql, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.MediaIDs, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// DeleteOwned removes the post only if it belongs to userID and returns the
// deleted row so the caller can publish its media ids.
func (r *Repository) DeleteOwned(ctx context.Context, id, userID string) (*Post, error) {
	const sql = `
		DELETE FROM posts
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, content, media_ids, created_at
	`
	var p Post
	err := r.pool.QueryRow(ctx, sql, id, userID).
		Scan(&p.ID, &p.UserID, &p.Content, &p.MediaIDs, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}
	return &p, nil
}
