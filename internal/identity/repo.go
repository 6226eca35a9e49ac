package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"social/internal/infrastructure/postgres"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// db picks the transaction from context when one is open, the pool otherwise.
func (r *Repository) db(ctx context.Context) querier {
	if tx := postgres.GetTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	const sql = `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db(ctx).Exec(ctx, sql, u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByLogin matches either username or email.
func (r *Repository) FindByLogin(ctx context.Context, login string) (*User, error) {
	const sql = `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = $1 OR email = $1
	`
	return r.scanUser(r.db(ctx).QueryRow(ctx, sql, login))
}

func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	const sql = `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db(ctx).QueryRow(ctx, sql, id))
}

func (r *Repository) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *Repository) SaveRefreshToken(ctx context.Context, t *RefreshToken) error {
	const sql = `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db(ctx).Exec(ctx, sql, t.Token, t.UserID, t.ExpiresAt); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *Repository) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	const sql = `
		SELECT token, user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1
	`
	var t RefreshToken
	err := r.db(ctx).QueryRow(ctx, sql, token).Scan(&t.Token, &t.UserID, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &t, nil
}

func (r *Repository) DeleteRefreshToken(ctx context.Context, token string) error {
	const sql = `DELETE FROM refresh_tokens WHERE token = $1`
	if _, err := r.db(ctx).Exec(ctx, sql, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
