package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

const createTokensTable = `
CREATE TABLE IF NOT EXISTS tokens (
	token_key TEXT PRIMARY KEY,
	principal_id INTEGER NOT NULL UNIQUE REFERENCES users(id),
	created_at DATETIME NOT NULL,
	expires_at DATETIME NULL
);
`

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

var _ repository.TokenRepository = (*TokenRepository)(nil)

func (r *TokenRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTokensTable); err != nil {
		return fmt.Errorf("create tokens table: %w", err)
	}
	return nil
}

func (r *TokenRepository) Create(ctx context.Context, token *domain.Token) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO tokens (token_key, principal_id, created_at, expires_at)
VALUES (?, ?, ?, ?)`,
		token.Key,
		token.PrincipalID,
		token.CreatedAt.UTC(),
		nullTime(token.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert token: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetByKey(ctx context.Context, key string) (*domain.Token, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT token_key, principal_id, created_at, expires_at
FROM tokens
WHERE token_key = ?`,
		key,
	)
	return scanToken(row)
}

func (r *TokenRepository) GetByPrincipal(ctx context.Context, principalID int64) (*domain.Token, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT token_key, principal_id, created_at, expires_at
FROM tokens
WHERE principal_id = ?`,
		principalID,
	)
	return scanToken(row)
}

func (r *TokenRepository) DeleteByPrincipal(ctx context.Context, principalID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE principal_id = ?`, principalID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func scanToken(row interface {
	Scan(dest ...any) error
}) (*domain.Token, error) {
	var (
		token     domain.Token
		expiresAt sql.NullTime
	)
	if err := row.Scan(&token.Key, &token.PrincipalID, &token.CreatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("token: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		token.ExpiresAt = &t
	}
	return &token, nil
}
