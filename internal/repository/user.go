package repository

import (
	"context"

	"github.com/google/uuid"

	"account-service/internal/domain"
)

// UserRepository defines persistence operations for Principal entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, principal *domain.Principal) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Principal, error)
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
	GetByAnonymousID(ctx context.Context, anonymousID uuid.UUID) (*domain.Principal, error)
	// Update writes the principal if its Version still matches the stored row
	// and bumps Version on success. A mismatch returns ErrStale.
	Update(ctx context.Context, principal *domain.Principal) error
	ListIdentified(ctx context.Context) ([]domain.Principal, error)
}

// TokenRepository stores the single bearer token of each principal.
type TokenRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, token *domain.Token) error
	GetByKey(ctx context.Context, key string) (*domain.Token, error)
	GetByPrincipal(ctx context.Context, principalID int64) (*domain.Token, error)
	DeleteByPrincipal(ctx context.Context, principalID int64) error
}

// FieldRepository manages the field of study reference table.
type FieldRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, field *domain.FieldOfStudy) (int64, error)
	Get(ctx context.Context, id int64) (*domain.FieldOfStudy, error)
	List(ctx context.Context) ([]domain.FieldOfStudy, error)
}
