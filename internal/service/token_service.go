package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"account-service/internal/auth"
	"account-service/internal/domain"
	"account-service/internal/repository"
)

// TokenCache remembers live token to principal bindings in front of the store.
// Set never keeps an entry longer than ttl when ttl is positive.
type TokenCache interface {
	Get(ctx context.Context, token string) (int64, bool, error)
	Set(ctx context.Context, token string, principalID int64, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

// TokenService issues and resolves bearer tokens.
type TokenService interface {
	// Issue returns the principal's live token, minting one if needed.
	Issue(ctx context.Context, principal *domain.Principal) (string, error)
	// Resolve returns the principal bound to token or ErrAuth.
	Resolve(ctx context.Context, token string) (*domain.Principal, error)
}

type TokenConfig struct {
	TTL    time.Duration
	Cache  TokenCache
	Logger *logrus.Logger
}

type tokenService struct {
	cfg    TokenConfig
	signer *auth.Signer
	tokens repository.TokenRepository
	users  repository.UserRepository
	now    func() time.Time
}

func NewTokenService(signer *auth.Signer, tokens repository.TokenRepository, users repository.UserRepository, cfg TokenConfig) TokenService {
	if cfg.Cache == nil {
		cfg.Cache = nopCache{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &tokenService{
		cfg:    cfg,
		signer: signer,
		tokens: tokens,
		users:  users,
		now:    time.Now,
	}
}

func (s *tokenService) Issue(ctx context.Context, principal *domain.Principal) (string, error) {
	if principal == nil || principal.ID <= 0 {
		return "", fmt.Errorf("issue token: principal is not persisted")
	}
	logger := s.cfg.Logger.WithField("user_id", principal.ID)
	now := s.now()

	existing, err := s.tokens.GetByPrincipal(ctx, principal.ID)
	switch {
	case err == nil && !existing.Expired(now):
		return existing.Key, nil
	case err == nil:
		if err := s.tokens.DeleteByPrincipal(ctx, principal.ID); err != nil {
			return "", err
		}
		if err := s.cfg.Cache.Delete(ctx, existing.Key); err != nil {
			logger.Warnf("evict expired token: %v", err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return "", err
	}

	key, err := s.signer.Generate(principal.ID, s.cfg.TTL)
	if err != nil {
		return "", err
	}
	token := &domain.Token{Key: key, PrincipalID: principal.ID, CreatedAt: now.UTC()}
	if s.cfg.TTL > 0 {
		expires := now.Add(s.cfg.TTL).UTC()
		token.ExpiresAt = &expires
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return "", err
		}
		// a concurrent exchange stored its token first
		winner, err := s.tokens.GetByPrincipal(ctx, principal.ID)
		if err != nil {
			return "", err
		}
		return winner.Key, nil
	}

	logger.Info("token issued")
	return key, nil
}

func (s *tokenService) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	principalID, err := s.signer.Verify(token)
	if err != nil {
		return nil, ErrAuth
	}

	cachedID, hit, err := s.cfg.Cache.Get(ctx, token)
	if err != nil {
		s.cfg.Logger.Warnf("token cache lookup: %v", err)
	}
	if !hit || cachedID != principalID {
		stored, err := s.tokens.GetByKey(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrAuth
			}
			return nil, err
		}
		now := s.now()
		if stored.PrincipalID != principalID || stored.Expired(now) {
			return nil, ErrAuth
		}
		var ttl time.Duration
		if stored.ExpiresAt != nil {
			ttl = stored.ExpiresAt.Sub(now)
		}
		if err := s.cfg.Cache.Set(ctx, token, principalID, ttl); err != nil {
			s.cfg.Logger.Warnf("token cache store: %v", err)
		}
	}

	principal, err := s.users.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuth
		}
		return nil, err
	}
	return principal.Sanitized(), nil
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (int64, bool, error)        { return 0, false, nil }
func (nopCache) Set(context.Context, string, int64, time.Duration) error { return nil }
func (nopCache) Delete(context.Context, string) error                    { return nil }
