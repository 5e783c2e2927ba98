package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

func TestTokenRepository_CreateAndLookup(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	p := newIdentified("ada@example.com")
	_, err := repos.Users.Create(ctx, p)
	require.NoError(t, err)

	expires := time.Now().Add(time.Hour).UTC()
	require.NoError(t, repos.Tokens.Create(ctx, &domain.Token{Key: "tok-1", PrincipalID: p.ID, ExpiresAt: &expires}))

	byKey, err := repos.Tokens.GetByKey(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byKey.PrincipalID)
	require.NotNil(t, byKey.ExpiresAt)
	assert.WithinDuration(t, expires, *byKey.ExpiresAt, time.Second)

	byPrincipal, err := repos.Tokens.GetByPrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", byPrincipal.Key)

	_, err = repos.Tokens.GetByKey(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTokenRepository_OnePerPrincipal(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	p := newIdentified("ada@example.com")
	_, err := repos.Users.Create(ctx, p)
	require.NoError(t, err)

	require.NoError(t, repos.Tokens.Create(ctx, &domain.Token{Key: "tok-1", PrincipalID: p.ID}))
	err = repos.Tokens.Create(ctx, &domain.Token{Key: "tok-2", PrincipalID: p.ID})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, repos.Tokens.DeleteByPrincipal(ctx, p.ID))
	_, err = repos.Tokens.GetByPrincipal(ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repos.Tokens.Create(ctx, &domain.Token{Key: "tok-2", PrincipalID: p.ID}))
	got, err := repos.Tokens.GetByPrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.Key)
	assert.Nil(t, got.ExpiresAt)
}

func TestTokenRepository_UnknownPrincipal(t *testing.T) {
	repos, _ := setupTestRepos(t)

	err := repos.Tokens.Create(context.Background(), &domain.Token{Key: "tok", PrincipalID: 12345})
	assert.Error(t, err)
}
