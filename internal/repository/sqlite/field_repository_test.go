package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

func TestFieldRepository(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	for _, name := range []string{"Physics", "Biology", "Mathematics"} {
		_, err := repos.Fields.Create(ctx, &domain.FieldOfStudy{Name: name})
		require.NoError(t, err)
	}

	_, err := repos.Fields.Create(ctx, &domain.FieldOfStudy{Name: "physics"})
	assert.ErrorIs(t, err, repository.ErrDuplicate, "names are unique regardless of case")

	fields, err := repos.Fields.List(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "Biology", fields[0].Name)
	assert.Equal(t, "Mathematics", fields[1].Name)
	assert.Equal(t, "Physics", fields[2].Name)

	got, err := repos.Fields.Get(ctx, fields[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Biology", got.Name)

	_, err = repos.Fields.Get(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
