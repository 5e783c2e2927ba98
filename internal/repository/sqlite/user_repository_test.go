package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

// setupTestRepos opens a fresh database in a temp dir with every table created.
func setupTestRepos(t *testing.T) (*Repositories, *sql.DB) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	repos, err := NewRepositories(context.Background(), db)
	require.NoError(t, err)
	return repos, db
}

func newIdentified(email string) *domain.Principal {
	return domain.NewIdentified("Ada", domain.IdentifiedProfile{
		Email:          email,
		PasswordHash:   "$2a$10$abcdefghijklmnopqrstuv",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		EducationLevel: domain.EducationLicentiate,
	})
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	p := newIdentified("ada@example.com")
	id, err := repos.Users.Create(ctx, p)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, int64(1), p.Version)

	got, err := repos.Users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PrincipalIdentified, got.Kind)
	assert.Nil(t, got.Anonymous)
	require.NotNil(t, got.Identified)
	assert.Equal(t, "ada@example.com", got.Identified.Email)
	assert.Equal(t, p.Identified.PasswordHash, got.Identified.PasswordHash)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "Lovelace", got.Identified.LastName)
	assert.Equal(t, domain.EducationLicentiate, got.Identified.EducationLevel)
	assert.Nil(t, got.Identified.FieldOfStudyID)
	assert.False(t, got.Identified.IsStaff)
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Second)

	byEmail, err := repos.Users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
}

func TestUserRepository_CreateAnonymous(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	anonID := uuid.New()
	p := domain.NewAnonymous(anonID)
	_, err := repos.Users.Create(ctx, p)
	require.NoError(t, err)

	got, err := repos.Users.GetByAnonymousID(ctx, anonID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.IsAnonymous())
	assert.Nil(t, got.Identified)
	assert.Equal(t, anonID, got.Anonymous.AnonymousID)

	_, err = repos.Users.GetByAnonymousID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repos, db := setupTestRepos(t)
	ctx := context.Background()

	_, err := repos.Users.Create(ctx, newIdentified("ada@example.com"))
	require.NoError(t, err)

	_, err = repos.Users.Create(ctx, newIdentified("ada@example.com"))
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUserRepository_RejectsMixedProfiles(t *testing.T) {
	repos, db := setupTestRepos(t)
	ctx := context.Background()

	p := newIdentified("ada@example.com")
	p.Anonymous = &domain.AnonymousProfile{AnonymousID: uuid.New()}
	_, err := repos.Users.Create(ctx, p)
	assert.Error(t, err)

	// the table refuses the row even when application checks are bypassed
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO users (kind, email, anonymous_id, password_hash, created_at, updated_at)
VALUES ('identified', 'x@example.com', ?, 'hash', ?, ?)`, uuid.NewString(), now, now)
	assert.Error(t, err)

	_, err = db.Exec(`INSERT INTO users (kind, created_at, updated_at) VALUES ('anonymous', ?, ?)`, now, now)
	assert.Error(t, err)
}

func TestUserRepository_GetNotFound(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	_, err := repos.Users.GetByID(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repos.Users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_UpdateVersioning(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	p := newIdentified("ada@example.com")
	_, err := repos.Users.Create(ctx, p)
	require.NoError(t, err)

	first, err := repos.Users.GetByID(ctx, p.ID)
	require.NoError(t, err)
	second, err := repos.Users.GetByID(ctx, p.ID)
	require.NoError(t, err)

	first.Name = "Countess"
	first.Identified.IsAuthor = true
	require.NoError(t, repos.Users.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Name = "Lost write"
	err = repos.Users.Update(ctx, second)
	assert.ErrorIs(t, err, repository.ErrStale)

	got, err := repos.Users.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Countess", got.Name)
	assert.True(t, got.Identified.IsAuthor)
	assert.Equal(t, int64(2), got.Version)
}

func TestUserRepository_UpdateMissing(t *testing.T) {
	repos, _ := setupTestRepos(t)

	p := newIdentified("ada@example.com")
	p.ID = 99
	p.Version = 1
	err := repos.Users.Update(context.Background(), p)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_FieldOfStudyReference(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	field := &domain.FieldOfStudy{Name: "Mathematics"}
	_, err := repos.Fields.Create(ctx, field)
	require.NoError(t, err)

	p := newIdentified("ada@example.com")
	p.Identified.FieldOfStudyID = &field.ID
	_, err = repos.Users.Create(ctx, p)
	require.NoError(t, err)

	got, err := repos.Users.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Identified.FieldOfStudyID)
	assert.Equal(t, field.ID, *got.Identified.FieldOfStudyID)

	missing := int64(404)
	other := newIdentified("grace@example.com")
	other.Identified.FieldOfStudyID = &missing
	_, err = repos.Users.Create(ctx, other)
	assert.Error(t, err, "foreign key should reject unknown field")
}

func TestUserRepository_ListIdentified(t *testing.T) {
	repos, _ := setupTestRepos(t)
	ctx := context.Background()

	emails := []string{"c@example.com", "a@example.com", "b@example.com"}
	for i, email := range emails {
		_, err := repos.Users.Create(ctx, newIdentified(email))
		require.NoError(t, err)
		if i == 0 {
			_, err = repos.Users.Create(ctx, domain.NewAnonymous(uuid.New()))
			require.NoError(t, err)
		}
	}

	users, err := repos.Users.ListIdentified(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i, u := range users {
		assert.Equal(t, emails[i], u.Identified.Email, "creation order")
		assert.False(t, u.IsAnonymous())
	}
}
