package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "dataforge/internal/db"
	"dataforge/internal/domain"
)

func setupUserRepo(t *testing.T) *UserRepo {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	return NewUserRepo(writeDB)
}

// seedUser inserts a user directly; shared by tests in this package that need
// an owner row for foreign keys.
func seedUser(t *testing.T, repo *UserRepo, email string) *domain.User {
	t.Helper()
	u, err := repo.Create(context.Background(), &domain.User{
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "x",
	})
	require.NoError(t, err)
	return u
}

func TestUser_CreateAndGet(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.User{
		Email:        "ana@example.com",
		DisplayName:  "Ana",
		PasswordHash: "bcrypt-hash",
		Plan:         domain.PlanPro,
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Positive(t, created.ID)
	assert.Equal(t, "ana@example.com", created.Email)
	assert.Equal(t, "Ana", created.DisplayName)
	assert.Equal(t, domain.PlanPro, created.Plan)
	assert.False(t, created.Disabled)
	assert.False(t, created.CreatedAt.IsZero())

	t.Run("get_by_id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Email, got.Email)
	})

	t.Run("get_by_email", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("get_nonexistent", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 99999)
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)

		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestUser_DefaultPlan(t *testing.T) {
	repo := setupUserRepo(t)

	u, err := repo.Create(context.Background(), &domain.User{
		Email:        "free@example.com",
		PasswordHash: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, u.Plan)
}

func TestUser_DuplicateEmail(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	seedUser(t, repo, "dup@example.com")

	_, err := repo.Create(ctx, &domain.User{Email: "dup@example.com", PasswordHash: "x"})
	require.Error(t, err)
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestUser_SetPlanAndDisabled(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()
	u := seedUser(t, repo, "plan@example.com")

	require.NoError(t, repo.SetPlan(ctx, u.ID, domain.PlanAdmin))
	require.NoError(t, repo.SetDisabled(ctx, u.ID, true))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanAdmin, got.Plan)
	assert.True(t, got.Disabled)

	var notFound *domain.NotFoundError
	assert.ErrorAs(t, repo.SetPlan(ctx, 99999, domain.PlanPro), &notFound)
	assert.ErrorAs(t, repo.SetDisabled(ctx, 99999, true), &notFound)
}

func TestUser_ExecutionMode(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()
	u := seedUser(t, repo, "mode@example.com")

	mode, err := repo.GetExecutionMode(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeEmbedded, mode, "new accounts start in embedded mode")

	require.NoError(t, repo.SetExecutionMode(ctx, u.ID, domain.ModeRemote))
	mode, err = repo.GetExecutionMode(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRemote, mode)
}

func TestUser_ListPaginated(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		seedUser(t, repo, email)
	}

	users, total, err := repo.List(ctx, domain.PageRequest{MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 2)

	users, total, err = repo.List(ctx, domain.PageRequest{MaxResults: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 1)
}

func TestUser_Delete(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()
	u := seedUser(t, repo, "gone@example.com")

	require.NoError(t, repo.Delete(ctx, u.ID))

	_, err := repo.GetByID(ctx, u.ID)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.ErrorAs(t, repo.Delete(ctx, u.ID), &notFound)
}
