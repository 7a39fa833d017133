package template

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "dataforge/internal/db"
	"dataforge/internal/db/repository"
	"dataforge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T) (*Service, *domain.User) {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	owner, err := repository.NewUserRepo(writeDB).Create(context.Background(), &domain.User{
		Email: "tpl@example.com", PasswordHash: "x",
	})
	require.NoError(t, err)
	svc := NewService(
		repository.NewTemplateRepo(writeDB),
		repository.NewAuditRepo(writeDB),
		testLogger(),
	)
	return svc, owner
}

func TestService_CreateGetList(t *testing.T) {
	svc, owner := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, domain.CreateTemplateRequest{
		Name: "daily-rollup",
		SQL:  "SELECT day, SUM(total) FROM orders GROUP BY day",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, owner.ID, created.CreatedBy)

	byName, err := svc.GetByName(ctx, "daily-rollup")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	list, total, err := svc.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	t.Run("validation", func(t *testing.T) {
		var valErr *domain.ValidationError
		_, err := svc.Create(ctx, owner, domain.CreateTemplateRequest{SQL: "SELECT 1"})
		assert.ErrorAs(t, err, &valErr)
		_, err = svc.Create(ctx, owner, domain.CreateTemplateRequest{Name: "no-sql"})
		assert.ErrorAs(t, err, &valErr)
	})
}

func TestService_Update(t *testing.T) {
	svc, owner := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, domain.CreateTemplateRequest{
		Name: "edit-me", SQL: "SELECT 1",
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner, created.ID, "SELECT 2", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", updated.SQL)

	var valErr *domain.ValidationError
	_, err = svc.Update(ctx, owner, created.ID, "   ", nil)
	assert.ErrorAs(t, err, &valErr)

	var notFound *domain.NotFoundError
	_, err = svc.Update(ctx, owner, "missing", "SELECT 1", nil)
	assert.ErrorAs(t, err, &notFound)
}

func TestService_Delete(t *testing.T) {
	svc, owner := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, domain.CreateTemplateRequest{
		Name: "gone", SQL: "SELECT 1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner, created.ID))

	var notFound *domain.NotFoundError
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorAs(t, err, &notFound)
	assert.ErrorAs(t, svc.Delete(ctx, owner, created.ID), &notFound)
}
