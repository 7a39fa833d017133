package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/mattn/go-sqlite3"

	"dataforge/internal/domain"
)

func TestUserService_Create(t *testing.T) {
	fx := newAdminFixture(t)
	ctx := context.Background()
	svc := NewUserService(fx.users, fx.audit, testLogger())
	actor := &domain.User{Email: "root@test", Plan: domain.PlanAdmin}

	t.Run("hashes password with bcrypt", func(t *testing.T) {
		u, err := svc.Create(ctx, actor, domain.CreateUserRequest{
			Email:    "new@example.com",
			Password: "plaintext-pw",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PlanFree, u.Plan, "plan defaults to free")
		assert.NotEqual(t, "plaintext-pw", u.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("plaintext-pw")))
	})

	t.Run("rejects invalid request", func(t *testing.T) {
		_, err := svc.Create(ctx, actor, domain.CreateUserRequest{Email: "bad", Password: "short"})
		var valErr *domain.ValidationError
		assert.ErrorAs(t, err, &valErr)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		_, err := svc.Create(ctx, actor, domain.CreateUserRequest{
			Email:    "new@example.com",
			Password: "plaintext-pw",
		})
		var conflict *domain.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})
}

func TestUserService_SetPlan(t *testing.T) {
	fx := newAdminFixture(t)
	ctx := context.Background()
	svc := NewUserService(fx.users, fx.audit, testLogger())
	actor := createAccount(t, fx, "root@example.com", "password-123", domain.PlanAdmin)
	target := createAccount(t, fx, "member@example.com", "password-123", domain.PlanFree)

	require.NoError(t, svc.SetPlan(ctx, actor, target.ID, domain.PlanPro))
	got, err := svc.Get(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, got.Plan)

	var valErr *domain.ValidationError
	assert.ErrorAs(t, svc.SetPlan(ctx, actor, target.ID, "platinum"), &valErr)

	var notFound *domain.NotFoundError
	assert.ErrorAs(t, svc.SetPlan(ctx, actor, 99999, domain.PlanPro), &notFound)
}

func TestUserService_SelfProtection(t *testing.T) {
	fx := newAdminFixture(t)
	ctx := context.Background()
	svc := NewUserService(fx.users, fx.audit, testLogger())
	actor := createAccount(t, fx, "root@example.com", "password-123", domain.PlanAdmin)
	target := createAccount(t, fx, "member@example.com", "password-123", domain.PlanFree)

	var valErr *domain.ValidationError
	assert.ErrorAs(t, svc.SetDisabled(ctx, actor, actor.ID, true), &valErr)
	assert.ErrorAs(t, svc.Delete(ctx, actor, actor.ID), &valErr)

	// Re-enabling yourself is fine; only disable is guarded.
	assert.NoError(t, svc.SetDisabled(ctx, actor, actor.ID, false))

	require.NoError(t, svc.SetDisabled(ctx, actor, target.ID, true))
	require.NoError(t, svc.Delete(ctx, actor, target.ID))

	_, err := svc.Get(ctx, target.ID)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestAuditService_AdminOnly(t *testing.T) {
	fx := newAdminFixture(t)
	ctx := context.Background()
	svc := NewAuditService(fx.audit)

	require.NoError(t, fx.audit.Insert(ctx, &domain.AuditEntry{
		UserEmail: "x@example.com", Action: "auth.login", Status: domain.AuditStatusAllowed,
	}))

	_, _, err := svc.List(ctx, &domain.User{Plan: domain.PlanPro}, domain.AuditFilter{})
	var denied *domain.AccessDeniedError
	assert.ErrorAs(t, err, &denied)

	entries, total, err := svc.List(ctx, &domain.User{Plan: domain.PlanAdmin}, domain.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, entries, 1)
}
