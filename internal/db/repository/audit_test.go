package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "dataforge/internal/db"
	"dataforge/internal/domain"
)

func TestAudit_InsertAndList(t *testing.T) {
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := NewAuditRepo(writeDB)
	ctx := context.Background()

	entries := []domain.AuditEntry{
		{UserEmail: "ana@example.com", Action: "workflow.create", Status: domain.AuditStatusAllowed, Detail: "nightly-etl"},
		{UserEmail: "ana@example.com", Action: "workflow.delete", Status: domain.AuditStatusDenied, Detail: "nightly-etl"},
		{UserEmail: "bo@example.com", Action: "auth.login", Status: domain.AuditStatusAllowed},
	}
	for i := range entries {
		require.NoError(t, repo.Insert(ctx, &entries[i]))
	}

	t.Run("unfiltered", func(t *testing.T) {
		got, total, err := repo.List(ctx, domain.AuditFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, got, 3)
	})

	t.Run("by_email", func(t *testing.T) {
		email := "ana@example.com"
		got, total, err := repo.List(ctx, domain.AuditFilter{UserEmail: &email})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, e := range got {
			assert.Equal(t, email, e.UserEmail)
		}
	})

	t.Run("by_action_and_status", func(t *testing.T) {
		action := "workflow.delete"
		status := domain.AuditStatusDenied
		got, total, err := repo.List(ctx, domain.AuditFilter{Action: &action, Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, got, 1)
		assert.Equal(t, "nightly-etl", got[0].Detail)
	})

	t.Run("since_future_excludes_all", func(t *testing.T) {
		future := time.Now().UTC().Add(time.Hour)
		got, total, err := repo.List(ctx, domain.AuditFilter{Since: &future})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, got)
	})

	t.Run("pagination", func(t *testing.T) {
		got, total, err := repo.List(ctx, domain.AuditFilter{Page: domain.PageRequest{MaxResults: 2}})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, got, 2)
	})
}

func TestQueryHistory_InsertAndList(t *testing.T) {
	writeDB, _ := internaldb.OpenTestSQLite(t)
	repo := NewQueryHistoryRepo(writeDB)
	ctx := context.Background()

	rows := []domain.QueryHistoryEntry{
		{UserID: 1, SQL: "SELECT 1", Mode: "embedded", Status: "success", DurationMs: 12, RowCount: 1},
		{UserID: 1, SQL: "SELECT broken", Mode: "embedded", Status: "error", Error: "syntax error"},
		{UserID: 2, SQL: "SELECT 2", Mode: "remote", Status: "success", RowCount: 1},
	}
	for i := range rows {
		require.NoError(t, repo.Insert(ctx, &rows[i]))
	}

	t.Run("by_user", func(t *testing.T) {
		userID := int64(1)
		got, total, err := repo.List(ctx, domain.QueryHistoryFilter{UserID: &userID}, domain.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, e := range got {
			assert.Equal(t, int64(1), e.UserID)
		}
	})

	t.Run("by_status", func(t *testing.T) {
		status := "error"
		got, total, err := repo.List(ctx, domain.QueryHistoryFilter{Status: &status}, domain.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, got, 1)
		assert.Equal(t, "syntax error", got[0].Error)
	})

	t.Run("newest_first", func(t *testing.T) {
		got, _, err := repo.List(ctx, domain.QueryHistoryFilter{}, domain.PageRequest{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "SELECT 2", got[0].SQL)
	})
}
