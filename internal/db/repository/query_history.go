package repository

import (
	"context"
	"database/sql"

	"dataforge/internal/domain"
)

type QueryHistoryRepo struct {
	db *sql.DB
}

func NewQueryHistoryRepo(db *sql.DB) *QueryHistoryRepo {
	return &QueryHistoryRepo{db: db}
}

func (r *QueryHistoryRepo) Insert(ctx context.Context, e *domain.QueryHistoryEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO query_history (user_id, sql_text, mode, status, error, duration_ms, row_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.SQL, e.Mode, e.Status, e.Error, e.DurationMs, e.RowCount)
	return mapDBError(err)
}

func (r *QueryHistoryRepo) List(ctx context.Context, filter domain.QueryHistoryFilter, page domain.PageRequest) ([]domain.QueryHistoryEntry, int64, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	if filter.UserID != nil {
		where += ` AND user_id = ?`
		args = append(args, *filter.UserID)
	}
	if filter.Status != nil {
		where += ` AND status = ?`
		args = append(args, *filter.Status)
	}
	if filter.Since != nil {
		where += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM query_history `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit(), page.Offset())
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, sql_text, mode, status, error, duration_ms, row_count, created_at
		 FROM query_history `+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.QueryHistoryEntry
	for rows.Next() {
		var e domain.QueryHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.SQL, &e.Mode, &e.Status, &e.Error,
			&e.DurationMs, &e.RowCount, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

var _ domain.QueryHistoryRepository = (*QueryHistoryRepo)(nil)
