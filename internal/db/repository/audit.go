package repository

import (
	"context"
	"database/sql"

	"dataforge/internal/domain"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_email, action, status, detail) VALUES (?, ?, ?, ?)`,
		e.UserEmail, e.Action, e.Status, e.Detail)
	return mapDBError(err)
}

func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	if filter.UserEmail != nil {
		where += ` AND user_email = ?`
		args = append(args, *filter.UserEmail)
	}
	if filter.Action != nil {
		where += ` AND action = ?`
		args = append(args, *filter.Action)
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
		`SELECT COUNT(*) FROM audit_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_email, action, status, detail, created_at
		 FROM audit_log `+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.UserEmail, &e.Action, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

var _ domain.AuditRepository = (*AuditRepo)(nil)
