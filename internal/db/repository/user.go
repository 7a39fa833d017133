package repository

import (
	"context"
	"database/sql"

	"dataforge/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, display_name, password_hash, plan, disabled, created_at`

func (r *UserRepo) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var disabled int
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Plan, &disabled, &u.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	u.Disabled = disabled != 0
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	plan := u.Plan
	if plan == "" {
		plan = domain.PlanFree
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, display_name, password_hash, plan) VALUES (?, ?, ?, ?)`,
		u.Email, u.DisplayName, u.PasswordHash, plan)
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *UserRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var disabled int
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Plan, &disabled, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		u.Disabled = disabled != 0
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *UserRepo) SetPlan(ctx context.Context, id int64, plan string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET plan = ? WHERE id = ?`, plan, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "user %d", id)
}

func (r *UserRepo) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET disabled = ? WHERE id = ?`, boolToInt(disabled), id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "user %d", id)
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "user %d", id)
}

func (r *UserRepo) GetExecutionMode(ctx context.Context, id int64) (domain.ExecutionMode, error) {
	var mode string
	err := r.db.QueryRowContext(ctx, `SELECT execution_mode FROM users WHERE id = ?`, id).Scan(&mode)
	if err != nil {
		return "", mapDBError(err)
	}
	return domain.ParseExecutionMode(mode)
}

func (r *UserRepo) SetExecutionMode(ctx context.Context, id int64, mode domain.ExecutionMode) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET execution_mode = ? WHERE id = ?`, string(mode), id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "user %d", id)
}

func requireRowAffected(res sql.Result, format string, args ...interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound(format+" not found", args...)
	}
	return nil
}

var _ domain.UserRepository = (*UserRepo)(nil)
