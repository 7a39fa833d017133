package repository

import (
	"context"
	"database/sql"
	"time"

	"dataforge/internal/domain"
)

type TemplateRepo struct {
	db *sql.DB
}

func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = `id, name, description, sql_body, created_by, created_at, updated_at`

func scanTemplate(scan func(dest ...interface{}) error) (*domain.QueryTemplate, error) {
	var t domain.QueryTemplate
	var desc sql.NullString
	err := scan(&t.ID, &t.Name, &desc, &t.SQL, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	t.Description = fromNullString(desc)
	return &t, nil
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.QueryTemplate) (*domain.QueryTemplate, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO query_templates (id, name, description, sql_body, created_by)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, nullString(t.Description), t.SQL, t.CreatedBy)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetByID(ctx, t.ID)
}

func (r *TemplateRepo) GetByID(ctx context.Context, id string) (*domain.QueryTemplate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM query_templates WHERE id = ?`, id)
	return scanTemplate(row.Scan)
}

func (r *TemplateRepo) GetByName(ctx context.Context, name string) (*domain.QueryTemplate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM query_templates WHERE name = ?`, name)
	return scanTemplate(row.Scan)
}

func (r *TemplateRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.QueryTemplate, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_templates`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM query_templates ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var templates []domain.QueryTemplate
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, *t)
	}
	return templates, total, rows.Err()
}

func (r *TemplateRepo) Update(ctx context.Context, id string, sqlBody string, description *string) (*domain.QueryTemplate, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE query_templates SET sql_body = ?, description = COALESCE(?, description), updated_at = ? WHERE id = ?`,
		sqlBody, nullString(description), time.Now().UTC(), id)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := requireRowAffected(res, "template %s", id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM query_templates WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "template %s", id)
}

var _ domain.TemplateRepository = (*TemplateRepo)(nil)
