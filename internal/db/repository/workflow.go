package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"dataforge/internal/domain"
)

type WorkflowRepo struct {
	db *sql.DB
}

func NewWorkflowRepo(db *sql.DB) *WorkflowRepo {
	return &WorkflowRepo{db: db}
}

const workflowColumns = `id, name, description, schedule_cron,
	source_type, source_config, destination_type, destination_config,
	is_paused, concurrency_limit, created_by, created_at, updated_at`

func scanWorkflow(scan func(dest ...interface{}) error) (*domain.Workflow, error) {
	var w domain.Workflow
	var desc, cronExpr sql.NullString
	var srcCfg, dstCfg string
	var paused int
	err := scan(&w.ID, &w.Name, &desc, &cronExpr,
		&w.Source.Type, &srcCfg, &w.Destination.Type, &dstCfg,
		&paused, &w.ConcurrencyLimit, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	w.Description = fromNullString(desc)
	w.ScheduleCron = fromNullString(cronExpr)
	w.Source.Config = json.RawMessage(srcCfg)
	w.Destination.Config = json.RawMessage(dstCfg)
	w.IsPaused = paused != 0
	return &w, nil
}

func rawOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func (r *WorkflowRepo) Create(ctx context.Context, w *domain.Workflow) (*domain.Workflow, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, description, schedule_cron,
		   source_type, source_config, destination_type, destination_config,
		   is_paused, concurrency_limit, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, nullString(w.Description), nullString(w.ScheduleCron),
		w.Source.Type, rawOrEmpty(w.Source.Config),
		w.Destination.Type, rawOrEmpty(w.Destination.Config),
		boolToInt(w.IsPaused), w.ConcurrencyLimit, w.CreatedBy)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.getByID(ctx, w.ID)
}

func (r *WorkflowRepo) getByID(ctx context.Context, id string) (*domain.Workflow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	return scanWorkflow(row.Scan)
}

func (r *WorkflowRepo) GetByName(ctx context.Context, name string) (*domain.Workflow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE name = ?`, name)
	w, err := scanWorkflow(row.Scan)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrNotFound("workflow %q not found", name)
		}
		return nil, err
	}
	return w, nil
}

func (r *WorkflowRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Workflow, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		workflows = append(workflows, *w)
	}
	return workflows, total, rows.Err()
}

// ListScheduled returns active (not paused) workflows with a schedule set.
func (r *WorkflowRepo) ListScheduled(ctx context.Context) ([]domain.Workflow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows
		 WHERE schedule_cron IS NOT NULL AND schedule_cron != '' AND is_paused = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *w)
	}
	return workflows, rows.Err()
}

func (r *WorkflowRepo) Update(ctx context.Context, id string, req domain.UpdateWorkflowRequest) (*domain.Workflow, error) {
	w, err := r.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		w.Description = req.Description
	}
	if req.ScheduleCron != nil {
		if *req.ScheduleCron == "" {
			w.ScheduleCron = nil
		} else {
			w.ScheduleCron = req.ScheduleCron
		}
	}
	if req.Source != nil {
		w.Source = *req.Source
	}
	if req.Destination != nil {
		w.Destination = *req.Destination
	}
	if req.IsPaused != nil {
		w.IsPaused = *req.IsPaused
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE workflows SET description = ?, schedule_cron = ?,
		   source_type = ?, source_config = ?, destination_type = ?, destination_config = ?,
		   is_paused = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(w.Description), nullString(w.ScheduleCron),
		w.Source.Type, rawOrEmpty(w.Source.Config),
		w.Destination.Type, rawOrEmpty(w.Destination.Config),
		boolToInt(w.IsPaused), time.Now().UTC(), id)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.getByID(ctx, id)
}

func (r *WorkflowRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "workflow %s", id)
}

// === Steps ===

const stepColumns = `id, workflow_id, name, sql_body, template_id, depends_on,
	retry_count, timeout_seconds, step_order`

func scanStep(scan func(dest ...interface{}) error) (*domain.WorkflowStep, error) {
	var s domain.WorkflowStep
	var sqlBody, templateID sql.NullString
	var deps string
	err := scan(&s.ID, &s.WorkflowID, &s.Name, &sqlBody, &templateID, &deps,
		&s.RetryCount, &s.TimeoutSeconds, &s.StepOrder)
	if err != nil {
		return nil, mapDBError(err)
	}
	s.SQL = fromNullString(sqlBody)
	s.TemplateID = fromNullString(templateID)
	s.DependsOn = splitList(deps)
	return &s, nil
}

func (r *WorkflowRepo) CreateStep(ctx context.Context, s *domain.WorkflowStep) (*domain.WorkflowStep, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_steps (id, workflow_id, name, sql_body, template_id,
		   depends_on, retry_count, timeout_seconds, step_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.WorkflowID, s.Name, nullString(s.SQL), nullString(s.TemplateID),
		joinList(s.DependsOn), s.RetryCount, s.TimeoutSeconds, s.StepOrder)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetStep(ctx, s.ID)
}

func (r *WorkflowRepo) GetStep(ctx context.Context, stepID string) (*domain.WorkflowStep, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps WHERE id = ?`, stepID)
	return scanStep(row.Scan)
}

func (r *WorkflowRepo) ListSteps(ctx context.Context, workflowID string) ([]domain.WorkflowStep, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps WHERE workflow_id = ? ORDER BY step_order, name`,
		workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.WorkflowStep
	for rows.Next() {
		s, err := scanStep(rows.Scan)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *s)
	}
	return steps, rows.Err()
}

func (r *WorkflowRepo) DeleteStep(ctx context.Context, stepID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workflow_steps WHERE id = ?`, stepID)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "workflow step %s", stepID)
}

var _ domain.WorkflowRepository = (*WorkflowRepo)(nil)
