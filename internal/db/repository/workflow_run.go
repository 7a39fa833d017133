package repository

import (
	"context"
	"database/sql"
	"time"

	"dataforge/internal/domain"
)

type WorkflowRunRepo struct {
	db *sql.DB
}

func NewWorkflowRunRepo(db *sql.DB) *WorkflowRunRepo {
	return &WorkflowRunRepo{db: db}
}

const runColumns = `id, workflow_id, status, trigger_type, triggered_by,
	error, started_at, finished_at, created_at`

func scanRun(scan func(dest ...interface{}) error) (*domain.WorkflowRun, error) {
	var r domain.WorkflowRun
	var errMsg sql.NullString
	var started, finished sql.NullTime
	err := scan(&r.ID, &r.WorkflowID, &r.Status, &r.TriggerType, &r.TriggeredBy,
		&errMsg, &started, &finished, &r.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	r.Error = fromNullString(errMsg)
	r.StartedAt = fromNullTime(started)
	r.FinishedAt = fromNullTime(finished)
	return &r, nil
}

func (r *WorkflowRunRepo) CreateRun(ctx context.Context, run *domain.WorkflowRun) (*domain.WorkflowRun, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, status, trigger_type, triggered_by)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, run.Status, run.TriggerType, run.TriggeredBy)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetRun(ctx, run.ID)
}

func (r *WorkflowRunRepo) GetRun(ctx context.Context, runID string) (*domain.WorkflowRun, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM workflow_runs WHERE id = ?`, runID)
	return scanRun(row.Scan)
}

func (r *WorkflowRunRepo) ListRuns(ctx context.Context, filter domain.WorkflowRunFilter) ([]domain.WorkflowRun, int64, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	if filter.WorkflowID != nil {
		where += ` AND workflow_id = ?`
		args = append(args, *filter.WorkflowID)
	}
	if filter.Status != nil {
		where += ` AND status = ?`
		args = append(args, *filter.Status)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflow_runs `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM workflow_runs `+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []domain.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

func (r *WorkflowRunRepo) CountActiveRuns(ctx context.Context, workflowID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflow_runs WHERE workflow_id = ? AND status IN (?, ?)`,
		workflowID, domain.WorkflowRunStatusPending, domain.WorkflowRunStatusRunning).Scan(&n)
	return n, err
}

// MarkRunStarted transitions a pending run to running. A run cancelled
// before it started stays cancelled.
func (r *WorkflowRunRepo) MarkRunStarted(ctx context.Context, runID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workflow_runs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		domain.WorkflowRunStatusRunning, time.Now().UTC(), runID, domain.WorkflowRunStatusPending)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "workflow run %s", runID)
}

// FinishRun records a terminal status for a run that is still pending or
// running. The status guard makes concurrent finalizers (the executor and
// CancelRun) first-write-wins: the returned bool reports whether this call
// applied the write.
func (r *WorkflowRunRepo) FinishRun(ctx context.Context, runID string, status string, errMsg *string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workflow_runs SET status = ?, error = ?, finished_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		status, nullString(errMsg), time.Now().UTC(), runID,
		domain.WorkflowRunStatusPending, domain.WorkflowRunStatusRunning)
	if err != nil {
		return false, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// === Step runs ===

const stepRunColumns = `id, run_id, step_id, step_name, status, attempts,
	error, started_at, finished_at`

func scanStepRun(scan func(dest ...interface{}) error) (*domain.StepRun, error) {
	var sr domain.StepRun
	var errMsg sql.NullString
	var started, finished sql.NullTime
	err := scan(&sr.ID, &sr.RunID, &sr.StepID, &sr.StepName, &sr.Status, &sr.Attempts,
		&errMsg, &started, &finished)
	if err != nil {
		return nil, mapDBError(err)
	}
	sr.Error = fromNullString(errMsg)
	sr.StartedAt = fromNullTime(started)
	sr.FinishedAt = fromNullTime(finished)
	return &sr, nil
}

func (r *WorkflowRunRepo) CreateStepRun(ctx context.Context, sr *domain.StepRun) (*domain.StepRun, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_step_runs (id, run_id, step_id, step_name, status)
		 VALUES (?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.StepID, sr.StepName, sr.Status)
	if err != nil {
		return nil, mapDBError(err)
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+stepRunColumns+` FROM workflow_step_runs WHERE id = ?`, sr.ID)
	return scanStepRun(row.Scan)
}

func (r *WorkflowRunRepo) ListStepRuns(ctx context.Context, runID string) ([]domain.StepRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepRunColumns+` FROM workflow_step_runs WHERE run_id = ? ORDER BY step_name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stepRuns []domain.StepRun
	for rows.Next() {
		sr, err := scanStepRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		stepRuns = append(stepRuns, *sr)
	}
	return stepRuns, rows.Err()
}

func (r *WorkflowRunRepo) MarkStepRunStarted(ctx context.Context, stepRunID string, attempts int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workflow_step_runs SET status = ?, attempts = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
		domain.StepRunStatusRunning, attempts, time.Now().UTC(), stepRunID)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "step run %s", stepRunID)
}

func (r *WorkflowRunRepo) MarkStepRunFinished(ctx context.Context, stepRunID string, status string, errMsg *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workflow_step_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, nullString(errMsg), time.Now().UTC(), stepRunID)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "step run %s", stepRunID)
}

var _ domain.WorkflowRunRepository = (*WorkflowRunRepo)(nil)
