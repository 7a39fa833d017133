package workflow

import (
	"context"
	"log/slog"

	"dataforge/internal/domain"
)

// ScheduleReloader allows the service to notify the scheduler to reload.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
}

// StepEngine is the engine surface the executor needs to run steps and move
// data in and out.
type StepEngine interface {
	ExecuteQuery(ctx context.Context, sql string) (*domain.QueryResult, error)
	LoadFile(ctx context.Context, path, tableName, format string) (*domain.TableHandle, error)
	ExportCSVToFile(ctx context.Context, tableName, path string) error
}

// Service provides workflow management and run orchestration.
type Service struct {
	workflows domain.WorkflowRepository
	runs      domain.WorkflowRunRepository
	templates domain.TemplateRepository
	audit     domain.AuditRepository
	engine    StepEngine
	logger    *slog.Logger
	reloader  ScheduleReloader
}

// NewService creates a workflow service.
func NewService(
	workflows domain.WorkflowRepository,
	runs domain.WorkflowRunRepository,
	templates domain.TemplateRepository,
	audit domain.AuditRepository,
	eng StepEngine,
	logger *slog.Logger,
) *Service {
	return &Service{
		workflows: workflows,
		runs:      runs,
		templates: templates,
		audit:     audit,
		engine:    eng,
		logger:    logger,
	}
}

// SetScheduleReloader sets the schedule reloader (breaks circular dep).
func (s *Service) SetScheduleReloader(r ScheduleReloader) {
	s.reloader = r
}

// === Workflow CRUD ===

func (s *Service) Create(ctx context.Context, user *domain.User, req domain.CreateWorkflowRequest) (*domain.Workflow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.ConcurrencyLimit == 0 {
		req.ConcurrencyLimit = 1
	}

	w := &domain.Workflow{
		ID:               domain.NewID(),
		Name:             req.Name,
		Description:      req.Description,
		ScheduleCron:     req.ScheduleCron,
		Source:           req.Source,
		Destination:      req.Destination,
		IsPaused:         req.IsPaused,
		ConcurrencyLimit: req.ConcurrencyLimit,
		CreatedBy:        user.ID,
	}

	result, err := s.workflows.Create(ctx, w)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, user, "workflow.create", result.Name)
	s.reload(ctx)
	return result, nil
}

func (s *Service) Get(ctx context.Context, name string) (*domain.Workflow, error) {
	return s.workflows.GetByName(ctx, name)
}

func (s *Service) List(ctx context.Context, page domain.PageRequest) ([]domain.Workflow, int64, error) {
	return s.workflows.List(ctx, page)
}

func (s *Service) Update(ctx context.Context, user *domain.User, name string, req domain.UpdateWorkflowRequest) (*domain.Workflow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	w, err := s.workflows.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	result, err := s.workflows.Update(ctx, w.ID, req)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, user, "workflow.update", name)
	s.reload(ctx)
	return result, nil
}

func (s *Service) Delete(ctx context.Context, user *domain.User, name string) error {
	w, err := s.workflows.GetByName(ctx, name)
	if err != nil {
		return err
	}

	if err := s.workflows.Delete(ctx, w.ID); err != nil {
		return err
	}

	s.logAudit(ctx, user, "workflow.delete", name)
	s.reload(ctx)
	return nil
}

// SetPaused pauses or resumes a workflow.
func (s *Service) SetPaused(ctx context.Context, user *domain.User, name string, paused bool) (*domain.Workflow, error) {
	action := "workflow.pause"
	if !paused {
		action = "workflow.resume"
	}
	w, err := s.Update(ctx, user, name, domain.UpdateWorkflowRequest{IsPaused: &paused})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user, action, name)
	return w, nil
}

// === Step CRUD ===

func (s *Service) CreateStep(ctx context.Context, user *domain.User, workflowName string, req domain.CreateWorkflowStepRequest) (*domain.WorkflowStep, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	w, err := s.workflows.GetByName(ctx, workflowName)
	if err != nil {
		return nil, err
	}

	// Validate the template reference up front.
	if req.TemplateID != nil && *req.TemplateID != "" {
		if _, err := s.templates.GetByID(ctx, *req.TemplateID); err != nil {
			return nil, err
		}
	}

	step := &domain.WorkflowStep{
		ID:             domain.NewID(),
		WorkflowID:     w.ID,
		Name:           req.Name,
		SQL:            req.SQL,
		TemplateID:     req.TemplateID,
		DependsOn:      req.DependsOn,
		RetryCount:     req.RetryCount,
		TimeoutSeconds: req.TimeoutSeconds,
		StepOrder:      req.StepOrder,
	}

	result, err := s.workflows.CreateStep(ctx, step)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user, "workflow.step.create", workflowName+"/"+req.Name)
	return result, nil
}

func (s *Service) ListSteps(ctx context.Context, workflowName string) ([]domain.WorkflowStep, error) {
	w, err := s.workflows.GetByName(ctx, workflowName)
	if err != nil {
		return nil, err
	}
	return s.workflows.ListSteps(ctx, w.ID)
}

func (s *Service) DeleteStep(ctx context.Context, user *domain.User, workflowName, stepID string) error {
	if _, err := s.workflows.GetStep(ctx, stepID); err != nil {
		return err
	}
	if err := s.workflows.DeleteStep(ctx, stepID); err != nil {
		return err
	}
	s.logAudit(ctx, user, "workflow.step.delete", workflowName+"/"+stepID)
	return nil
}

// === Runs ===

// Trigger validates the DAG and concurrency limit, creates a run plus step
// runs, and launches the background executor.
func (s *Service) Trigger(ctx context.Context, user *domain.User, workflowName string, triggerType string) (*domain.WorkflowRun, error) {
	w, err := s.workflows.GetByName(ctx, workflowName)
	if err != nil {
		return nil, err
	}

	active, err := s.runs.CountActiveRuns(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if active >= int64(w.ConcurrencyLimit) {
		return nil, domain.ErrValidation("concurrency limit reached (%d active runs)", active)
	}

	steps, err := s.workflows.ListSteps(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, domain.ErrValidation("workflow has no steps")
	}

	levels, err := ResolveExecutionOrder(steps)
	if err != nil {
		return nil, err
	}

	run := &domain.WorkflowRun{
		ID:          domain.NewID(),
		WorkflowID:  w.ID,
		Status:      domain.WorkflowRunStatusPending,
		TriggerType: triggerType,
		TriggeredBy: user.ID,
	}

	result, err := s.runs.CreateRun(ctx, run)
	if err != nil {
		return nil, err
	}

	for _, step := range steps {
		sr := &domain.StepRun{
			ID:       domain.NewID(),
			RunID:    result.ID,
			StepID:   step.ID,
			StepName: step.Name,
			Status:   domain.StepRunStatusPending,
		}
		if _, err := s.runs.CreateStepRun(ctx, sr); err != nil {
			return nil, err
		}
	}

	s.logAudit(ctx, user, "workflow.trigger", workflowName)

	go s.executeRun(result.ID, w, steps, levels)

	return result, nil
}

func (s *Service) GetRun(ctx context.Context, runID string) (*domain.WorkflowRun, error) {
	return s.runs.GetRun(ctx, runID)
}

func (s *Service) ListRuns(ctx context.Context, workflowName string, filter domain.WorkflowRunFilter) ([]domain.WorkflowRun, int64, error) {
	w, err := s.workflows.GetByName(ctx, workflowName)
	if err != nil {
		return nil, 0, err
	}
	filter.WorkflowID = &w.ID
	return s.runs.ListRuns(ctx, filter)
}

func (s *Service) ListStepRuns(ctx context.Context, runID string) ([]domain.StepRun, error) {
	if _, err := s.runs.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.runs.ListStepRuns(ctx, runID)
}

// CancelRun cancels a pending or running run and its pending steps.
func (s *Service) CancelRun(ctx context.Context, user *domain.User, runID string) error {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	if run.Status != domain.WorkflowRunStatusPending && run.Status != domain.WorkflowRunStatusRunning {
		return domain.ErrValidation("cannot cancel run with status %s", run.Status)
	}

	errMsg := "cancelled by " + user.Email
	applied, err := s.runs.FinishRun(ctx, runID, domain.WorkflowRunStatusCancelled, &errMsg)
	if err != nil {
		return err
	}
	if !applied {
		// The executor finalized the run between the status check and the
		// conditional write.
		if current, gErr := s.runs.GetRun(ctx, runID); gErr == nil {
			return domain.ErrValidation("cannot cancel run with status %s", current.Status)
		}
		return domain.ErrValidation("cannot cancel run with status %s", run.Status)
	}

	stepRuns, err := s.runs.ListStepRuns(ctx, runID)
	if err != nil {
		return nil // best effort
	}
	for _, sr := range stepRuns {
		if sr.Status == domain.StepRunStatusPending {
			_ = s.runs.MarkStepRunFinished(ctx, sr.ID, domain.StepRunStatusCancelled, nil)
		}
	}

	s.logAudit(ctx, user, "workflow.run.cancel", runID)
	return nil
}

func (s *Service) reload(ctx context.Context) {
	if s.reloader != nil {
		if err := s.reloader.Reload(ctx); err != nil {
			s.logger.Warn("schedule reload failed", "error", err)
		}
	}
}

func (s *Service) logAudit(ctx context.Context, user *domain.User, action, detail string) {
	_ = s.audit.Insert(ctx, &domain.AuditEntry{
		UserEmail: user.Email,
		Action:    action,
		Status:    domain.AuditStatusAllowed,
		Detail:    detail,
	})
}
