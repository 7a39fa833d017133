package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"dataforge/internal/domain"
)

// Source and destination descriptor types the executor interprets. Other
// types pass through untouched: they are for executors behind integrations
// and fail at run time with a validation error.
const (
	endpointTypeTable = "table"
	endpointTypeFile  = "file"
	endpointTypeCSV   = "csv"
)

type fileEndpointConfig struct {
	Path   string `json:"path"`
	Table  string `json:"table"`
	Format string `json:"format"`
}

// executeRun processes a workflow run in a background goroutine: apply the
// source, execute step levels (parallel within a level), apply the
// destination, and finalize run status.
func (s *Service) executeRun(runID string, w *domain.Workflow, steps []domain.WorkflowStep, levels [][]string) {
	ctx := context.Background()
	logger := s.logger.With("run_id", runID, "workflow", w.Name)

	defer func() {
		if r := recover(); r != nil {
			errMsg := fmt.Sprintf("panic: %v", r)
			logger.Error("workflow run panicked", "error", errMsg)
			s.finishRun(ctx, runID, domain.WorkflowRunStatusFailed, &errMsg, logger)
		}
	}()

	// The status guard on MarkRunStarted loses to a cancellation that
	// arrived before the goroutine got here; in that case there is nothing
	// to execute.
	if err := s.runs.MarkRunStarted(ctx, runID); err != nil {
		logger.Warn("run not started", "error", err)
		return
	}

	stepByID := make(map[string]domain.WorkflowStep, len(steps))
	for _, st := range steps {
		stepByID[st.ID] = st
	}

	stepRuns, err := s.runs.ListStepRuns(ctx, runID)
	if err != nil {
		errMsg := fmt.Sprintf("list step runs: %v", err)
		s.finishRun(ctx, runID, domain.WorkflowRunStatusFailed, &errMsg, logger)
		return
	}
	stepRunByStepID := make(map[string]string, len(stepRuns))
	for _, sr := range stepRuns {
		stepRunByStepID[sr.StepID] = sr.ID
	}

	if err := s.applySource(ctx, w); err != nil {
		errMsg := fmt.Sprintf("source: %v", err)
		logger.Warn("workflow source failed", "error", err)
		for _, sr := range stepRuns {
			_ = s.runs.MarkStepRunFinished(ctx, sr.ID, domain.StepRunStatusSkipped, nil)
		}
		s.finishRun(ctx, runID, domain.WorkflowRunStatusFailed, &errMsg, logger)
		return
	}

	runFailed := false

	for _, level := range levels {
		if runFailed || s.runCancelled(ctx, runID) {
			for _, stepID := range level {
				_ = s.runs.MarkStepRunFinished(ctx, stepRunByStepID[stepID], domain.StepRunStatusSkipped, nil)
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, stepID := range level {
			step := stepByID[stepID]
			srID := stepRunByStepID[stepID]
			g.Go(func() error {
				return s.executeStep(gctx, step, srID, logger)
			})
		}
		if err := g.Wait(); err != nil {
			runFailed = true
		}
	}

	if s.runCancelled(ctx, runID) {
		return // CancelRun already finalized the run
	}

	if runFailed {
		errMsg := "one or more steps failed"
		s.finishRun(ctx, runID, domain.WorkflowRunStatusFailed, &errMsg, logger)
		return
	}

	if err := s.applyDestination(ctx, w); err != nil {
		errMsg := fmt.Sprintf("destination: %v", err)
		logger.Warn("workflow destination failed", "error", err)
		s.finishRun(ctx, runID, domain.WorkflowRunStatusFailed, &errMsg, logger)
		return
	}

	if s.finishRun(ctx, runID, domain.WorkflowRunStatusSuccess, nil, logger) {
		logger.Info("workflow run completed")
	}
}

// finishRun records a terminal run status. The conditional write loses to a
// cancellation that landed after the last runCancelled check; the cancelled
// status then stands. Reports whether the status was applied.
func (s *Service) finishRun(ctx context.Context, runID, status string, errMsg *string, logger *slog.Logger) bool {
	applied, err := s.runs.FinishRun(ctx, runID, status, errMsg)
	if err != nil {
		logger.Error("finalize run failed", "status", status, "error", err)
		return false
	}
	if !applied {
		logger.Info("run already finalized, keeping existing status", "status", status)
	}
	return applied
}

// executeStep runs one step with retry and exponential backoff.
func (s *Service) executeStep(ctx context.Context, step domain.WorkflowStep, stepRunID string, logger *slog.Logger) error {
	logger = logger.With("step", step.Name)

	sqlBody, err := s.resolveStepSQL(ctx, step)
	if err != nil {
		errMsg := err.Error()
		_ = s.runs.MarkStepRunFinished(ctx, stepRunID, domain.StepRunStatusFailed, &errMsg)
		return err
	}

	var lastErr error
	maxAttempts := step.RetryCount + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s...
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			if err := ctx.Err(); err != nil {
				lastErr = err
				break
			}
			logger.Info("retrying step", "attempt", attempt+1)
		}

		if err := s.runs.MarkStepRunStarted(ctx, stepRunID, attempt+1); err != nil {
			logger.Warn("mark step run started failed", "error", err)
		}

		lastErr = s.executeStepAttempt(ctx, step, sqlBody)
		if lastErr == nil {
			break
		}
		logger.Warn("step attempt failed", "attempt", attempt+1, "error", lastErr)
	}

	if lastErr != nil {
		errMsg := lastErr.Error()
		_ = s.runs.MarkStepRunFinished(ctx, stepRunID, domain.StepRunStatusFailed, &errMsg)
		return lastErr
	}

	_ = s.runs.MarkStepRunFinished(ctx, stepRunID, domain.StepRunStatusSuccess, nil)
	return nil
}

// executeStepAttempt runs one attempt, applying the step's timeout if set.
func (s *Service) executeStepAttempt(ctx context.Context, step domain.WorkflowStep, sqlBody string) error {
	if step.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	// Steps may hold several statements separated by semicolons.
	for _, stmt := range splitStatements(sqlBody) {
		if _, err := s.engine.ExecuteQuery(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// resolveStepSQL returns the literal SQL or the referenced template's body.
func (s *Service) resolveStepSQL(ctx context.Context, step domain.WorkflowStep) (string, error) {
	if step.SQL != nil && strings.TrimSpace(*step.SQL) != "" {
		return *step.SQL, nil
	}
	if step.TemplateID == nil || *step.TemplateID == "" {
		return "", domain.ErrValidation("step %q has neither sql nor template", step.Name)
	}
	tmpl, err := s.templates.GetByID(ctx, *step.TemplateID)
	if err != nil {
		return "", fmt.Errorf("resolve template for step %q: %w", step.Name, err)
	}
	return tmpl.SQL, nil
}

func (s *Service) applySource(ctx context.Context, w *domain.Workflow) error {
	switch w.Source.Type {
	case endpointTypeTable, "":
		return nil // data is already in the engine
	case endpointTypeFile:
		var cfg fileEndpointConfig
		if err := json.Unmarshal(w.Source.Config, &cfg); err != nil {
			return domain.ErrValidation("invalid file source config: %v", err)
		}
		if cfg.Path == "" || cfg.Table == "" || cfg.Format == "" {
			return domain.ErrValidation("file source requires path, table, and format")
		}
		_, err := s.engine.LoadFile(ctx, cfg.Path, cfg.Table, cfg.Format)
		return err
	}
	return domain.ErrValidation("unsupported source type %q", w.Source.Type)
}

func (s *Service) applyDestination(ctx context.Context, w *domain.Workflow) error {
	switch w.Destination.Type {
	case endpointTypeTable, "":
		return nil // steps materialize their own tables
	case endpointTypeCSV:
		var cfg fileEndpointConfig
		if err := json.Unmarshal(w.Destination.Config, &cfg); err != nil {
			return domain.ErrValidation("invalid csv destination config: %v", err)
		}
		if cfg.Path == "" || cfg.Table == "" {
			return domain.ErrValidation("csv destination requires table and path")
		}
		return s.engine.ExportCSVToFile(ctx, cfg.Table, cfg.Path)
	}
	return domain.ErrValidation("unsupported destination type %q", w.Destination.Type)
}

// runCancelled reports whether the run was cancelled out of band.
func (s *Service) runCancelled(ctx context.Context, runID string) bool {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return false
	}
	return run.Status == domain.WorkflowRunStatusCancelled
}

// splitStatements splits on semicolons, dropping empty fragments. Quoted
// semicolons are not handled; step SQL with literals containing ';' should
// use one statement per step.
func splitStatements(sqlBody string) []string {
	parts := strings.Split(sqlBody, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
