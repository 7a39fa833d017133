package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dataforge/internal/domain"
)

type endpointSpecDTO struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

func (d endpointSpecDTO) toDomain() domain.EndpointSpec {
	return domain.EndpointSpec{Type: d.Type, Config: d.Config}
}

func toEndpointDTO(e domain.EndpointSpec) endpointSpecDTO {
	return endpointSpecDTO{Type: e.Type, Config: e.Config}
}

type createWorkflowRequest struct {
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	ScheduleCron     *string         `json:"schedule_cron,omitempty"`
	Source           endpointSpecDTO `json:"source"`
	Destination      endpointSpecDTO `json:"destination"`
	IsPaused         bool            `json:"is_paused,omitempty"`
	ConcurrencyLimit int             `json:"concurrency_limit,omitempty"`
}

type updateWorkflowRequest struct {
	Description  *string          `json:"description,omitempty"`
	ScheduleCron *string          `json:"schedule_cron,omitempty"`
	Source       *endpointSpecDTO `json:"source,omitempty"`
	Destination  *endpointSpecDTO `json:"destination,omitempty"`
	IsPaused     *bool            `json:"is_paused,omitempty"`
}

type createStepRequest struct {
	Name           string   `json:"name"`
	SQL            *string  `json:"sql,omitempty"`
	TemplateID     *string  `json:"template_id,omitempty"`
	DependsOn      []string `json:"depends_on,omitempty"`
	RetryCount     int      `json:"retry_count,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	StepOrder      int      `json:"step_order,omitempty"`
}

type setPausedRequest struct {
	IsPaused bool `json:"is_paused"`
}

type workflowResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	ScheduleCron     *string         `json:"schedule_cron,omitempty"`
	Source           endpointSpecDTO `json:"source"`
	Destination      endpointSpecDTO `json:"destination"`
	IsPaused         bool            `json:"is_paused"`
	ConcurrencyLimit int             `json:"concurrency_limit"`
	CreatedBy        int64           `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toWorkflowResponse(w *domain.Workflow) workflowResponse {
	return workflowResponse{
		ID:               w.ID,
		Name:             w.Name,
		Description:      w.Description,
		ScheduleCron:     w.ScheduleCron,
		Source:           toEndpointDTO(w.Source),
		Destination:      toEndpointDTO(w.Destination),
		IsPaused:         w.IsPaused,
		ConcurrencyLimit: w.ConcurrencyLimit,
		CreatedBy:        w.CreatedBy,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

type stepResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	SQL            *string  `json:"sql,omitempty"`
	TemplateID     *string  `json:"template_id,omitempty"`
	DependsOn      []string `json:"depends_on,omitempty"`
	RetryCount     int      `json:"retry_count"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	StepOrder      int      `json:"step_order"`
}

func toStepResponse(s *domain.WorkflowStep) stepResponse {
	return stepResponse{
		ID:             s.ID,
		Name:           s.Name,
		SQL:            s.SQL,
		TemplateID:     s.TemplateID,
		DependsOn:      s.DependsOn,
		RetryCount:     s.RetryCount,
		TimeoutSeconds: s.TimeoutSeconds,
		StepOrder:      s.StepOrder,
	}
}

type runResponse struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflow_id"`
	Status      string     `json:"status"`
	TriggerType string     `json:"trigger_type"`
	TriggeredBy int64      `json:"triggered_by"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toRunResponse(run *domain.WorkflowRun) runResponse {
	return runResponse{
		ID:          run.ID,
		WorkflowID:  run.WorkflowID,
		Status:      run.Status,
		TriggerType: run.TriggerType,
		TriggeredBy: run.TriggeredBy,
		Error:       run.Error,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		CreatedAt:   run.CreatedAt,
	}
}

type stepRunResponse struct {
	ID         string     `json:"id"`
	StepID     string     `json:"step_id"`
	StepName   string     `json:"step_name"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (a *API) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req createWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	created, err := a.workflows.Create(r.Context(), user, domain.CreateWorkflowRequest{
		Name:             req.Name,
		Description:      req.Description,
		ScheduleCron:     req.ScheduleCron,
		Source:           req.Source.toDomain(),
		Destination:      req.Destination.toDomain(),
		IsPaused:         req.IsPaused,
		ConcurrencyLimit: req.ConcurrencyLimit,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toWorkflowResponse(created))
}

func (a *API) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, total, err := a.workflows.List(r.Context(), pageFromQuery(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	items := make([]workflowResponse, 0, len(workflows))
	for i := range workflows {
		items = append(items, toWorkflowResponse(&workflows[i]))
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: total})
}

func (a *API) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := a.workflows.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toWorkflowResponse(wf))
}

func (a *API) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req updateWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	upd := domain.UpdateWorkflowRequest{
		Description:  req.Description,
		ScheduleCron: req.ScheduleCron,
		IsPaused:     req.IsPaused,
	}
	if req.Source != nil {
		src := req.Source.toDomain()
		upd.Source = &src
	}
	if req.Destination != nil {
		dst := req.Destination.toDomain()
		upd.Destination = &dst
	}

	updated, err := a.workflows.Update(r.Context(), user, chi.URLParam(r, "name"), upd)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toWorkflowResponse(updated))
}

func (a *API) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	if err := a.workflows.Delete(r.Context(), user, chi.URLParam(r, "name")); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleSetWorkflowPaused(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req setPausedRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	updated, err := a.workflows.SetPaused(r.Context(), user, chi.URLParam(r, "name"), req.IsPaused)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toWorkflowResponse(updated))
}

func (a *API) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req createStepRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	created, err := a.workflows.CreateStep(r.Context(), user, chi.URLParam(r, "name"), domain.CreateWorkflowStepRequest{
		Name:           req.Name,
		SQL:            req.SQL,
		TemplateID:     req.TemplateID,
		DependsOn:      req.DependsOn,
		RetryCount:     req.RetryCount,
		TimeoutSeconds: req.TimeoutSeconds,
		StepOrder:      req.StepOrder,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toStepResponse(created))
}

func (a *API) handleListSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := a.workflows.ListSteps(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	items := make([]stepResponse, 0, len(steps))
	for i := range steps {
		items = append(items, toStepResponse(&steps[i]))
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: int64(len(items))})
}

func (a *API) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	err := a.workflows.DeleteStep(r.Context(), user, chi.URLParam(r, "name"), chi.URLParam(r, "stepID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	run, err := a.workflows.Trigger(r.Context(), user, chi.URLParam(r, "name"), domain.TriggerTypeManual)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, toRunResponse(run))
}

func (a *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := domain.WorkflowRunFilter{Page: pageFromQuery(r)}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}

	runs, total, err := a.workflows.ListRuns(r.Context(), chi.URLParam(r, "name"), filter)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	items := make([]runResponse, 0, len(runs))
	for i := range runs {
		items = append(items, toRunResponse(&runs[i]))
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: total})
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.workflows.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toRunResponse(run))
}

func (a *API) handleListStepRuns(w http.ResponseWriter, r *http.Request) {
	stepRuns, err := a.workflows.ListStepRuns(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	items := make([]stepRunResponse, 0, len(stepRuns))
	for _, sr := range stepRuns {
		items = append(items, stepRunResponse{
			ID:         sr.ID,
			StepID:     sr.StepID,
			StepName:   sr.StepName,
			Status:     sr.Status,
			Attempts:   sr.Attempts,
			Error:      sr.Error,
			StartedAt:  sr.StartedAt,
			FinishedAt: sr.FinishedAt,
		})
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: int64(len(items))})
}

func (a *API) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	if err := a.workflows.CancelRun(r.Context(), user, chi.URLParam(r, "runID")); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
