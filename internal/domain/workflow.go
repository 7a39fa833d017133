package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Workflow run statuses.
const (
	WorkflowRunStatusPending   = "pending"
	WorkflowRunStatusRunning   = "running"
	WorkflowRunStatusSuccess   = "success"
	WorkflowRunStatusFailed    = "failed"
	WorkflowRunStatusCancelled = "cancelled"
)

// Step run statuses.
const (
	StepRunStatusPending   = "pending"
	StepRunStatusRunning   = "running"
	StepRunStatusSuccess   = "success"
	StepRunStatusFailed    = "failed"
	StepRunStatusSkipped   = "skipped"
	StepRunStatusCancelled = "cancelled"
)

// Trigger types for workflow runs.
const (
	TriggerTypeManual    = "manual"
	TriggerTypeScheduled = "scheduled"
)

// EndpointSpec describes a workflow source or destination: a provider type
// plus free-form JSON configuration, interpreted by the executor.
type EndpointSpec struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Workflow is a scheduled ETL job: source, transformation steps, destination.
type Workflow struct {
	ID               string
	Name             string
	Description      *string
	ScheduleCron     *string
	Source           EndpointSpec
	Destination      EndpointSpec
	IsPaused         bool
	ConcurrencyLimit int
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkflowStep is one transformation of a workflow. Steps reference either a
// literal SQL body or a saved template, and may depend on other steps by name.
type WorkflowStep struct {
	ID             string
	WorkflowID     string
	Name           string
	SQL            *string
	TemplateID     *string
	DependsOn      []string
	RetryCount     int
	TimeoutSeconds int
	StepOrder      int
}

// WorkflowRun is one execution of a workflow.
type WorkflowRun struct {
	ID          string
	WorkflowID  string
	Status      string
	TriggerType string
	TriggeredBy int64
	Error       *string
	StartedAt   *time.Time
	FinishedAt  *time.Time
	CreatedAt   time.Time
}

// StepRun tracks one step within a run.
type StepRun struct {
	ID         string
	RunID      string
	StepID     string
	StepName   string
	Status     string
	Attempts   int
	Error      *string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// WorkflowRunFilter narrows a run listing.
type WorkflowRunFilter struct {
	WorkflowID *string
	Status     *string
	Page       PageRequest
}

// cronParser accepts the standard 5-field cron syntax used by schedules.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ValidateCron parses a 5-field cron expression, rejecting malformed or
// short expressions (the original workbench only regex-checked these).
func ValidateCron(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return ErrValidation("schedule is required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return ErrValidation("invalid cron schedule %q: %v", expr, err)
	}
	return nil
}

// CreateWorkflowRequest carries the fields for creating a workflow.
type CreateWorkflowRequest struct {
	Name             string
	Description      *string
	ScheduleCron     *string
	Source           EndpointSpec
	Destination      EndpointSpec
	IsPaused         bool
	ConcurrencyLimit int
}

// Validate checks required fields and the schedule expression.
func (r *CreateWorkflowRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation("workflow name is required")
	}
	if r.Source.Type == "" {
		return ErrValidation("source type is required")
	}
	if r.Destination.Type == "" {
		return ErrValidation("destination type is required")
	}
	if r.ScheduleCron != nil {
		if err := ValidateCron(*r.ScheduleCron); err != nil {
			return err
		}
	}
	if r.ConcurrencyLimit < 0 {
		return ErrValidation("concurrency limit must not be negative")
	}
	return nil
}

// UpdateWorkflowRequest carries optional fields for a partial update.
type UpdateWorkflowRequest struct {
	Description  *string
	ScheduleCron *string
	Source       *EndpointSpec
	Destination  *EndpointSpec
	IsPaused     *bool
}

// Validate checks the schedule expression when one is supplied.
func (r *UpdateWorkflowRequest) Validate() error {
	if r.ScheduleCron != nil && *r.ScheduleCron != "" {
		return ValidateCron(*r.ScheduleCron)
	}
	return nil
}

// CreateWorkflowStepRequest carries the fields for adding a step.
type CreateWorkflowStepRequest struct {
	Name           string
	SQL            *string
	TemplateID     *string
	DependsOn      []string
	RetryCount     int
	TimeoutSeconds int
	StepOrder      int
}

// Validate requires a name and exactly one of SQL or template reference.
func (r *CreateWorkflowStepRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation("step name is required")
	}
	hasSQL := r.SQL != nil && strings.TrimSpace(*r.SQL) != ""
	hasTemplate := r.TemplateID != nil && *r.TemplateID != ""
	if hasSQL == hasTemplate {
		return ErrValidation("step requires exactly one of sql or template_id")
	}
	if r.RetryCount < 0 || r.RetryCount > 10 {
		return ErrValidation("retry count must be between 0 and 10")
	}
	return nil
}
