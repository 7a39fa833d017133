package domain

import (
	"context"
	"time"
)

// UserRepository provides CRUD operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, page PageRequest) ([]User, int64, error)
	SetPlan(ctx context.Context, id int64, plan string) error
	SetDisabled(ctx context.Context, id int64, disabled bool) error
	Delete(ctx context.Context, id int64) error
	GetExecutionMode(ctx context.Context, id int64) (ExecutionMode, error)
	SetExecutionMode(ctx context.Context, id int64, mode ExecutionMode) error
}

// APIKeyRepository provides operations for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, k *APIKey) error
	GetByHash(ctx context.Context, hash string) (*APIKey, error)
	ListByUser(ctx context.Context, userID int64, page PageRequest) ([]APIKey, int64, error)
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// WorkflowRepository provides CRUD operations for workflows and their steps.
type WorkflowRepository interface {
	Create(ctx context.Context, w *Workflow) (*Workflow, error)
	GetByName(ctx context.Context, name string) (*Workflow, error)
	List(ctx context.Context, page PageRequest) ([]Workflow, int64, error)
	ListScheduled(ctx context.Context) ([]Workflow, error)
	Update(ctx context.Context, id string, req UpdateWorkflowRequest) (*Workflow, error)
	Delete(ctx context.Context, id string) error

	CreateStep(ctx context.Context, s *WorkflowStep) (*WorkflowStep, error)
	GetStep(ctx context.Context, stepID string) (*WorkflowStep, error)
	ListSteps(ctx context.Context, workflowID string) ([]WorkflowStep, error)
	DeleteStep(ctx context.Context, stepID string) error
}

// WorkflowRunRepository provides operations for runs and step runs.
type WorkflowRunRepository interface {
	CreateRun(ctx context.Context, r *WorkflowRun) (*WorkflowRun, error)
	GetRun(ctx context.Context, runID string) (*WorkflowRun, error)
	ListRuns(ctx context.Context, filter WorkflowRunFilter) ([]WorkflowRun, int64, error)
	CountActiveRuns(ctx context.Context, workflowID string) (int64, error)
	MarkRunStarted(ctx context.Context, runID string) error
	FinishRun(ctx context.Context, runID string, status string, errMsg *string) (applied bool, err error)

	CreateStepRun(ctx context.Context, sr *StepRun) (*StepRun, error)
	ListStepRuns(ctx context.Context, runID string) ([]StepRun, error)
	MarkStepRunStarted(ctx context.Context, stepRunID string, attempts int) error
	MarkStepRunFinished(ctx context.Context, stepRunID string, status string, errMsg *string) error
}

// IntegrationRepository provides CRUD operations for provider integrations.
// Implementations encrypt the credential bag at rest.
type IntegrationRepository interface {
	Create(ctx context.Context, i *Integration) (*Integration, error)
	GetByID(ctx context.Context, id string) (*Integration, error)
	List(ctx context.Context, page PageRequest) ([]Integration, int64, error)
	UpdateCredentials(ctx context.Context, id string, credentials string) error
	RecordTest(ctx context.Context, id string, ok bool, testedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// TemplateRepository provides CRUD operations for query templates.
type TemplateRepository interface {
	Create(ctx context.Context, t *QueryTemplate) (*QueryTemplate, error)
	GetByID(ctx context.Context, id string) (*QueryTemplate, error)
	GetByName(ctx context.Context, name string) (*QueryTemplate, error)
	List(ctx context.Context, page PageRequest) ([]QueryTemplate, int64, error)
	Update(ctx context.Context, id string, sql string, description *string) (*QueryTemplate, error)
	Delete(ctx context.Context, id string) error
}

// AuditRepository provides operations for audit log entries.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, int64, error)
}

// QueryHistoryRepository records executed statements.
type QueryHistoryRepository interface {
	Insert(ctx context.Context, e *QueryHistoryEntry) error
	List(ctx context.Context, filter QueryHistoryFilter, page PageRequest) ([]QueryHistoryEntry, int64, error)
}
