// Package query implements SQL execution with per-user routing between the
// embedded engine and the remote executor.
package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dataforge/internal/domain"
)

// EngineSession is the embedded-engine surface the service needs.
type EngineSession interface {
	ExecuteQuery(ctx context.Context, sql string) (*domain.QueryResult, error)
}

// RemoteExecutor runs SQL against the configured remote backend.
type RemoteExecutor interface {
	Execute(ctx context.Context, sql string) (*domain.QueryResult, error)
}

// Service routes query execution by the caller's execution mode and records
// history and audit entries for every statement.
type Service struct {
	engine  EngineSession
	remote  RemoteExecutor // nil when no remote executor is configured
	users   domain.UserRepository
	history domain.QueryHistoryRepository
	audit   domain.AuditRepository
	logger  *slog.Logger
}

// NewService creates a query service. remote may be nil.
func NewService(
	engine EngineSession,
	remote RemoteExecutor,
	users domain.UserRepository,
	history domain.QueryHistoryRepository,
	audit domain.AuditRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		engine:  engine,
		remote:  remote,
		users:   users,
		history: history,
		audit:   audit,
		logger:  logger,
	}
}

// ResolveMode returns the mode a request should run in: the per-request
// override when present, otherwise the user's persisted preference.
func (s *Service) ResolveMode(ctx context.Context, user *domain.User, override *domain.ExecutionMode) (domain.ExecutionMode, error) {
	if override != nil {
		return *override, nil
	}
	return s.users.GetExecutionMode(ctx, user.ID)
}

// SetMode persists the user's execution mode preference. No table migration
// happens on switch: tables loaded in the other mode become unreachable.
func (s *Service) SetMode(ctx context.Context, user *domain.User, mode domain.ExecutionMode) error {
	if err := s.users.SetExecutionMode(ctx, user.ID, mode); err != nil {
		return err
	}
	s.logAudit(ctx, user, "mode.set", domain.AuditStatusAllowed, string(mode))
	return nil
}

// Mode returns the user's persisted execution mode.
func (s *Service) Mode(ctx context.Context, user *domain.User) (domain.ExecutionMode, error) {
	return s.users.GetExecutionMode(ctx, user.ID)
}

// Execute runs SQL in the resolved mode and returns the full result.
func (s *Service) Execute(ctx context.Context, user *domain.User, sqlQuery string, override *domain.ExecutionMode) (*domain.QueryResult, error) {
	if strings.TrimSpace(sqlQuery) == "" {
		return nil, domain.ErrValidation("sql query is required")
	}

	mode, err := s.ResolveMode(ctx, user, override)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var result *domain.QueryResult

	switch mode {
	case domain.ModeRemote:
		if s.remote == nil {
			return nil, domain.ErrUnavailable("remote execution is not configured")
		}
		result, err = s.remote.Execute(ctx, sqlQuery)
	default:
		result, err = s.engine.ExecuteQuery(ctx, sqlQuery)
	}
	duration := time.Since(start).Milliseconds()

	if err != nil {
		s.recordHistory(ctx, user, sqlQuery, mode, domain.AuditStatusError, err.Error(), duration, 0)
		s.logAudit(ctx, user, "query.execute", domain.AuditStatusError, err.Error())
		return nil, err
	}

	s.recordHistory(ctx, user, sqlQuery, mode, domain.AuditStatusAllowed, "", duration, int64(result.RowCount))
	s.logAudit(ctx, user, "query.execute", domain.AuditStatusAllowed, "")
	return result, nil
}

// History lists the caller's executed statements, most recent first.
func (s *Service) History(ctx context.Context, user *domain.User, page domain.PageRequest) ([]domain.QueryHistoryEntry, int64, error) {
	filter := domain.QueryHistoryFilter{UserID: &user.ID}
	return s.history.List(ctx, filter, page)
}

func (s *Service) recordHistory(ctx context.Context, user *domain.User, sqlQuery string,
	mode domain.ExecutionMode, status, errMsg string, durationMs, rowCount int64) {

	entry := &domain.QueryHistoryEntry{
		UserID:     user.ID,
		SQL:        sqlQuery,
		Mode:       string(mode),
		Status:     status,
		Error:      errMsg,
		DurationMs: durationMs,
		RowCount:   rowCount,
	}
	if err := s.history.Insert(ctx, entry); err != nil {
		s.logger.Warn("record query history failed", "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, user *domain.User, action, status, detail string) {
	_ = s.audit.Insert(ctx, &domain.AuditEntry{
		UserEmail: user.Email,
		Action:    action,
		Status:    status,
		Detail:    detail,
	})
}
