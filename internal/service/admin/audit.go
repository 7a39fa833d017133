package admin

import (
	"context"

	"dataforge/internal/domain"
)

// AuditService exposes the append-only audit log to admins.
type AuditService struct {
	audit domain.AuditRepository
}

// NewAuditService creates an audit service.
func NewAuditService(audit domain.AuditRepository) *AuditService {
	return &AuditService{audit: audit}
}

// List returns audit entries matching the filter, most recent first.
func (s *AuditService) List(ctx context.Context, actor *domain.User, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, domain.ErrAccessDenied("audit log requires the admin plan")
	}
	return s.audit.List(ctx, filter)
}
