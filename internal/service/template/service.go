// Package template manages saved SQL bodies that workflow steps and ad-hoc
// queries reference by name.
package template

import (
	"context"
	"log/slog"
	"strings"

	"dataforge/internal/domain"
)

// Service provides query template management.
type Service struct {
	templates domain.TemplateRepository
	audit     domain.AuditRepository
	logger    *slog.Logger
}

// NewService creates a template service.
func NewService(templates domain.TemplateRepository, audit domain.AuditRepository, logger *slog.Logger) *Service {
	return &Service{templates: templates, audit: audit, logger: logger}
}

// Create saves a new template.
func (s *Service) Create(ctx context.Context, user *domain.User, req domain.CreateTemplateRequest) (*domain.QueryTemplate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	created, err := s.templates.Create(ctx, &domain.QueryTemplate{
		ID:          domain.NewID(),
		Name:        req.Name,
		Description: req.Description,
		SQL:         req.SQL,
		CreatedBy:   user.ID,
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, user, "template.create", created.Name)
	return created, nil
}

// Get returns one template by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.QueryTemplate, error) {
	return s.templates.GetByID(ctx, id)
}

// GetByName returns one template by name.
func (s *Service) GetByName(ctx context.Context, name string) (*domain.QueryTemplate, error) {
	return s.templates.GetByName(ctx, name)
}

// List returns templates with the total count.
func (s *Service) List(ctx context.Context, page domain.PageRequest) ([]domain.QueryTemplate, int64, error) {
	return s.templates.List(ctx, page)
}

// Update replaces a template's SQL body and optionally its description.
func (s *Service) Update(ctx context.Context, user *domain.User, id, sql string, description *string) (*domain.QueryTemplate, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, domain.ErrValidation("template sql is required")
	}
	updated, err := s.templates.Update(ctx, id, sql, description)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user, "template.update", updated.Name)
	return updated, nil
}

// Delete removes a template. Workflow steps referencing it will fail at run
// time, not at delete time.
func (s *Service) Delete(ctx context.Context, user *domain.User, id string) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, user, "template.delete", id)
	return nil
}

func (s *Service) logAudit(ctx context.Context, user *domain.User, action, detail string) {
	entry := &domain.AuditEntry{
		UserEmail: user.Email,
		Action:    action,
		Status:    domain.AuditStatusAllowed,
		Detail:    detail,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Warn("audit insert failed", "action", action, "error", err)
	}
}
