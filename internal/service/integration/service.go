// Package integration manages connections to external providers.
package integration

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"dataforge/internal/domain"
)

// Tester checks connectivity for a provider given its decrypted credential
// bag. Implementations should return nil when the provider is reachable.
type Tester interface {
	Test(ctx context.Context, provider, credentials string) error
}

// TesterFunc adapts a function to the Tester interface.
type TesterFunc func(ctx context.Context, provider, credentials string) error

func (f TesterFunc) Test(ctx context.Context, provider, credentials string) error {
	return f(ctx, provider, credentials)
}

// Service provides integration management. Reads return redacted copies;
// the decrypted credential bag only leaves the service for connectivity
// tests.
type Service struct {
	integrations domain.IntegrationRepository
	audit        domain.AuditRepository
	tester       Tester
	logger       *slog.Logger
}

// NewService creates an integration service. A nil tester disables remote
// connectivity checks; Test then only validates the credential bag.
func NewService(integrations domain.IntegrationRepository, audit domain.AuditRepository, tester Tester, logger *slog.Logger) *Service {
	return &Service{
		integrations: integrations,
		audit:        audit,
		tester:       tester,
		logger:       logger,
	}
}

// Create registers a new integration and returns the redacted record.
func (s *Service) Create(ctx context.Context, user *domain.User, req domain.CreateIntegrationRequest) (*domain.Integration, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !json.Valid([]byte(req.Credentials)) {
		return nil, domain.ErrValidation("credentials must be a JSON object")
	}

	created, err := s.integrations.Create(ctx, &domain.Integration{
		ID:          domain.NewID(),
		Provider:    req.Provider,
		Name:        req.Name,
		Credentials: req.Credentials,
		CreatedBy:   user.ID,
	})
	if err != nil {
		s.logAudit(ctx, user, "integration.create", domain.AuditStatusError, err.Error())
		return nil, err
	}

	s.logAudit(ctx, user, "integration.create", domain.AuditStatusAllowed, created.Name)
	out := created.Redacted()
	return &out, nil
}

// Get returns one integration, redacted.
func (s *Service) Get(ctx context.Context, id string) (*domain.Integration, error) {
	i, err := s.integrations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := i.Redacted()
	return &out, nil
}

// List returns integrations, redacted, with the total count.
func (s *Service) List(ctx context.Context, page domain.PageRequest) ([]domain.Integration, int64, error) {
	items, total, err := s.integrations.List(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	for idx := range items {
		items[idx] = items[idx].Redacted()
	}
	return items, total, nil
}

// UpdateCredentials replaces the credential bag.
func (s *Service) UpdateCredentials(ctx context.Context, user *domain.User, id, credentials string) error {
	if !json.Valid([]byte(credentials)) {
		return domain.ErrValidation("credentials must be a JSON object")
	}
	if err := s.integrations.UpdateCredentials(ctx, id, credentials); err != nil {
		return err
	}
	s.logAudit(ctx, user, "integration.update", domain.AuditStatusAllowed, id)
	return nil
}

// Test runs a connectivity check and records the outcome and timestamp on
// the integration. The check's error is returned so callers can surface it.
func (s *Service) Test(ctx context.Context, user *domain.User, id string) error {
	i, err := s.integrations.GetByID(ctx, id)
	if err != nil {
		return err
	}

	testErr := s.runTest(ctx, i)
	ok := testErr == nil

	if err := s.integrations.RecordTest(ctx, id, ok, time.Now().UTC()); err != nil {
		s.logger.Warn("record integration test failed", "integration", i.Name, "error", err)
	}

	if testErr != nil {
		s.logAudit(ctx, user, "integration.test", domain.AuditStatusError, testErr.Error())
		return testErr
	}
	s.logAudit(ctx, user, "integration.test", domain.AuditStatusAllowed, i.Name)
	return nil
}

func (s *Service) runTest(ctx context.Context, i *domain.Integration) error {
	if !json.Valid([]byte(i.Credentials)) {
		return domain.ErrValidation("stored credentials are not valid JSON")
	}
	if s.tester == nil {
		return nil
	}
	return s.tester.Test(ctx, i.Provider, i.Credentials)
}

// Delete removes an integration.
func (s *Service) Delete(ctx context.Context, user *domain.User, id string) error {
	if err := s.integrations.Delete(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, user, "integration.delete", domain.AuditStatusAllowed, id)
	return nil
}

func (s *Service) logAudit(ctx context.Context, user *domain.User, action, status, detail string) {
	entry := &domain.AuditEntry{
		UserEmail: user.Email,
		Action:    action,
		Status:    status,
		Detail:    detail,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Warn("audit insert failed", "action", action, "error", err)
	}
}
