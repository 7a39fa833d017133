// Package admin provides account management, authentication, API keys, and
// audit log access.
package admin

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"dataforge/internal/domain"
)

// UserService manages user accounts. Mutations are admin-only; handlers
// enforce the plan check, the service enforces invariants.
type UserService struct {
	users  domain.UserRepository
	audit  domain.AuditRepository
	logger *slog.Logger
}

// NewUserService creates a user service.
func NewUserService(users domain.UserRepository, audit domain.AuditRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, audit: audit, logger: logger}
}

// Create registers a new account with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, actor *domain.User, req domain.CreateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	plan := req.Plan
	if plan == "" {
		plan = domain.PlanFree
	}

	created, err := s.users.Create(ctx, &domain.User{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Plan:         plan,
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, actor, "user.create", domain.AuditStatusAllowed, created.Email)
	return created, nil
}

// Get returns one user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// List returns users with the total count.
func (s *UserService) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	return s.users.List(ctx, page)
}

// SetPlan changes a user's plan.
func (s *UserService) SetPlan(ctx context.Context, actor *domain.User, id int64, plan string) error {
	if !domain.ValidPlan(plan) {
		return domain.ErrValidation("unknown plan %q", plan)
	}
	if err := s.users.SetPlan(ctx, id, plan); err != nil {
		return err
	}
	s.logAudit(ctx, actor, "user.set_plan", domain.AuditStatusAllowed, plan)
	return nil
}

// SetDisabled flips a user's disabled flag. Admins cannot disable themselves.
func (s *UserService) SetDisabled(ctx context.Context, actor *domain.User, id int64, disabled bool) error {
	if disabled && actor.ID == id {
		return domain.ErrValidation("cannot disable your own account")
	}
	if err := s.users.SetDisabled(ctx, id, disabled); err != nil {
		return err
	}
	action := "user.enable"
	if disabled {
		action = "user.disable"
	}
	s.logAudit(ctx, actor, action, domain.AuditStatusAllowed, "")
	return nil
}

// Delete removes a user account. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	if actor.ID == id {
		return domain.ErrValidation("cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, actor, "user.delete", domain.AuditStatusAllowed, "")
	return nil
}

func (s *UserService) logAudit(ctx context.Context, actor *domain.User, action, status, detail string) {
	entry := &domain.AuditEntry{
		UserEmail: actor.Email,
		Action:    action,
		Status:    status,
		Detail:    detail,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Warn("audit insert failed", "action", action, "error", err)
	}
}
