package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/crypto/bcrypt"

	"dataforge/internal/domain"
)

// seedAdmin creates the bootstrap admin account when the user table is
// empty. Credentials come from ADMIN_EMAIL / ADMIN_PASSWORD, defaulting to
// a dev-only account. Idempotent.
func seedAdmin(ctx context.Context, users domain.UserRepository, logger *slog.Logger) error {
	_, total, err := users.List(ctx, domain.PageRequest{MaxResults: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@localhost"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin-dev-password"
		logger.Warn("ADMIN_PASSWORD not set, seeding admin with the dev default")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if _, err := users.Create(ctx, &domain.User{
		Email:        email,
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Plan:         domain.PlanAdmin,
	}); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	logger.Info("seeded bootstrap admin account", "email", email)
	return nil
}
