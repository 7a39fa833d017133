package domain

import (
	"strings"
	"time"
)

// Plan levels a user account can hold.
const (
	PlanFree  = "free"
	PlanPro   = "pro"
	PlanAdmin = "admin"
)

// User is an account that can authenticate and own tables, workflows,
// integrations, and templates.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	Plan         string
	Disabled     bool
	CreatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin plan.
func (u *User) IsAdmin() bool { return u.Plan == PlanAdmin }

// CreateUserRequest carries the fields for creating a user.
type CreateUserRequest struct {
	Email       string
	DisplayName string
	Password    string
	Plan        string
}

// Validate checks the request for required fields and a known plan.
func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || !strings.Contains(r.Email, "@") {
		return ErrValidation("a valid email is required")
	}
	if len(r.Password) < 8 {
		return ErrValidation("password must be at least 8 characters")
	}
	if r.Plan != "" && !ValidPlan(r.Plan) {
		return ErrValidation("unknown plan %q", r.Plan)
	}
	return nil
}

// ValidPlan reports whether p names a known plan.
func ValidPlan(p string) bool {
	switch p {
	case PlanFree, PlanPro, PlanAdmin:
		return true
	}
	return false
}

// APIKey is a long-lived credential tied to a user. Only the SHA-256 hash is
// stored; the raw key is shown once at creation.
type APIKey struct {
	ID        int64
	UserID    int64
	Name      string
	KeyPrefix string
	KeyHash   string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the key is past its expiry, if one is set.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
