package admin

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"dataforge/internal/domain"
)

const tokenIssuer = "dataforge"

// AuthService authenticates users and issues HS256 bearer tokens.
type AuthService struct {
	users    domain.UserRepository
	audit    domain.AuditRepository
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewAuthService creates an auth service. tokenTTL of zero defaults to 24h.
func NewAuthService(users domain.UserRepository, audit domain.AuditRepository, secret string, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:    users,
		audit:    audit,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies the password and returns a signed token. Failures are
// deliberately uniform: callers cannot distinguish a missing account from a
// wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.logAudit(ctx, email, "auth.login", domain.AuditStatusDenied, "unknown account")
		return nil, domain.ErrAccessDenied("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logAudit(ctx, email, "auth.login", domain.AuditStatusDenied, "bad password")
		return nil, domain.ErrAccessDenied("invalid email or password")
	}

	if user.Disabled {
		s.logAudit(ctx, email, "auth.login", domain.AuditStatusDenied, "account disabled")
		return nil, domain.ErrAccessDenied("account is disabled")
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := s.issueToken(user, expiresAt)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, email, "auth.login", domain.AuditStatusAllowed, "")
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) issueToken(user *domain.User, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(user.ID, 10),
		"email": user.Email,
		"name":  user.DisplayName,
		"plan":  user.Plan,
		"iss":   tokenIssuer,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

func (s *AuthService) logAudit(ctx context.Context, email, action, status, detail string) {
	entry := &domain.AuditEntry{
		UserEmail: email,
		Action:    action,
		Status:    status,
		Detail:    detail,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Warn("audit insert failed", "action", action, "error", err)
	}
}
