package admin

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"dataforge/internal/domain"
)

const apiKeyPrefixLen = 12

// APIKeyService manages long-lived API credentials. Raw keys are returned
// once at creation; only a SHA-256 hash is stored.
type APIKeyService struct {
	keys   domain.APIKeyRepository
	users  domain.UserRepository
	audit  domain.AuditRepository
	logger *slog.Logger
}

// NewAPIKeyService creates an API key service.
func NewAPIKeyService(keys domain.APIKeyRepository, users domain.UserRepository, audit domain.AuditRepository, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{keys: keys, users: users, audit: audit, logger: logger}
}

// CreatedKey carries the one-time raw key alongside the stored record.
type CreatedKey struct {
	Key    string
	Record *domain.APIKey
}

// Create mints a new key for the user. expiresAt may be nil for a
// non-expiring key.
func (s *APIKeyService) Create(ctx context.Context, user *domain.User, name string, expiresAt *time.Time) (*CreatedKey, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrValidation("key name is required")
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, domain.ErrValidation("expiry must be in the future")
	}

	raw, err := generateKey()
	if err != nil {
		return nil, err
	}

	record := &domain.APIKey{
		UserID:    user.ID,
		Name:      name,
		KeyPrefix: raw[:apiKeyPrefixLen],
		KeyHash:   HashKey(raw),
		ExpiresAt: expiresAt,
	}
	if err := s.keys.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logAudit(ctx, user, "apikey.create", name)
	return &CreatedKey{Key: raw, Record: record}, nil
}

// Authenticate resolves a raw key to its owning user. Expired keys and
// disabled accounts are rejected.
func (s *APIKeyService) Authenticate(ctx context.Context, rawKey string) (*domain.User, error) {
	key, err := s.keys.GetByHash(ctx, HashKey(rawKey))
	if err != nil {
		return nil, domain.ErrAccessDenied("invalid API key")
	}
	if key.Expired(time.Now()) {
		return nil, domain.ErrAccessDenied("API key has expired")
	}

	user, err := s.users.GetByID(ctx, key.UserID)
	if err != nil {
		return nil, domain.ErrAccessDenied("invalid API key")
	}
	if user.Disabled {
		return nil, domain.ErrAccessDenied("account is disabled")
	}
	return user, nil
}

// List returns the user's keys (hashes included, raw keys are gone).
func (s *APIKeyService) List(ctx context.Context, user *domain.User, page domain.PageRequest) ([]domain.APIKey, int64, error) {
	return s.keys.ListByUser(ctx, user.ID, page)
}

// Delete revokes one of the user's keys. Admins may revoke any key.
func (s *APIKeyService) Delete(ctx context.Context, user *domain.User, keyID int64) error {
	keys, _, err := s.keys.ListByUser(ctx, user.ID, domain.PageRequest{MaxResults: 500})
	if err != nil {
		return err
	}
	owned := false
	for _, k := range keys {
		if k.ID == keyID {
			owned = true
			break
		}
	}
	if !owned && !user.IsAdmin() {
		return domain.ErrAccessDenied("key does not belong to you")
	}

	if err := s.keys.Delete(ctx, keyID); err != nil {
		return err
	}
	s.logAudit(ctx, user, "apikey.delete", "")
	return nil
}

// PurgeExpired deletes keys past their expiry and returns the count.
func (s *APIKeyService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.keys.DeleteExpired(ctx, time.Now())
}

// HashKey returns the hex SHA-256 digest used for key lookup.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "dfk_" + hex.EncodeToString(buf), nil
}

func (s *APIKeyService) logAudit(ctx context.Context, user *domain.User, action, detail string) {
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
