package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"dataforge/internal/domain"
)

type userKey struct{}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext extracts the authenticated user from the context.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(*domain.User)
	return u, ok
}

// KeyAuthenticator resolves a raw API key to its owning user.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*domain.User, error)
}

// Auth tries a bearer token first, then the X-API-Key header. Both resolve
// to a full user record; disabled accounts are rejected. Returns 401 when
// neither credential works.
func Auth(validator TokenValidator, users domain.UserRepository, keys KeyAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				tokenStr := strings.TrimPrefix(auth, "Bearer ")
				if claims, err := validator.Validate(r.Context(), tokenStr); err == nil {
					if user := resolveTokenUser(r.Context(), users, claims); user != nil {
						next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
						return
					}
				}
			}

			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" && keys != nil {
				if user, err := keys.Authenticate(r.Context(), apiKey); err == nil {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
					return
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
				"code":    http.StatusUnauthorized,
				"message": "unauthorized: provide a valid bearer token or API key",
			})
		})
	}
}

// resolveTokenUser maps token claims to a user record. Locally issued tokens
// carry the user id in sub; OIDC tokens are matched by email.
func resolveTokenUser(ctx context.Context, users domain.UserRepository, claims *TokenClaims) *domain.User {
	var (
		user *domain.User
		err  error
	)
	if id, convErr := strconv.ParseInt(claims.Subject, 10, 64); convErr == nil {
		user, err = users.GetByID(ctx, id)
	} else if claims.Email != nil {
		user, err = users.GetByEmail(ctx, *claims.Email)
	}
	if err != nil || user == nil || user.Disabled {
		return nil
	}
	return user
}

// RequireAdmin rejects non-admin users with 403. Must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
				"code":    http.StatusForbidden,
				"message": "admin plan required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
