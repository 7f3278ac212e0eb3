package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cloo-solutions/mmrag/internal/api"
	"github.com/cloo-solutions/mmrag/internal/domain"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	UserKey   contextKey = "user"
)

// UserIDHeader is mirrored onto the request so outer middleware can log the
// caller after the handler chain has run.
const UserIDHeader = "X-User-ID"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (*domain.User, error)
}

// APIKeyAuth resolves the bearer token to a user. Unknown or revoked keys
// are 401; keys of users that are not active are 403.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem != "" {
				api.Error(w, http.StatusUnauthorized, problem)
				return
			}

			user, err := validator.ValidateAPIKey(r.Context(), token)
			switch {
			case errors.Is(err, domain.ErrUserInactive):
				api.HandleError(w, err)
				return
			case err != nil:
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			r.Header.Set(UserIDHeader, user.ID)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// bearerToken extracts the token, or describes why the header is unusable.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", "invalid authorization format"
	}
	return strings.TrimSpace(token), ""
}

func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetUser returns the authenticated user, or nil outside APIKeyAuth.
func GetUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(UserKey).(*domain.User)
	return user
}

// WithUser attaches an authenticated user to ctx.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	return context.WithValue(ctx, UserKey, user)
}
