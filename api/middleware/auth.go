package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const (
	// TokenCookie carries the access token for browser clients.
	TokenCookie = "jwt"
	// LoggedOutToken overwrites the cookie on logout.
	LoggedOutToken = "loggedOut"
)

// Authenticator resolves a raw token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// TokenFromRequest prefers the Authorization bearer token and falls back to
// the jwt cookie. The logout sentinel counts as no token.
func TokenFromRequest(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		if token := strings.TrimSpace(raw[7:]); token != "" {
			return token
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != LoggedOutToken {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// Protect rejects requests without a valid token for an active user whose
// credentials have not changed since the token was issued.
func Protect(authn Authenticator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authn == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
				return
			}
			principal, err := authn.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal, logg)))
		})
	}
}

// IsLoggedIn attaches the user when a valid token is present and otherwise
// lets the request through anonymously.
func IsLoggedIn(authn Authenticator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if authn == nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal, logg)))
		})
	}
}

// RestrictTo lets through only callers whose role is listed. It must run
// after Protect.
func RestrictTo(logg *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[RoleFromContext(r.Context())]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "You do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withPrincipal(ctx context.Context, p *auth.Principal, logg *logger.Logger) context.Context {
	ctx = WithUser(ctx, p.User, p.Claims)
	if logg != nil {
		ctx = logg.WithUserID(ctx, p.User.ID.String())
		ctx = logg.WithRole(ctx, string(p.User.Role))
	}
	return ctx
}
