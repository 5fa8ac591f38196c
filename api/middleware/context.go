package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/tourbook-backend/pkg/auth"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox"
)

type contextKey string

const (
	ctxUser   contextKey = "user"
	ctxClaims contextKey = "claims"
)

// WithUser stores the authenticated user and the token claims it presented.
func WithUser(ctx context.Context, user *models.User, claims *pkgAuth.AccessTokenClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUser, user)
	if user != nil {
		ctx = outbox.WithActor(ctx, outbox.ActorRef{UserID: user.ID, Role: string(user.Role)})
	}
	return context.WithValue(ctx, ctxClaims, claims)
}

// UserFromContext returns the authenticated user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *models.User {
	if ctx == nil {
		return nil
	}
	user, _ := ctx.Value(ctxUser).(*models.User)
	return user
}

func ClaimsFromContext(ctx context.Context) *pkgAuth.AccessTokenClaims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(ctxClaims).(*pkgAuth.AccessTokenClaims)
	return claims
}

// RoleFromContext returns the caller's role or "" when anonymous.
func RoleFromContext(ctx context.Context) string {
	if user := UserFromContext(ctx); user != nil {
		return string(user.Role)
	}
	return ""
}
