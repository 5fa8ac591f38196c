package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims is the typed JWT issued to clients. IssuedAtMicro keeps
// sub-second issuance precision so a token minted in the same second as a
// password change can still be ordered against it.
type AccessTokenClaims struct {
	UserID        uuid.UUID `json:"user_id"`
	IssuedAtMicro int64     `json:"iat_us"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the precise issuance instant.
func (c *AccessTokenClaims) IssuedAtTime() time.Time {
	if c.IssuedAtMicro > 0 {
		return time.UnixMicro(c.IssuedAtMicro).UTC()
	}
	if c.IssuedAt != nil {
		return c.IssuedAt.Time.UTC()
	}
	return time.Time{}
}

// ExpiresAtTime returns the expiry, or the zero time when absent.
func (c *AccessTokenClaims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}
