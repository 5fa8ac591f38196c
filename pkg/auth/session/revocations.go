// Package session tracks access tokens that were explicitly ended before
// their expiry, such as by logging out.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

type revocationStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	RevokedTokenKey(tokenID string) string
}

// Revocations records revoked token ids until they would have expired anyway.
type Revocations struct {
	store revocationStore
	now   func() time.Time
}

// Checker is the read side used by request authentication.
type Checker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

func NewRevocations(store revocationStore) (*Revocations, error) {
	if store == nil {
		return nil, errors.New("revocation store is required")
	}
	return &Revocations{store: store, now: time.Now}, nil
}

// Revoke marks tokenID revoked until expiresAt. Already expired tokens are
// ignored.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return errors.New("token id is required")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.store.Set(ctx, r.store.RevokedTokenKey(tokenID), "1", ttl)
}

// IsRevoked reports whether tokenID was revoked.
func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if strings.TrimSpace(tokenID) == "" {
		return false, nil
	}
	return r.store.Exists(ctx, r.store.RevokedTokenKey(tokenID))
}
