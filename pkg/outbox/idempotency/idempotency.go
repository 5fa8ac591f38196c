// Package idempotency guards event consumers against redelivered messages.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

// ErrUnavailable wraps failures of the backing store, as opposed to failures
// of the guarded work.
var ErrUnavailable = errors.New("idempotency store unavailable")

// Manager records processed event ids per consumer with SETNX and a TTL.
// Keys look like `tb:idempotency:evt:processed:<consumer>:<event_id>`.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMarkProcessed reports whether the event was seen before. A first
// sighting is marked before returning.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	return m.checkAndMark(ctx, consumer, idString(eventID))
}

func (m *Manager) checkAndMark(ctx context.Context, consumer, id string) (bool, error) {
	key, err := m.processedKey(consumer, id)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete forgets the marker so a redelivery is processed again.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	return m.release(ctx, consumer, idString(eventID))
}

func (m *Manager) release(ctx context.Context, consumer, id string) error {
	key, err := m.processedKey(consumer, id)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// Once runs fn the first time eventID reaches consumer. When fn fails the
// marker is dropped so the next delivery retries. skipped is true for
// duplicates.
func (m *Manager) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (skipped bool, err error) {
	return m.OnceKey(ctx, consumer, idString(eventID), fn)
}

// OnceKey is Once for ids that are not uuids, such as Stripe event ids.
// Store failures wrap ErrUnavailable.
func (m *Manager) OnceKey(ctx context.Context, consumer, id string, fn func(context.Context) error) (skipped bool, err error) {
	seen, err := m.checkAndMark(ctx, consumer, id)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if seen {
		return true, nil
	}
	if err := fn(ctx); err != nil {
		if delErr := m.release(ctx, consumer, id); delErr != nil {
			return false, errors.Join(err, fmt.Errorf("release marker: %w", delErr))
		}
		return false, err
	}
	return false, nil
}

func (m *Manager) processedKey(consumer, id string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if id == "" {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, id), nil
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
