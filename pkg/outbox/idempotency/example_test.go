package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type mapStore map[string]bool

func (m mapStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m[key] {
		return false, nil
	}
	m[key] = true
	return true, nil
}

func (m mapStore) IdempotencyKey(scope, id string) string { return scope + "/" + id }

func (m mapStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func ExampleManager_Once() {
	ctx := context.Background()
	manager, _ := NewManager(mapStore{}, time.Hour)
	eventID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	attempt := 0
	record := func(context.Context) error {
		attempt++
		if attempt == 1 {
			return errors.New("bigquery timeout")
		}
		return nil
	}

	for delivery := 1; delivery <= 3; delivery++ {
		skipped, err := manager.Once(ctx, "booking-analytics", eventID, record)
		fmt.Printf("delivery %d: skipped=%v err=%v\n", delivery, skipped, err)
	}
	// Output:
	// delivery 1: skipped=false err=bigquery timeout
	// delivery 2: skipped=false err=<nil>
	// delivery 3: skipped=true err=<nil>
}
