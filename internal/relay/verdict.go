package relay

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/registry"
)

type verdict int

const (
	delivered verdict = iota
	retryLater
	deadLetter
)

func (v verdict) String() string {
	switch v {
	case delivered:
		return "delivered"
	case retryLater:
		return "retry"
	default:
		return "dead_letter"
	}
}

// judge decides what happens to a row after attempt number attempt ended
// with err.
func judge(err error, attempt, maxAttempts int) (verdict, enums.OutboxDLQErrorReason) {
	if err == nil {
		return delivered, ""
	}
	var permanent registry.NonRetryableError
	if errors.As(err, &permanent) {
		return deadLetter, enums.OutboxDLQReasonNonRetryable
	}
	if attempt >= maxAttempts {
		return deadLetter, enums.OutboxDLQReasonMaxAttempts
	}
	return retryLater, ""
}

// exhausted annotates the final transient error of a row.
func exhausted(err error, attempts int) error {
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
