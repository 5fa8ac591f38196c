package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const AggregateBooking OutboxAggregateType = "booking"

// OutboxEventType names a domain event carried through the outbox.
type OutboxEventType string

const (
	EventBookingCreated   OutboxEventType = "booking_created"
	EventBookingCancelled OutboxEventType = "booking_cancelled"
)

// OutboxDLQErrorReason records why the relay stopped retrying an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var (
	aggregateTypes = []OutboxAggregateType{AggregateBooking}
	eventTypes     = []OutboxEventType{EventBookingCreated, EventBookingCancelled}
)

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

// ParseOutboxAggregateType converts a message attribute into an aggregate type.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseKnown(value, aggregateTypes, "aggregate type")
}

// ParseOutboxEventType converts a message attribute into an event type.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseKnown(value, eventTypes, "event type")
}

func parseKnown[T ~string](value string, known []T, what string) (T, error) {
	if v := T(value); slices.Contains(known, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", what, value)
}
