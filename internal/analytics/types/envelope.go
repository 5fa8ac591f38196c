package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox"
)

// Envelope is a booking event as received from Pub/Sub: routing fields from
// the message attributes, the rest from the stored outbox envelope.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	ActorID       string
	Version       int
	Payload       json.RawMessage
}

// Decode builds an Envelope from a message body and its attributes. The
// event id and time in the body win over the event_id and created_at
// attributes, which only fill gaps.
func Decode(body []byte, attrs map[string]string) (Envelope, error) {
	attr := func(k string) string { return strings.TrimSpace(attrs[k]) }

	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(body, &stored); err != nil {
		return Envelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}
	env := Envelope{
		EventID:     strings.TrimSpace(stored.EventID),
		AggregateID: attr("aggregate_id"),
		OccurredAt:  stored.OccurredAt,
		Version:     stored.Version,
		Payload:     stored.Data,
	}

	var err error
	if env.EventType, err = enums.ParseOutboxEventType(attr("event_type")); err != nil {
		return Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	if env.AggregateType, err = enums.ParseOutboxAggregateType(attr("aggregate_type")); err != nil {
		return Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	if env.AggregateID == "" {
		return Envelope{}, errors.New("aggregate_id missing")
	}
	if env.EventID == "" {
		env.EventID = attr("event_id")
	}
	if env.EventID == "" {
		return Envelope{}, errors.New("event_id missing")
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt, _ = time.Parse(time.RFC3339Nano, attr("created_at"))
	}
	env.OccurredAt = env.OccurredAt.UTC()
	if a := stored.Actor; a != nil && a.UserID != uuid.Nil {
		env.ActorID = a.UserID.String()
	}
	return env, nil
}
