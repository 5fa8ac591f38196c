// Package registry catalogs the events carried through the outbox: the
// topic each one is published to and the payload type its data decodes to.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
)

type key struct {
	event   enums.OutboxEventType
	version int
}

type entry struct {
	aggregate enums.OutboxAggregateType
	decode    func(json.RawMessage) (any, error)
}

func decoderOf[T any]() func(json.RawMessage) (any, error) {
	return func(raw json.RawMessage) (any, error) {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

var bookingEvents = map[key]entry{
	{enums.EventBookingCreated, 1}:   {enums.AggregateBooking, decoderOf[payloads.BookingCreatedEvent]()},
	{enums.EventBookingCancelled, 1}: {enums.AggregateBooking, decoderOf[payloads.BookingCancelledEvent]()},
}

// Catalog resolves outbox rows for the relay and decodes payloads for
// consumers.
type Catalog struct {
	topic   string
	entries map[key]entry
}

// ResolvedEvent is an outbox row checked against the catalog.
type ResolvedEvent struct {
	Topic    string
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// New builds the catalog used when publishing. Every booking event goes to
// the bookings topic.
func New(cfg config.PubSubConfig) (*Catalog, error) {
	topic := strings.TrimSpace(cfg.BookingsTopic)
	if topic == "" {
		return nil, errors.New("bookings topic is required")
	}
	return &Catalog{topic: topic, entries: bookingEvents}, nil
}

// Payloads builds a catalog for consumers, which only decode.
func Payloads() *Catalog {
	return &Catalog{entries: bookingEvents}
}

// Decode turns data of the given event type and schema version into its
// payload struct. Version 0 means 1.
func (c *Catalog) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	if version == 0 {
		version = 1
	}
	e, ok := c.entries[key{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("no decoder for %s@v%d", eventType, version)
	}
	return e.decode(data)
}

// Resolve checks a stored row and decodes its payload. Every failure is
// non-retryable: the row will not change between attempts.
func (c *Catalog) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	version := env.Version
	if version == 0 {
		version = 1
	}
	e, ok := c.entries[key{row.EventType, version}]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event %s@v%d", row.EventType, version))
	case e.aggregate != row.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s belongs to %s aggregates, row has %s", row.EventType, e.aggregate, row.AggregateType))
	case row.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("aggregate id missing"))
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("%s has no payload", row.EventType))
	}
	payload, err := e.decode(data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &ResolvedEvent{Topic: c.topic, Envelope: env, Payload: payload}, nil
}
