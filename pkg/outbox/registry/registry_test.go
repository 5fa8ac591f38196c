package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
)

func catalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(config.PubSubConfig{BookingsTopic: " bookings-topic "})
	require.NoError(t, err)
	return c
}

func envelope(t *testing.T, version int, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func bookingRow(t *testing.T, eventType enums.OutboxEventType, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return models.OutboxEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       envelope(t, 1, string(raw)),
	}
}

func TestResolveBookingCreated(t *testing.T) {
	bookingID := uuid.New()
	row := bookingRow(t, enums.EventBookingCreated, payloads.BookingCreatedEvent{
		BookingID: bookingID,
		Price:     decimal.RequireFromString("497.00"),
		Paid:      true,
		Source:    "checkout",
	})

	resolved, err := catalog(t).Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "bookings-topic", resolved.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.BookingCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, bookingID, payload.BookingID)
	assert.True(t, payload.Price.Equal(decimal.NewFromInt(497)))
}

func TestResolveBookingCancelled(t *testing.T) {
	row := bookingRow(t, enums.EventBookingCancelled, payloads.BookingCancelledEvent{BookingID: uuid.New(), Policy: "marker"})

	resolved, err := catalog(t).Resolve(row)
	require.NoError(t, err)
	payload, ok := resolved.Payload.(*payloads.BookingCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, "marker", payload.Policy)
}

func TestResolveRejectsBadRows(t *testing.T) {
	valid := func() models.OutboxEvent {
		return bookingRow(t, enums.EventBookingCreated, payloads.BookingCreatedEvent{BookingID: uuid.New()})
	}
	cases := map[string]func(*models.OutboxEvent){
		"unknown event":      func(r *models.OutboxEvent) { r.EventType = "tour_archived" },
		"unknown version":    func(r *models.OutboxEvent) { r.Payload = envelope(t, 2, `{}`) },
		"aggregate mismatch": func(r *models.OutboxEvent) { r.AggregateType = "tour" },
		"missing aggregate":  func(r *models.OutboxEvent) { r.AggregateID = uuid.Nil },
		"null payload":       func(r *models.OutboxEvent) { r.Payload = envelope(t, 1, "null") },
		"bad envelope":       func(r *models.OutboxEvent) { r.Payload = json.RawMessage(`[`) },
		"bad payload":        func(r *models.OutboxEvent) { r.Payload = envelope(t, 1, `{"price":"lots"}`) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			row := valid()
			mutate(&row)
			_, err := catalog(t).Resolve(row)
			var permanent NonRetryableError
			assert.ErrorAs(t, err, &permanent)
		})
	}
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(config.PubSubConfig{BookingsTopic: "  "})
	assert.Error(t, err)
}

func TestPayloadsDecodesKnownVersions(t *testing.T) {
	c := Payloads()

	out, err := c.Decode(enums.EventBookingCancelled, 0, json.RawMessage(`{"policy":"delete"}`))
	require.NoError(t, err)
	cancelled, ok := out.(*payloads.BookingCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, "delete", cancelled.Policy)

	_, err = c.Decode(enums.EventBookingCancelled, 2, json.RawMessage(`{}`))
	assert.Error(t, err)
	_, err = c.Decode(enums.EventBookingCreated, 1, json.RawMessage(`{"booking_id":7}`))
	assert.Error(t, err)
}

func TestNonRetryableErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("publish: %w", NewNonRetryableError(cause))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}
