// Package router decodes booking events and hands them to per-type handlers.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/tourbook-backend/internal/analytics/types"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer receives the rows produced by handlers.
type Writer interface {
	InsertBooking(ctx context.Context, row types.BookingEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// Option adjusts a Router under construction.
type Option func(*settings)

type settings struct {
	logg      *logger.Logger
	overrides map[enums.OutboxEventType]Handler
}

// WithLogger sets the logger handlers log through. The default discards.
func WithLogger(logg *logger.Logger) Option {
	return func(s *settings) { s.logg = logg }
}

// WithHandler replaces the built-in handler of a supported event type.
func WithHandler(eventType enums.OutboxEventType, h Handler) Option {
	return func(s *settings) { s.overrides[eventType] = h }
}

// Router dispatches envelopes by event type.
type Router struct {
	routes   map[enums.OutboxEventType]Handler
	payloads payloadDecoder
}

func New(writer Writer, opts ...Option) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	cfg := settings{overrides: map[enums.OutboxEventType]Handler{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logg == nil {
		cfg.logg = logger.Nop()
	}

	routes := map[enums.OutboxEventType]Handler{
		enums.EventBookingCreated:   &rowHandler[payloads.BookingCreatedEvent]{writer: writer, logg: cfg.logg, fill: bookingCreated},
		enums.EventBookingCancelled: &rowHandler[payloads.BookingCancelledEvent]{writer: writer, logg: cfg.logg, fill: bookingCancelled},
	}
	for eventType, h := range cfg.overrides {
		if _, ok := routes[eventType]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventType, eventType)
		}
		if h == nil {
			return nil, fmt.Errorf("nil handler for %s", eventType)
		}
		routes[eventType] = h
	}
	return &Router{routes: routes, payloads: registry.Payloads()}, nil
}

// Handle decodes the payload and runs the matching handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	h, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", envelope.EventType)
	}
	payload, err := r.payloads.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("%s: %w", envelope.EventType, err)
	}
	return h.Handle(ctx, envelope, payload)
}
