// Package worker consumes booking events from Pub/Sub and records them for
// analytics.
package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/internal/analytics/router"
	"github.com/angelmondragon/tourbook-backend/internal/analytics/types"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const ConsumerName = "booking-analytics"

// Handler processes one decoded envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyGuard interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

type flusher interface {
	Flush(ctx context.Context) error
}

// Service acks a message once its event is recorded or known to be a
// duplicate. Malformed messages are acked and logged since redelivery
// cannot fix them.
type Service struct {
	subscription receiver
	handler      Handler
	guard        idempotencyGuard
	flush        flusher
	logg         *logger.Logger
}

type ServiceParams struct {
	Subscription receiver
	Handler      Handler
	Guard        idempotencyGuard
	// Flusher drains buffered rows on shutdown. Optional.
	Flusher flusher
	Logger  *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case params.Handler == nil:
		return nil, errors.New("analytics handler is required")
	case params.Guard == nil:
		return nil, errors.New("idempotency manager is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: params.Subscription,
		handler:      params.Handler,
		guard:        params.Guard,
		flush:        params.Flusher,
		logg:         params.Logger,
	}, nil
}

type processResult struct {
	nack bool
}

// Run receives until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	err := s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if s.flush != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if flushErr := s.flush.Flush(flushCtx); flushErr != nil {
			s.logg.Error(ctx, "failed to flush analytics rows", flushErr)
		}
	}
	return err
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := s.logg.WithFields(ctx, fields)

	envelope, err := types.Decode(msg.Data, msg.Attributes)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid analytics envelope")
		return processResult{}
	}
	fields["event_id"] = envelope.EventID
	fields["event_type"] = envelope.EventType
	fields["aggregate_id"] = envelope.AggregateID
	fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	logCtx = s.logg.WithFields(ctx, fields)

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}

	skipped, err := s.guard.Once(logCtx, ConsumerName, eventID, func(runCtx context.Context) error {
		return s.handler.Handle(runCtx, envelope)
	})
	switch {
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(logCtx, "unsupported analytics event")
		return processResult{}
	case err != nil:
		s.logg.Error(logCtx, "analytics event failed", err)
		return processResult{nack: true}
	case skipped:
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	s.logg.Info(logCtx, "analytics event handled")
	return processResult{}
}
