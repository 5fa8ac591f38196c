// Package stripewebhook applies verified Stripe events to local state.
package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/stripe/stripe-go/v84"
)

// Outcomes reported to the metrics recorder.
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)

// Fulfiller turns a paid checkout session into a booking.
type Fulfiller interface {
	FulfillCheckout(ctx context.Context, sess *stripe.CheckoutSession) error
}

// Recorder counts handled events by type and outcome.
type Recorder interface {
	WebhookEvent(eventType, outcome string)
}

type ServiceParams struct {
	Bookings Fulfiller
	Metrics  Recorder
}

type Service struct {
	bookings Fulfiller
	metrics  Recorder
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Bookings == nil {
		return nil, errors.New("booking fulfiller is required")
	}
	return &Service{bookings: params.Bookings, metrics: params.Metrics}, nil
}

// HandleEvent dispatches on the event type. Types other than a completed
// checkout are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			s.record(event.Type, OutcomeFailed)
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		if err := s.bookings.FulfillCheckout(ctx, &sess); err != nil {
			s.record(event.Type, OutcomeFailed)
			return err
		}
		s.record(event.Type, OutcomeApplied)
		return nil
	default:
		s.record(event.Type, OutcomeIgnored)
		return nil
	}
}

func (s *Service) record(eventType stripe.EventType, outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookEvent(string(eventType), outcome)
	}
}
