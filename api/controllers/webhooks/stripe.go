package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/idempotency"
)

// StripeConsumer names the webhook in idempotency keys.
const StripeConsumer = "stripe-webhook"

// Stripe caps event payloads at 64KiB.
const maxPayloadBytes = 64 << 10

type StripeEventHandler interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type signingSecretSource interface {
	SigningSecret() string
}

type deliveryGuard interface {
	OnceKey(ctx context.Context, consumer, id string, fn func(context.Context) error) (bool, error)
}

type received struct {
	Received bool `json:"received"`
}

// StripeWebhook verifies the Stripe-Signature header and hands each event to
// handler at most once. Redeliveries of a handled event get the same 200; a
// failed event is released so Stripe's retry runs it again.
func StripeWebhook(handler StripeEventHandler, secrets signingSecretSource, guard deliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if handler == nil || secrets == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhooks are not configured"))
			return
		}

		event, err := verifyEvent(r, secrets.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event": event.ID, "stripe_type": string(event.Type)})
		}

		duplicate, err := guard.OnceKey(ctx, StripeConsumer, event.ID, func(ctx context.Context) error {
			return handler.HandleEvent(ctx, &event)
		})
		if errors.Is(err, idempotency.ErrUnavailable) {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			if duplicate {
				logg.Info(ctx, "stripe event already handled")
			} else {
				logg.Info(ctx, "stripe event handled")
			}
		}
		responses.WriteSuccess(w, received{Received: true})
	}
}

func verifyEvent(r *http.Request, secret string) (stripe.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "Webhook error: missing Stripe-Signature header")
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Webhook error: unreadable body")
	}
	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Webhook error: invalid signature")
	}
	return event, nil
}
