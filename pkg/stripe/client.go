// Package stripe wraps the hosted checkout and webhook secret of one Stripe
// account.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

// keyPrefixes lists the secret and restricted key prefixes each account mode
// accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

var errNotInitialized = errors.New("stripe client not initialized")

type sessionCreator func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// Client creates checkout sessions and exposes the webhook signing secret.
type Client struct {
	mode          string
	signingSecret string
	create        sessionCreator
}

// Configured reports whether both the API key and webhook secret are set.
// An unconfigured account means payments are disabled.
func Configured(cfg config.StripeConfig) bool {
	return strings.TrimSpace(cfg.APIKey) != "" && strings.TrimSpace(cfg.Secret) != ""
}

// NewClient checks the account settings and installs the API key. Every
// problem with the settings is reported together.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode, apiKey, secret, err := checkSettings(cfg)
	if err != nil {
		return nil, err
	}

	stripe.Key = apiKey
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe client ready")
	}
	return &Client{mode: mode, signingSecret: secret, create: session.New}, nil
}

func checkSettings(cfg config.StripeConfig) (mode, apiKey, secret string, err error) {
	mode = cfg.Environment()
	apiKey = strings.TrimSpace(cfg.APIKey)
	secret = strings.TrimSpace(cfg.Secret)

	prefixes, known := keyPrefixes[mode]
	if !known {
		err = multierr.Append(err, fmt.Errorf("stripe environment must be test or live, got %q", mode))
	}
	switch {
	case apiKey == "":
		err = multierr.Append(err, errors.New("stripe api key is required"))
	case known && !hasAnyPrefix(apiKey, prefixes):
		err = multierr.Append(err, fmt.Errorf("stripe %s mode needs a %s key", mode, strings.Join(prefixes, " or ")))
	}
	if secret == "" {
		err = multierr.Append(err, errors.New("stripe webhook secret is required"))
	}
	return mode, apiKey, secret, err
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// NewCheckoutSession creates a hosted checkout page bound to ctx.
func (c *Client) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if c == nil || c.create == nil {
		return nil, errNotInitialized
	}
	if params == nil {
		return nil, errors.New("checkout session params are required")
	}
	params.Context = ctx
	sess, err := c.create(params)
	if err != nil {
		return nil, fmt.Errorf("create %s checkout session: %w", c.mode, err)
	}
	return sess, nil
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}
