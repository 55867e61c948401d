package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

const (
	EnvTest = "test"
	EnvLive = "live"
)

// Client carries the validated Stripe settings for the Pro upgrade flow and
// the billing webhook. Session calls go through stripe-go's package-level
// key, which NewClient sets.
type Client struct {
	environment   string
	signingSecret string
	proPriceID    string
}

// NewClient validates cfg as a whole and reports every problem at once.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := strings.TrimSpace(strings.ToLower(cfg.Environment()))
	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	priceID := strings.TrimSpace(cfg.ProPriceID)

	var err error
	if env != EnvTest && env != EnvLive {
		err = multierr.Append(err, fmt.Errorf("stripe environment must be %q or %q, got %q", EnvTest, EnvLive, env))
	}
	if apiKey == "" {
		err = multierr.Append(err, fmt.Errorf("stripe api key is required"))
	} else if !keyMatchesEnv(env, apiKey) {
		err = multierr.Append(err, fmt.Errorf("stripe %s environment needs an sk_%s or rk_%s key", env, env, env))
	}
	if secret == "" {
		err = multierr.Append(err, fmt.Errorf("stripe webhook secret is required"))
	} else if !strings.HasPrefix(secret, "whsec_") {
		err = multierr.Append(err, fmt.Errorf("stripe webhook secret must start with whsec_"))
	}
	if priceID == "" {
		err = multierr.Append(err, fmt.Errorf("stripe pro price id is required"))
	}
	if err != nil {
		return nil, fmt.Errorf("stripe config: %w", err)
	}

	stripe.Key = apiKey
	stripe.SetAppInfo(&stripe.AppInfo{Name: "cancelmem-backend", URL: "https://cancelmem.app"})
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return &Client{environment: env, signingSecret: secret, proPriceID: priceID}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// IsLive reports whether real charges are made.
func (c *Client) IsLive() bool {
	return c.Environment() == EnvLive
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func (c *Client) ProPriceID() string {
	if c == nil {
		return ""
	}
	return c.proPriceID
}

func keyMatchesEnv(env, key string) bool {
	return strings.HasPrefix(key, "sk_"+env+"_") || strings.HasPrefix(key, "rk_"+env+"_")
}
