package config

import (
	"errors"
	"strings"
	"time"
)

// Stripe holds the checkout gateway settings.
type Stripe struct {
	SecretKey      string        `env:"SECRET_KEY"`
	PublishableKey string        `env:"API_KEY"`
	SuccessURL     string        `env:"SUCCESS_URL" envDefault:"http://localhost:8000/orders/success"`
	CancelURL      string        `env:"CANCEL_URL" envDefault:"http://localhost:8000/orders/failed"`
	Currency       string        `env:"CURRENCY" envDefault:"inr"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Policy toggles the hardened authorization and lifecycle rules.
type Policy struct {
	EnforceOwnership          bool `env:"AUTH_ENFORCE_OWNERSHIP" envDefault:"true"`
	RequirePaidBeforeDelivery bool `env:"ORDER_REQUIRE_PAID_BEFORE_DELIVERY" envDefault:"true"`
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTExpire <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRE must be positive"))
	}
	if c.Stripe.Timeout <= 0 {
		errs = append(errs, errors.New("STRIPE_TIMEOUT must be positive"))
	}
	if strings.TrimSpace(c.Stripe.Currency) == "" {
		errs = append(errs, errors.New("STRIPE_CURRENCY must not be empty"))
	}
	return errors.Join(errs...)
}
