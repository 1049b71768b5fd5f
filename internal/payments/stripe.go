package payments

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeGateway opens hosted checkout sessions through the Stripe API.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a client whose requests are bounded by timeout and
// never retried by the SDK, so a slow session request cannot be duplicated.
func NewStripeGateway(secretKey string, timeout time.Duration) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("stripe secret key is empty")
	}

	httpClient := &http.Client{Timeout: timeout}
	backendConfig := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}

	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	})
	return &StripeGateway{api: api}, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	params := buildSessionParams(ctx, req)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			log.Printf("[PAYMENT] [ERROR] stripe rejected session: status=%d code=%s", stripeErr.HTTPStatusCode, stripeErr.Code)
		}
		return Session{}, err
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

func buildSessionParams(ctx context.Context, req SessionRequest) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if isAbsoluteURL(item.Image) {
			productData.Images = stripe.StringSlice([]string{item.Image})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		Metadata:           map[string]string{"userId": req.UserID},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return params
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

var ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

type unconfiguredGateway struct{}

func (unconfiguredGateway) CreateCheckoutSession(context.Context, SessionRequest) (Session, error) {
	return Session{}, ErrGatewayNotConfigured
}

// GatewayFromKey returns a Stripe gateway, or one that rejects every checkout
// when no secret key is configured.
func GatewayFromKey(secretKey string, timeout time.Duration) Gateway {
	g, err := NewStripeGateway(secretKey, timeout)
	if err != nil {
		log.Println("[PAYMENT] [ERROR] checkout disabled:", err)
		return unconfiguredGateway{}
	}
	return g
}
