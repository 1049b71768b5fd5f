package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func TestBuildSessionParams(t *testing.T) {
	ctx := context.Background()
	params := buildSessionParams(ctx, SessionRequest{
		Currency: "inr",
		Items: []LineItem{
			{Name: "Lamp", Image: "https://cdn.example.com/lamp.png", UnitAmount: 1999, Quantity: 1},
			{Name: "Mug", Image: "/uploads/mug.png", UnitAmount: 500, Quantity: 2},
		},
		CustomerEmail:  "buyer@example.com",
		UserID:         "64b7f0c2a1b2c3d4e5f60718",
		SuccessURL:     "https://shop.example.com/ok",
		CancelURL:      "https://shop.example.com/cancel",
		IdempotencyKey: "key-1",
	})

	assert.Equal(t, string(stripe.CheckoutSessionModePayment), stripe.StringValue(params.Mode))
	assert.Equal(t, "https://shop.example.com/ok", stripe.StringValue(params.SuccessURL))
	assert.Equal(t, "https://shop.example.com/cancel", stripe.StringValue(params.CancelURL))
	assert.Equal(t, "buyer@example.com", stripe.StringValue(params.CustomerEmail))
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", params.Metadata["userId"])
	assert.Equal(t, "key-1", stripe.StringValue(params.IdempotencyKey))
	assert.Equal(t, ctx, params.Context)

	require.Len(t, params.LineItems, 2)
	first := params.LineItems[0]
	assert.Equal(t, int64(1999), stripe.Int64Value(first.PriceData.UnitAmount))
	assert.Equal(t, "inr", stripe.StringValue(first.PriceData.Currency))
	assert.Equal(t, "Lamp", stripe.StringValue(first.PriceData.ProductData.Name))
	assert.Equal(t, []*string{stripe.String("https://cdn.example.com/lamp.png")}, first.PriceData.ProductData.Images)

	second := params.LineItems[1]
	assert.Equal(t, int64(2), stripe.Int64Value(second.Quantity))
	assert.Empty(t, second.PriceData.ProductData.Images)
}

func TestNewStripeGatewayRequiresKey(t *testing.T) {
	_, err := NewStripeGateway("  ", time.Second)
	assert.Error(t, err)

	g, err := NewStripeGateway("sk_test_123", time.Second)
	require.NoError(t, err)
	assert.NotNil(t, g.api.CheckoutSessions)
}

func TestGatewayFromKeyWithoutSecret(t *testing.T) {
	g := GatewayFromKey("", time.Second)
	_, err := g.CreateCheckoutSession(context.Background(), SessionRequest{})
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)

	_, ok := GatewayFromKey("sk_test_123", time.Second).(*StripeGateway)
	assert.True(t, ok)
}
