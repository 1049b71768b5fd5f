package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/payments"
)

type CheckoutService interface {
	ProcessPayment(ctx context.Context, who auth.Identity, in payments.CheckoutInput) (payments.Checkout, error)
	GatewayKey() string
}

type paymentItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type paymentAddressRequest struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// processPaymentRequest carries no binding rules; the coordinator reports
// missing fields with a single message.
type processPaymentRequest struct {
	Items           []paymentItemRequest   `json:"items"`
	ShippingAddress *paymentAddressRequest `json:"shippingAddress"`
	TotalAmount     *float64               `json:"totalAmount"`
}

func ProcessPayment(svc CheckoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payment/process-payment"
		defer handlePanic(c, route)

		identity, ok := requireIdentity(c, route)
		if !ok {
			return
		}

		var req processPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		in := payments.CheckoutInput{TotalAmount: req.TotalAmount}
		for _, item := range req.Items {
			in.Items = append(in.Items, payments.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if req.ShippingAddress != nil {
			in.ShippingAddress = &models.ShippingAddress{
				Address:    req.ShippingAddress.Address,
				City:       req.ShippingAddress.City,
				PostalCode: req.ShippingAddress.PostalCode,
				Country:    req.ShippingAddress.Country,
			}
		}

		checkout, err := svc.ProcessPayment(c.Request.Context(), identity, in)
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		respondOK(c, http.StatusOK, gin.H{"sessionId": checkout.SessionID, "url": checkout.URL})
	}
}

// GetStripeKey answers the publishable key under both the legacy
// "stripeApiKey" name and "apiKey".
func GetStripeKey(svc CheckoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /payment/get-stripe-key"
		defer handlePanic(c, route)

		key := svc.GatewayKey()
		respondOK(c, http.StatusOK, gin.H{"stripeApiKey": key, "apiKey": key})
	}
}
