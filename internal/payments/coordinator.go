// Package payments turns a cart into a hosted checkout session at the payment
// gateway and records the session locally.
package payments

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
)

type Store interface {
	Insert(ctx context.Context, payment *models.Payment) error
}

type ProductLookup interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
}

type Options struct {
	Currency       string
	SuccessURL     string
	CancelURL      string
	PublishableKey string
	// GatewayTimeout bounds a single checkout session request.
	GatewayTimeout time.Duration
	// StoreTimeout bounds persisting the record once the session exists.
	StoreTimeout time.Duration
}

type Coordinator struct {
	gateway  Gateway
	products ProductLookup
	store    Store
	opts     Options
	newKey   func() string
	now      func() time.Time
}

func NewCoordinator(gateway Gateway, products ProductLookup, store Store, opts Options) *Coordinator {
	if opts.Currency == "" {
		opts.Currency = "inr"
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 15 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Coordinator{
		gateway:  gateway,
		products: products,
		store:    store,
		opts:     opts,
		newKey:   uuid.NewString,
		now:      time.Now,
	}
}

type CartLine struct {
	ProductID string
	Quantity  int
}

type CheckoutInput struct {
	Items           []CartLine
	ShippingAddress *models.ShippingAddress
	TotalAmount     *float64
}

type Checkout struct {
	SessionID string
	URL       string
	PaymentID primitive.ObjectID
}

var totalTolerance = decimal.RequireFromString("0.01")

// ProcessPayment prices the cart from the catalog, opens one checkout session
// and stores a pending payment record for it. Nothing is stored unless the
// gateway returned a session.
func (c *Coordinator) ProcessPayment(ctx context.Context, who auth.Identity, in CheckoutInput) (Checkout, error) {
	if who.ID.IsZero() || len(in.Items) == 0 || !addressComplete(in.ShippingAddress) || in.TotalAmount == nil {
		return Checkout{}, apperr.BadRequestf("Missing required fields")
	}

	ids := make([]primitive.ObjectID, 0, len(in.Items))
	cart := make([]models.PaymentItem, 0, len(in.Items))
	for _, line := range in.Items {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(line.ProductID))
		if err != nil {
			return Checkout{}, apperr.BadRequestf("Invalid product id %q", line.ProductID)
		}
		if line.Quantity < 1 {
			return Checkout{}, apperr.BadRequestf("Quantity must be at least 1")
		}
		ids = append(ids, id)
		cart = append(cart, models.PaymentItem{ProductID: id, Quantity: line.Quantity})
	}

	products, err := c.products.FindByIDs(ctx, ids)
	if err != nil {
		return Checkout{}, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lineItems := make([]LineItem, 0, len(cart))
	total := decimal.Zero
	for _, item := range cart {
		product, ok := byID[item.ProductID]
		if !ok {
			log.Println("[PAYMENT] [ERROR] unknown product in cart:", item.ProductID.Hex())
			return Checkout{}, apperr.NotFoundf("Product with id %s not found", item.ProductID.Hex())
		}
		price := decimal.NewFromFloat(product.Price)
		lineItems = append(lineItems, LineItem{
			Name:       product.Name,
			Image:      product.ImageURL,
			UnitAmount: MinorUnits(price),
			Quantity:   int64(item.Quantity),
		})
		total = total.Add(price.Round(2).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	claimed := decimal.NewFromFloat(*in.TotalAmount)
	if claimed.Sub(total).Abs().GreaterThan(totalTolerance) {
		return Checkout{}, apperr.BadRequestf("Total amount does not match cart, expected %s", total.StringFixed(2))
	}

	req := SessionRequest{
		Currency:       c.opts.Currency,
		Items:          lineItems,
		CustomerEmail:  who.Email,
		UserID:         who.ID.Hex(),
		SuccessURL:     c.opts.SuccessURL,
		CancelURL:      c.opts.CancelURL,
		IdempotencyKey: c.newKey(),
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, c.opts.GatewayTimeout)
	session, err := c.gateway.CreateCheckoutSession(gatewayCtx, req)
	cancel()
	if err != nil {
		log.Println("[PAYMENT] [ERROR] checkout session failed for user:", who.ID.Hex(), "err:", err)
		return Checkout{}, apperr.Wrap(apperr.Upstream, "Payment gateway error", err)
	}
	if session.ID == "" {
		return Checkout{}, apperr.New(apperr.Upstream, "Payment gateway returned no session")
	}

	// The session exists at the gateway now, so a client disconnect must not
	// drop the record.
	storeCtx, cancelStore := context.WithTimeout(context.WithoutCancel(ctx), c.opts.StoreTimeout)
	defer cancelStore()

	record := models.Payment{
		UserID:          who.ID,
		Items:           cart,
		ShippingAddress: *in.ShippingAddress,
		TotalAmount:     claimed.Round(2).InexactFloat64(),
		PaymentStatus:   models.PaymentStatusPending,
		StripeSessionID: session.ID,
		CreatedAt:       c.now().UTC(),
	}
	if err := c.store.Insert(storeCtx, &record); err != nil {
		log.Println("[PAYMENT] [ERROR] session", session.ID, "created but record not stored:", err)
		return Checkout{}, fmt.Errorf("store payment for session %s: %w", session.ID, err)
	}

	log.Println("[PAYMENT] [INFO] checkout session created:", session.ID, "user:", who.ID.Hex())
	return Checkout{SessionID: session.ID, URL: session.URL, PaymentID: record.ID}, nil
}

// GatewayKey returns the publishable key clients use to redeem a session.
func (c *Coordinator) GatewayKey() string {
	return c.opts.PublishableKey
}

// MinorUnits converts a major-unit price into the gateway's smallest unit,
// rounding half away from zero.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func addressComplete(a *models.ShippingAddress) bool {
	return a != nil &&
		strings.TrimSpace(a.Address) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.PostalCode) != "" &&
		strings.TrimSpace(a.Country) != ""
}
