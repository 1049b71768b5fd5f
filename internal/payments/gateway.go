package payments

import "context"

//go:generate mockgen -source=gateway.go -destination=gateway_mock_test.go -package=payments

// LineItem is one priced line of a hosted checkout session. UnitAmount is in
// the smallest currency unit.
type LineItem struct {
	Name       string
	Image      string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	Currency       string
	Items          []LineItem
	CustomerEmail  string
	UserID         string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type Session struct {
	ID  string
	URL string
}

// Gateway creates hosted checkout sessions with the external payment
// provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
}
