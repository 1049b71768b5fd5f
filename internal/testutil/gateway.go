package testutil

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/payments"
)

// Gateway records every checkout request and answers with sequential session
// ids, or with Err when set.
type Gateway struct {
	mu       sync.Mutex
	Requests []payments.SessionRequest
	Err      error
	// Block, when non-nil, holds each call until the channel is closed or the
	// request context ends.
	Block chan struct{}
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req payments.SessionRequest) (payments.Session, error) {
	if g.Block != nil {
		select {
		case <-g.Block:
		case <-ctx.Done():
			return payments.Session{}, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return payments.Session{}, g.Err
	}
	n := len(g.Requests)
	return payments.Session{
		ID:  fmt.Sprintf("cs_test_%d", n),
		URL: fmt.Sprintf("https://checkout.example.test/pay/cs_test_%d", n),
	}, nil
}

func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}
