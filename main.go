package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/server"
	"storefront/internal/users"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource the server opens so deferred cleanup runs on all
// exit paths.
func run() error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg := config.AppEnv
	gin.SetMode(cfg.GinMode)

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpire)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	defer database.Disconnect(client)

	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(db); err != nil {
		log.Printf("[DB] [ERROR] index warning: %v", err)
	}

	userRepo := database.NewUserRepository(db)
	productRepo := database.NewProductRepository(db)

	accounts := users.NewService(userRepo, issuer)
	orderManager := orders.NewManager(
		database.NewOrderRepository(db),
		productRepo,
		userRepo,
		orders.Policy{
			EnforceOwnership:          cfg.Policy.EnforceOwnership,
			RequirePaidBeforeDelivery: cfg.Policy.RequirePaidBeforeDelivery,
		},
	)
	checkout := payments.NewCoordinator(
		payments.GatewayFromKey(cfg.Stripe.SecretKey, cfg.Stripe.Timeout),
		productRepo,
		database.NewPaymentRepository(db),
		payments.Options{
			Currency:       cfg.Stripe.Currency,
			SuccessURL:     cfg.Stripe.SuccessURL,
			CancelURL:      cfg.Stripe.CancelURL,
			PublishableKey: cfg.Stripe.PublishableKey,
			GatewayTimeout: cfg.Stripe.Timeout,
		},
	)

	r := server.NewRouter(server.Deps{
		Tokens:   issuer,
		Accounts: accounts,
		Orders:   orderManager,
		Checkout: checkout,
		Products: productRepo,
		DB: handlers.PingFunc(func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}),
		SessionTTL: issuer.TTL(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, srv, shutdownTimeout)
}

// serve runs srv until ctx is cancelled or the listener fails, then shuts it
// down gracefully.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Println("server listening on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
