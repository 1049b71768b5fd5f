package database

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"storefront/internal/apperr"
)

const (
	connectTimeout = 10 * time.Second
	queryTimeout   = 5 * time.Second
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
	paymentsCollection = "payments"
)

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Ping reports whether the database answers within two seconds.
func Ping(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func Disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		log.Println("[DB] [ERROR] disconnect failed:", err)
	}
}

// EnsureIndexes creates every index the repositories rely on. A failure is
// returned because the unique indexes close races the services cannot.
func EnsureIndexes(db *mongo.Database) error {
	return errors.Join(
		EnsureUserIndexes(db),
		EnsureOrderIndexes(db),
		EnsurePaymentIndexes(db),
	)
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFoundf("%s", message)
	}
	return err
}
