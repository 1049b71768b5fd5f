package database

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	emailUniqueIndex   = "email_unique"
	sessionUniqueIndex = "stripeSessionId_unique"
)

// EnsureUserIndexes makes email unique. Register checks for an existing
// email first, but two concurrent sign-ups can both pass that check; the
// index turns the second insert into a duplicate-key Conflict.
func EnsureUserIndexes(db *mongo.Database) error {
	return ensureIndexes(db.Collection(usersCollection), "EnsureUserIndexes", mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName(emailUniqueIndex).SetUnique(true),
	})
}

// EnsureOrderIndexes creates the listing index and the multikey unique index
// that stops one user from holding two orders naming the same item.
func EnsureOrderIndexes(db *mongo.Database) error {
	return ensureIndexes(db.Collection(ordersCollection), "EnsureOrderIndexes",
		mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_createdAt"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "orderItems.name", Value: 1}},
			Options: options.Index().SetName(orderItemUniqueIndex).SetUnique(true),
		},
	)
}

// EnsurePaymentIndexes keeps one payment record per checkout session.
func EnsurePaymentIndexes(db *mongo.Database) error {
	return ensureIndexes(db.Collection(paymentsCollection), "EnsurePaymentIndexes", mongo.IndexModel{
		Keys:    bson.D{{Key: "stripeSessionId", Value: 1}},
		Options: options.Index().SetName(sessionUniqueIndex).SetUnique(true),
	})
}

func ensureIndexes(coll *mongo.Collection, caller string, indexModels ...mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	log.Printf("%s: creating %d index(es) on %s", caller, len(indexModels), coll.Name())
	names, err := coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		log.Printf("%s: index error on %s: %v", caller, coll.Name(), err)
		return err
	}
	log.Printf("%s: indexes ready: %v", caller, names)
	return nil
}
