package database

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

const orderItemUniqueIndex = "user_orderItemName_unique"

// orderedAnyFilter matches orders of userID that contain an item with any of
// the given names.
func orderedAnyFilter(userID primitive.ObjectID, names []string) bson.M {
	return bson.M{
		"user":            userID,
		"orderItems.name": bson.M{"$in": names},
	}
}

// payTransition only matches unpaid orders so two concurrent payments cannot
// both succeed.
func payTransition(id primitive.ObjectID, result models.PaymentResult, at time.Time) (bson.M, bson.M) {
	filter := bson.M{"_id": id, "isPaid": false}
	update := bson.M{"$set": bson.M{
		"isPaid":        true,
		"paidAt":        at,
		"paymentResult": result,
		"updatedAt":     at,
	}}
	return filter, update
}

func deliverTransition(id primitive.ObjectID, at time.Time, requirePaid bool) (bson.M, bson.M) {
	filter := bson.M{"_id": id, "isDelivered": false}
	if requirePaid {
		filter["isPaid"] = true
	}
	update := bson.M{"$set": bson.M{
		"isDelivered": true,
		"deliveredAt": at,
		"updatedAt":   at,
	}}
	return filter, update
}

func byUserFilter(userID primitive.ObjectID) bson.M {
	return bson.M{"user": userID}
}

func byIDsFilter(ids []primitive.ObjectID) bson.M {
	return bson.M{"_id": bson.M{"$in": ids}}
}

// newestFirst orders by creation time with the id as tiebreaker so listings
// are strictly descending.
func newestFirst(page models.Page) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	})
	if page.Size > 0 {
		opts.SetSkip(page.Skip()).SetLimit(page.Size)
	}
	return opts
}
