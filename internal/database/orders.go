package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

type OrderRepository struct {
	coll *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(ordersCollection)}
}

// Insert stores a new order. The unique (user, item name) index turns a
// racing duplicate submission into a Conflict.
func (r *OrderRepository) Insert(ctx context.Context, order *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		log.Println("[ORDER] [ERROR] duplicate item rejected by index for user:", order.UserID.Hex())
		return apperr.Conflictf("You have already ordered this item")
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var order models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return models.Order{}, notFoundOr(err, "Order not found")
	}
	return order, nil
}

func (r *OrderRepository) HasOrderedAny(ctx context.Context, userID primitive.ObjectID, names []string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.coll.FindOne(ctx, orderedAnyFilter(userID, names),
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ordered items: %w", err)
	}
	return true, nil
}

func (r *OrderRepository) MarkPaid(ctx context.Context, id primitive.ObjectID, result models.PaymentResult, at time.Time) (models.Order, error) {
	filter, update := payTransition(id, result, at)
	return r.transition(ctx, id, filter, update, models.Order.PayRejection)
}

func (r *OrderRepository) MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time, requirePaid bool) (models.Order, error) {
	filter, update := deliverTransition(id, at, requirePaid)
	return r.transition(ctx, id, filter, update, func(o models.Order) error {
		return o.DeliverRejection(requirePaid)
	})
}

// transition applies a conditional update. When the guard does not match it
// reloads the order to tell a missing order from one in the wrong state.
func (r *OrderRepository) transition(ctx context.Context, id primitive.ObjectID, filter, update bson.M, rejection func(models.Order) error) (models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var updated models.Order
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, fmt.Errorf("update order: %w", err)
	}

	var current models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&current); err != nil {
		return models.Order{}, notFoundOr(err, "Order not found")
	}
	if err := rejection(current); err != nil {
		return models.Order{}, err
	}
	return models.Order{}, apperr.Conflictf("Order state changed, please retry")
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return r.list(ctx, byUserFilter(userID), models.Page{})
}

func (r *OrderRepository) ListAll(ctx context.Context, page models.Page) ([]models.Order, error) {
	return r.list(ctx, bson.M{}, page)
}

func (r *OrderRepository) list(ctx context.Context, filter bson.M, page models.Page) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, newestFirst(page))
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}
