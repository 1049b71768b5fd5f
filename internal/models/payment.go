package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const PaymentStatusPending = "pending"

// PaymentItem is a cart line as submitted at checkout.
type PaymentItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Payment links a gateway checkout session to the user that requested it.
type Payment struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user" json:"user"`
	Items           []PaymentItem      `bson:"items" json:"items"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	TotalAmount     float64            `bson:"totalAmount" json:"totalAmount"`
	PaymentStatus   string             `bson:"paymentStatus" json:"paymentStatus"`
	StripeSessionID string             `bson:"stripeSessionId" json:"stripeSessionId"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
