package orders

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
)

// validateCreate checks the submission shape and returns the product ids and
// quantities in submission order. A zero quantity means one.
func validateCreate(in CreateInput) ([]primitive.ObjectID, []int, error) {
	if len(in.Items) == 0 {
		return nil, nil, apperr.BadRequestf("No order items")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return nil, nil, apperr.BadRequestf("Payment method is required")
	}
	addr := in.ShippingAddress
	if strings.TrimSpace(addr.Address) == "" || strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.PostalCode) == "" || strings.TrimSpace(addr.Country) == "" {
		return nil, nil, apperr.BadRequestf("Shipping address is incomplete")
	}
	if in.TaxPrice < 0 || in.ShippingPrice < 0 || (in.TotalPrice != nil && *in.TotalPrice < 0) {
		return nil, nil, apperr.BadRequestf("Prices must not be negative")
	}

	ids := make([]primitive.ObjectID, 0, len(in.Items))
	quantities := make([]int, 0, len(in.Items))
	seen := make(map[primitive.ObjectID]struct{}, len(in.Items))
	for _, item := range in.Items {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, nil, apperr.BadRequestf("Invalid product id %q", item.ProductID)
		}
		if _, dup := seen[id]; dup {
			return nil, nil, apperr.BadRequestf("Product %s appears more than once", id.Hex())
		}
		seen[id] = struct{}{}

		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return nil, nil, apperr.BadRequestf("Quantity must be at least 1")
		}
		ids = append(ids, id)
		quantities = append(quantities, qty)
	}
	return ids, quantities, nil
}
