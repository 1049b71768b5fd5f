// Package orders owns the order state machine (created, paid, delivered) and
// the guard that stops a user from ordering the same item twice.
package orders

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
)

// Store persists orders. MarkPaid and MarkDelivered must apply their change
// only when the order is still in the expected state and return the
// rejection from models.Order otherwise.
type Store interface {
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	HasOrderedAny(ctx context.Context, userID primitive.ObjectID, names []string) (bool, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, result models.PaymentResult, at time.Time) (models.Order, error)
	MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time, requirePaid bool) (models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	ListAll(ctx context.Context, page models.Page) ([]models.Order, error)
}

type ProductLookup interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
}

type OwnerDirectory interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

// Policy toggles the access and ordering rules that callers may relax.
type Policy struct {
	// EnforceOwnership restricts reads and payment to the owner or an admin,
	// and delivery and the global listing to admins.
	EnforceOwnership bool
	// RequirePaidBeforeDelivery rejects delivery of unpaid orders.
	RequirePaidBeforeDelivery bool
}

func DefaultPolicy() Policy {
	return Policy{EnforceOwnership: true, RequirePaidBeforeDelivery: true}
}

type Manager struct {
	store    Store
	products ProductLookup
	owners   OwnerDirectory
	policy   Policy
	now      func() time.Time
}

func NewManager(store Store, products ProductLookup, owners OwnerDirectory, policy Policy) *Manager {
	return &Manager{
		store:    store,
		products: products,
		owners:   owners,
		policy:   policy,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for creation and transition
// timestamps.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	Items           []ItemInput
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	TaxPrice        float64
	ShippingPrice   float64
	// TotalPrice, when set, must equal items + tax + shipping.
	TotalPrice *float64
}

var priceTolerance = decimal.RequireFromString("0.01")

// Create prices the submitted items from the catalog and stores a new unpaid
// order for the identity.
func (m *Manager) Create(ctx context.Context, who auth.Identity, in CreateInput) (models.Order, error) {
	if who.ID.IsZero() {
		return models.Order{}, apperr.New(apperr.Unauthorized, "Authorization token missing")
	}
	ids, quantities, err := validateCreate(in)
	if err != nil {
		return models.Order{}, err
	}

	products, err := m.products.FindByIDs(ctx, ids)
	if err != nil {
		return models.Order{}, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(ids))
	itemsPrice := decimal.Zero
	for i, id := range ids {
		product, ok := byID[id]
		if !ok {
			return models.Order{}, apperr.NotFoundf("Product with id %s not found", id.Hex())
		}
		price := decimal.NewFromFloat(product.Price).Round(2)
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     price.InexactFloat64(),
			Quantity:  quantities[i],
			Image:     product.ImageURL,
		})
		itemsPrice = itemsPrice.Add(price.Mul(decimal.NewFromInt(int64(quantities[i]))))
	}

	tax := decimal.NewFromFloat(in.TaxPrice).Round(2)
	shipping := decimal.NewFromFloat(in.ShippingPrice).Round(2)
	total := itemsPrice.Add(tax).Add(shipping)
	if in.TotalPrice != nil {
		claimed := decimal.NewFromFloat(*in.TotalPrice)
		if claimed.Sub(total).Abs().GreaterThan(priceTolerance) {
			return models.Order{}, apperr.BadRequestf("Total price does not match order items, expected %s", total.StringFixed(2))
		}
	}

	order := models.Order{
		UserID:          who.ID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		ItemsPrice:      itemsPrice.InexactFloat64(),
		TaxPrice:        tax.InexactFloat64(),
		ShippingPrice:   shipping.InexactFloat64(),
		TotalPrice:      total.InexactFloat64(),
	}

	already, err := m.store.HasOrderedAny(ctx, who.ID, order.ItemNames())
	if err != nil {
		return models.Order{}, err
	}
	if already {
		log.Println("[ORDER] [ERROR] duplicate item submitted by user:", who.ID.Hex())
		return models.Order{}, apperr.Conflictf("You have already ordered this item")
	}

	now := m.now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	if err := m.store.Insert(ctx, &order); err != nil {
		return models.Order{}, err
	}

	log.Println("[ORDER] [INFO] order created:", order.ID.Hex(), "user:", who.ID.Hex())
	order.Owner = ownerOf(who)
	return order, nil
}

// Get returns the order with its owner's public fields resolved.
func (m *Manager) Get(ctx context.Context, who auth.Identity, rawID string) (models.Order, error) {
	order, err := m.load(ctx, rawID)
	if err != nil {
		return models.Order{}, err
	}
	if err := m.authorizeOwnerOrAdmin(who, order); err != nil {
		return models.Order{}, err
	}

	resolved, err := m.resolveOwners(ctx, []models.Order{order})
	if err != nil {
		return models.Order{}, err
	}
	return resolved[0], nil
}

// MarkPaid records the caller-supplied payment result. The result is not
// verified against the gateway.
func (m *Manager) MarkPaid(ctx context.Context, who auth.Identity, rawID string, result models.PaymentResult) (models.Order, error) {
	result.ID = strings.TrimSpace(result.ID)
	result.Status = strings.TrimSpace(result.Status)
	if result.ID == "" || result.Status == "" {
		return models.Order{}, apperr.BadRequestf("Payment result id and status are required")
	}

	order, err := m.load(ctx, rawID)
	if err != nil {
		return models.Order{}, err
	}
	if err := m.authorizeOwnerOrAdmin(who, order); err != nil {
		return models.Order{}, err
	}
	if err := order.PayRejection(); err != nil {
		return models.Order{}, err
	}

	updated, err := m.store.MarkPaid(ctx, order.ID, result, m.now().UTC())
	if err != nil {
		return models.Order{}, err
	}

	log.Println("[ORDER] [INFO] order paid:", updated.ID.Hex())
	return m.single(ctx, updated)
}

func (m *Manager) MarkDelivered(ctx context.Context, who auth.Identity, rawID string) (models.Order, error) {
	if err := m.authorizeAdmin(who); err != nil {
		return models.Order{}, err
	}

	order, err := m.load(ctx, rawID)
	if err != nil {
		return models.Order{}, err
	}
	if err := order.DeliverRejection(m.policy.RequirePaidBeforeDelivery); err != nil {
		return models.Order{}, err
	}

	updated, err := m.store.MarkDelivered(ctx, order.ID, m.now().UTC(), m.policy.RequirePaidBeforeDelivery)
	if err != nil {
		return models.Order{}, err
	}

	log.Println("[ORDER] [INFO] order delivered:", updated.ID.Hex())
	return m.single(ctx, updated)
}

// ListMine returns the identity's orders, newest first.
func (m *Manager) ListMine(ctx context.Context, who auth.Identity) ([]models.Order, error) {
	if who.ID.IsZero() {
		return nil, apperr.New(apperr.Unauthorized, "Authorization token missing")
	}
	orders, err := m.store.ListByUser(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	owner := ownerOf(who)
	for i := range orders {
		orders[i].Owner = owner
	}
	return orders, nil
}

// ListAll returns every order, newest first, with owners resolved. A zero
// page returns the whole collection.
func (m *Manager) ListAll(ctx context.Context, who auth.Identity, page models.Page) ([]models.Order, error) {
	if err := m.authorizeAdmin(who); err != nil {
		return nil, err
	}
	orders, err := m.store.ListAll(ctx, page)
	if err != nil {
		return nil, err
	}
	return m.resolveOwners(ctx, orders)
}

func (m *Manager) load(ctx context.Context, rawID string) (models.Order, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(rawID))
	if err != nil {
		return models.Order{}, apperr.NotFoundf("Order not found")
	}
	return m.store.FindByID(ctx, id)
}

func (m *Manager) single(ctx context.Context, order models.Order) (models.Order, error) {
	resolved, err := m.resolveOwners(ctx, []models.Order{order})
	if err != nil {
		return models.Order{}, err
	}
	return resolved[0], nil
}

func (m *Manager) authorizeOwnerOrAdmin(who auth.Identity, order models.Order) error {
	if !m.policy.EnforceOwnership || who.IsAdmin() || who.Owns(order.UserID) {
		return nil
	}
	log.Println("[ORDER] [ERROR] access denied to order:", order.ID.Hex(), "user:", who.ID.Hex())
	return apperr.Forbiddenf("Not authorized to access this order")
}

func (m *Manager) authorizeAdmin(who auth.Identity) error {
	if !m.policy.EnforceOwnership || who.IsAdmin() {
		return nil
	}
	return apperr.Forbiddenf("Admin access required")
}

// resolveOwners fills Owner from the identity store. Orders whose owner no
// longer exists keep only the owner id.
func (m *Manager) resolveOwners(ctx context.Context, orders []models.Order) ([]models.Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}

	seen := make(map[primitive.ObjectID]struct{}, len(orders))
	ids := make([]primitive.ObjectID, 0, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.UserID]; ok {
			continue
		}
		seen[o.UserID] = struct{}{}
		ids = append(ids, o.UserID)
	}

	users, err := m.owners.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve order owners: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for i := range orders {
		owner := &models.OrderOwner{ID: orders[i].UserID}
		if u, ok := byID[orders[i].UserID]; ok {
			owner.Name = u.Name
			owner.Email = u.Email
		}
		orders[i].Owner = owner
	}
	return orders, nil
}

func ownerOf(who auth.Identity) *models.OrderOwner {
	return &models.OrderOwner{ID: who.ID, Name: who.Name, Email: who.Email}
}
