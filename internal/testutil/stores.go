// Package testutil provides in-memory stand-ins for the Mongo repositories
// and the checkout gateway. They reproduce the constraints the real stores
// enforce (unique email, unique user/item-name pair, conditional state
// transitions) so service and handler tests exercise the same failure paths.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

type Users struct {
	mu    sync.Mutex
	byID  map[primitive.ObjectID]models.User
	Calls int
}

func NewUsers() *Users {
	return &Users{byID: map[primitive.ObjectID]models.User{}}
}

func (s *Users) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.Email == user.Email {
			return apperr.Conflictf("User with this email already exists")
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.byID[user.ID] = *user
	return nil
}

// Put stores a user as-is, replacing any previous entry with the same id.
func (s *Users) Put(user models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	s.byID[user.ID] = user
	return user
}

func (s *Users) Delete(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func (s *Users) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	user, ok := s.byID[id]
	if !ok {
		return models.User{}, apperr.NotFoundf("User not found")
	}
	return user, nil
}

func (s *Users) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.byID[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, apperr.NotFoundf("User not found")
}

type Products struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Product
}

func NewProducts() *Products {
	return &Products{byID: map[primitive.ObjectID]models.Product{}}
}

func (s *Products) Put(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.byID[p.ID] = p
	return p
}

func (s *Products) Create(_ context.Context, p *models.Product) error {
	*p = s.Put(*p)
	return nil
}

func (s *Products) FindByID(_ context.Context, id primitive.ObjectID) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return models.Product{}, apperr.NotFoundf("Product not found")
	}
	return p, nil
}

func (s *Products) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type Orders struct {
	mu     sync.Mutex
	orders []models.Order
	// SkipDuplicateCheck makes HasOrderedAny always answer false, simulating
	// a concurrent submission that slipped past the read-then-write check.
	SkipDuplicateCheck bool
}

func NewOrders() *Orders {
	return &Orders{}
}

func (s *Orders) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Orders) Insert(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Mirrors the unique multikey index on (user, orderItems.name).
	for _, existing := range s.orders {
		if existing.UserID != order.UserID {
			continue
		}
		if sharesItemName(existing, order.ItemNames()) {
			return apperr.Conflictf("You have already ordered this item")
		}
	}

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.orders = append(s.orders, cloneOrder(*order))
	return nil
}

func (s *Orders) FindByID(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Order{}, apperr.NotFoundf("Order not found")
	}
	return cloneOrder(s.orders[i]), nil
}

func (s *Orders) HasOrderedAny(_ context.Context, userID primitive.ObjectID, names []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SkipDuplicateCheck {
		return false, nil
	}
	for _, existing := range s.orders {
		if existing.UserID == userID && sharesItemName(existing, names) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Orders) MarkPaid(_ context.Context, id primitive.ObjectID, result models.PaymentResult, at time.Time) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Order{}, apperr.NotFoundf("Order not found")
	}
	if err := s.orders[i].PayRejection(); err != nil {
		return models.Order{}, err
	}
	paidAt := at
	s.orders[i].IsPaid = true
	s.orders[i].PaidAt = &paidAt
	s.orders[i].PaymentResult = &result
	s.orders[i].UpdatedAt = at
	return cloneOrder(s.orders[i]), nil
}

func (s *Orders) MarkDelivered(_ context.Context, id primitive.ObjectID, at time.Time, requirePaid bool) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Order{}, apperr.NotFoundf("Order not found")
	}
	if err := s.orders[i].DeliverRejection(requirePaid); err != nil {
		return models.Order{}, err
	}
	deliveredAt := at
	s.orders[i].IsDelivered = true
	s.orders[i].DeliveredAt = &deliveredAt
	s.orders[i].UpdatedAt = at
	return cloneOrder(s.orders[i]), nil
}

func (s *Orders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Orders) ListAll(_ context.Context, page models.Page) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sortNewestFirst(out)
	if page.Size < 1 {
		return out, nil
	}
	skip := page.Skip()
	if skip >= int64(len(out)) {
		return []models.Order{}, nil
	}
	end := skip + page.Size
	if end > int64(len(out)) {
		end = int64(len(out))
	}
	return out[skip:end], nil
}

func (s *Orders) indexOf(id primitive.ObjectID) int {
	for i, o := range s.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

type Payments struct {
	mu        sync.Mutex
	records   []models.Payment
	InsertErr error
}

func NewPayments() *Payments {
	return &Payments{}
}

func (s *Payments) Insert(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	for _, existing := range s.records {
		if existing.StripeSessionID == p.StripeSessionID {
			return apperr.Conflictf("Checkout session already recorded")
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.records = append(s.records, *p)
	return nil
}

func (s *Payments) All() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Payment(nil), s.records...)
}

func sharesItemName(o models.Order, names []string) bool {
	for _, item := range o.Items {
		for _, name := range names {
			if item.Name == name {
				return true
			}
		}
	}
	return false
}

func sortNewestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID.Hex() > orders[j].ID.Hex()
	})
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		r := *o.PaymentResult
		o.PaymentResult = &r
	}
	o.Owner = nil
	return o
}
