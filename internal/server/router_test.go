package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/auth"
	"storefront/internal/handlers"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/server"
	"storefront/internal/testutil"
	"storefront/internal/users"
)

const secret = "router-test-secret"

type app struct {
	t        *testing.T
	router   *gin.Engine
	issuer   *auth.Issuer
	users    *testutil.Users
	products *testutil.Products
	orders   *testutil.Orders
	payments *testutil.Payments
	gateway  *testutil.Gateway
	dbErr    error
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := auth.NewIssuer(secret, time.Hour)
	require.NoError(t, err)

	a := &app{
		t:        t,
		issuer:   issuer,
		users:    testutil.NewUsers(),
		products: testutil.NewProducts(),
		orders:   testutil.NewOrders(),
		payments: testutil.NewPayments(),
		gateway:  &testutil.Gateway{},
	}

	var tick int64
	manager := orders.NewManager(a.orders, a.products, a.users, orders.DefaultPolicy()).WithClock(func() time.Time {
		tick++
		return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	})
	checkout := payments.NewCoordinator(a.gateway, a.products, a.payments, payments.Options{
		PublishableKey: "pk_test_abc",
		SuccessURL:     "http://localhost:8000/orders/success",
		CancelURL:      "http://localhost:8000/orders/failed",
	})

	a.router = server.NewRouter(server.Deps{
		Tokens:   issuer,
		Accounts: users.NewService(a.users, issuer),
		Orders:   manager,
		Checkout: checkout,
		Products: a.products,
		DB: handlers.PingFunc(func(context.Context) error {
			return a.dbErr
		}),
		SessionTTL: issuer.TTL(),
	})
	return a
}

type response struct {
	Code int
	Body map[string]any
}

func (a *app) do(method, path, token string, body any) response {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)

	out := response{Code: rr.Code}
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &out.Body); err != nil {
			a.t.Fatalf("response is not JSON (%d): %s", rr.Code, rr.Body.String())
		}
	}
	return out
}

func (a *app) tokenFor(u models.User) string {
	a.t.Helper()
	token, err := a.issuer.Issue(u)
	require.NoError(a.t, err)
	return token
}

func (a *app) user(name string) (models.User, string) {
	u := a.users.Put(models.User{Name: name, Email: name + "@example.com"})
	return u, a.tokenFor(u)
}

func (a *app) admin() string {
	u := a.users.Put(models.User{Name: "admin", Email: "admin@example.com", Role: models.RoleAdmin})
	return a.tokenFor(u)
}

func shipping() map[string]any {
	return map[string]any{"address": "1 Main St", "city": "Pune", "postalCode": "411001", "country": "IN"}
}

func orderBody(product models.Product) map[string]any {
	return map[string]any{
		"orderItems":      []map[string]any{{"product": product.ID.Hex(), "name": product.Name, "price": product.Price}},
		"shippingAddress": shipping(),
		"paymentMethod":   "Stripe",
		"taxPrice":        1,
		"shippingPrice":   2,
		"totalPrice":      product.Price + 3,
	}
}

func field(body map[string]any, path ...string) any {
	var cur any = body
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func TestRegisterLoginAndMe(t *testing.T) {
	a := newApp(t)

	res := a.do(http.MethodPost, "/api/v1/register", "", map[string]any{
		"name": "Asha", "email": "asha@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, true, res.Body["success"])
	assert.NotEmpty(t, res.Body["token"])
	assert.Nil(t, field(res.Body, "user", "passwordHash"))

	res = a.do(http.MethodPost, "/api/v1/register", "", map[string]any{
		"name": "Asha", "email": "asha@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "User with this email already exists", res.Body["message"])

	res = a.do(http.MethodPost, "/api/v1/login", "", map[string]any{"email": "asha@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = a.do(http.MethodPost, "/api/v1/login", "", map[string]any{"email": "asha@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, res.Code)
	token := res.Body["token"].(string)
	userID := field(res.Body, "user", "id")

	me := a.do(http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, userID, field(me.Body, "user", "id"))
	assert.Equal(t, "user", field(me.Body, "user", "role"))

	out := a.do(http.MethodGet, "/api/v1/logout", "", nil)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestSessionCookieFollowsTokenLifetime(t *testing.T) {
	a := newApp(t)

	post := func(path string, body map[string]any) *http.Response {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		a.router.ServeHTTP(rr, req)
		return rr.Result()
	}
	sessionCookie := func(res *http.Response) *http.Cookie {
		for _, c := range res.Cookies() {
			if c.Name == "token" {
				return c
			}
		}
		t.Fatalf("response %d set no token cookie", res.StatusCode)
		return nil
	}

	res := post("/api/v1/register", map[string]any{"name": "Ravi", "email": "ravi@example.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	cookie := sessionCookie(res)
	assert.Equal(t, int(time.Hour/time.Second), cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)

	res = post("/api/v1/login", map[string]any{"email": "ravi@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	cookie = sessionCookie(res)
	assert.Equal(t, int(a.issuer.TTL()/time.Second), cookie.MaxAge)
	_, err := a.issuer.Verify(cookie.Value)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/logout", nil))
	cleared := sessionCookie(rr.Result())
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestGateRejectsMissingAndExpiredTokens(t *testing.T) {
	a := newApp(t)
	u, _ := a.user("late")

	res := a.do(http.MethodGet, "/api/v1/orders/myorders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Authorization token missing", res.Body["message"])
	assert.Equal(t, false, res.Body["success"])

	past := time.Now().Add(-2 * time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		ID: u.ID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	res = a.do(http.MethodGet, "/api/v1/orders/myorders", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Invalid token", res.Body["message"])
}

func TestOrderLifecycleEndToEnd(t *testing.T) {
	a := newApp(t)
	_, token := a.user("buyer")
	adminToken := a.admin()

	created := a.do(http.MethodPost, "/api/v1/admin/products", adminToken, map[string]any{"name": "Widget", "price": 10, "stock": 5})
	require.Equal(t, http.StatusCreated, created.Code, created.Body)
	widgetID := field(created.Body, "product", "id").(string)
	widget, err := a.products.FindByID(context.Background(), mustID(t, widgetID))
	require.NoError(t, err)

	res := a.do(http.MethodPost, "/api/v1/orders", token, orderBody(widget))
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, false, field(res.Body, "order", "isPaid"))
	assert.Equal(t, 13.0, field(res.Body, "order", "totalPrice"))
	orderID := field(res.Body, "order", "id").(string)

	res = a.do(http.MethodPost, "/api/v1/orders", token, orderBody(widget))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "You have already ordered this item", res.Body["message"])
	assert.Equal(t, 1, a.orders.Count())

	res = a.do(http.MethodPut, "/api/v1/orders/"+orderID+"/deliver", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Order has not been paid", res.Body["message"])

	res = a.do(http.MethodPut, "/api/v1/orders/"+orderID+"/pay", token, map[string]any{"id": "ch_1", "status": "succeeded"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, true, field(res.Body, "order", "isPaid"))
	assert.Equal(t, "ch_1", field(res.Body, "order", "paymentResult", "id"))
	assert.NotNil(t, field(res.Body, "order", "paidAt"))

	res = a.do(http.MethodPut, "/api/v1/orders/"+orderID+"/pay", token, map[string]any{"id": "ch_2", "status": "succeeded"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Order is already paid", res.Body["message"])

	res = a.do(http.MethodPut, "/api/v1/orders/"+orderID+"/deliver", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = a.do(http.MethodPut, "/api/v1/orders/"+orderID+"/deliver", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, field(res.Body, "order", "isDelivered"))

	res = a.do(http.MethodGet, "/api/v1/orders/"+orderID, token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "buyer", field(res.Body, "order", "user", "name"))
	assert.Equal(t, "buyer@example.com", field(res.Body, "order", "user", "email"))
}

func TestOrderAccessRules(t *testing.T) {
	a := newApp(t)
	_, owner := a.user("owner")
	_, stranger := a.user("stranger")
	lamp := a.products.Put(models.Product{Name: "Lamp", Price: 20})

	res := a.do(http.MethodPost, "/api/v1/orders", owner, orderBody(lamp))
	require.Equal(t, http.StatusCreated, res.Code)
	orderID := field(res.Body, "order", "id").(string)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/v1/orders/"+orderID, stranger, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, "/api/v1/orders/"+orderID+"/pay", stranger,
		map[string]any{"id": "x", "status": "y"}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/v1/orders/0123456789abcdef01234567", owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/v1/orders/garbage", owner, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/v1/admin/orders", owner, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/v1/admin/products", owner,
		map[string]any{"name": "X", "price": 1}).Code)
}

func TestCreateOrderValidation(t *testing.T) {
	a := newApp(t)
	_, token := a.user("buyer")
	lamp := a.products.Put(models.Product{Name: "Lamp", Price: 20})

	body := orderBody(lamp)
	body["orderItems"] = []map[string]any{}
	res := a.do(http.MethodPost, "/api/v1/orders", token, body)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	body = orderBody(lamp)
	delete(body, "shippingAddress")
	res = a.do(http.MethodPost, "/api/v1/orders", token, body)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "validation failed", res.Body["message"])

	ghost := testutil.NewProducts().Put(models.Product{Name: "Ghost", Price: 1})
	res = a.do(http.MethodPost, "/api/v1/orders", token, orderBody(ghost))
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, 0, a.orders.Count())
}

func TestListingsNewestFirst(t *testing.T) {
	a := newApp(t)
	_, token := a.user("buyer")
	_, other := a.user("other")
	adminToken := a.admin()

	var ids []string
	for _, name := range []string{"A", "B", "C"} {
		p := a.products.Put(models.Product{Name: name, Price: 1})
		res := a.do(http.MethodPost, "/api/v1/orders", token, orderBody(p))
		require.Equal(t, http.StatusCreated, res.Code)
		ids = append(ids, field(res.Body, "order", "id").(string))
	}
	p := a.products.Put(models.Product{Name: "D", Price: 1})
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/orders", other, orderBody(p)).Code)

	res := a.do(http.MethodGet, "/api/v1/orders/myorders", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	list := res.Body["orders"].([]any)
	require.Len(t, list, 3)
	var prev time.Time
	for i, raw := range list {
		o := raw.(map[string]any)
		assert.Equal(t, ids[len(ids)-1-i], o["id"])
		created, err := time.Parse(time.RFC3339, o["createdAt"].(string))
		require.NoError(t, err)
		if i > 0 {
			assert.True(t, created.Before(prev))
		}
		prev = created
	}

	res = a.do(http.MethodGet, "/api/v1/admin/orders", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["orders"], 4)
	assert.Equal(t, "other", field(res.Body["orders"].([]any)[0].(map[string]any), "user", "name"))

	res = a.do(http.MethodGet, "/api/v1/orders/admin/orders?page=2&limit=3", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["orders"], 1)
	assert.Equal(t, 2.0, res.Body["page"])

	res = a.do(http.MethodGet, "/api/v1/admin/orders?limit=0", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestProcessPayment(t *testing.T) {
	a := newApp(t)
	_, token := a.user("buyer")
	lamp := a.products.Put(models.Product{Name: "Lamp", Price: 20, ImageURL: "https://cdn.example.com/lamp.png"})

	body := map[string]any{
		"items":           []map[string]any{{"productId": lamp.ID.Hex(), "quantity": 2}},
		"shippingAddress": shipping(),
		"totalAmount":     40,
	}
	res := a.do(http.MethodPost, "/api/v1/payment/process-payment", token, body)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	records := a.payments.All()
	require.Len(t, records, 1)
	assert.Equal(t, records[0].StripeSessionID, res.Body["sessionId"])
	assert.Equal(t, models.PaymentStatusPending, records[0].PaymentStatus)

	ghost := testutil.NewProducts().Put(models.Product{Name: "Ghost", Price: 1})
	res = a.do(http.MethodPost, "/api/v1/payment/process-payment", token, map[string]any{
		"items":           []map[string]any{{"productId": ghost.ID.Hex(), "quantity": 1}},
		"shippingAddress": shipping(),
		"totalAmount":     1,
	})
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Product with id "+ghost.ID.Hex()+" not found", res.Body["message"])
	assert.Len(t, a.payments.All(), 1)

	res = a.do(http.MethodPost, "/api/v1/payment/process-payment", token, map[string]any{"items": body["items"]})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Missing required fields", res.Body["message"])

	a.gateway.Err = errors.New("stripe down")
	res = a.do(http.MethodPost, "/api/v1/payment/process-payment", token, body)
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Len(t, a.payments.All(), 1)

	res = a.do(http.MethodGet, "/api/v1/payment/get-stripe-key", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "pk_test_abc", res.Body["stripeApiKey"])
	assert.Equal(t, "pk_test_abc", res.Body["apiKey"])
}

func TestProductLookup(t *testing.T) {
	a := newApp(t)
	_, token := a.user("buyer")
	lamp := a.products.Put(models.Product{Name: "Lamp", Price: 20})

	res := a.do(http.MethodGet, "/api/v1/products/"+lamp.ID.Hex(), token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Lamp", field(res.Body, "product", "name"))

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/v1/products/nope", token, nil).Code)
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil).Code)

	a.dbErr = errors.New("no primary")
	assert.Equal(t, http.StatusServiceUnavailable, a.do(http.MethodGet, "/health", "", nil).Code)
}

func mustID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}
