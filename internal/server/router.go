// Package server assembles the gin engine and its route table.
package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
)

// AccountService registers and logs users in and resolves token subjects.
type AccountService interface {
	handlers.AccountService
	middleware.IdentityResolver
}

type Deps struct {
	Tokens   middleware.TokenVerifier
	Accounts AccountService
	Orders   handlers.OrderService
	Checkout handlers.CheckoutService
	Products handlers.ProductStore
	DB       handlers.Pinger

	// SessionTTL is the max-age of the token cookie set at login. Zero
	// disables the cookie.
	SessionTTL time.Duration
}

// NewRouter mounts every route under /api/v1 except /health.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", handlers.Health(d.DB))

	api := r.Group("/api/v1")
	api.POST("/register", handlers.Register(d.Accounts, d.SessionTTL))
	api.POST("/login", handlers.Login(d.Accounts, d.SessionTTL))
	api.GET("/logout", handlers.Logout())

	user := api.Group("")
	user.Use(middleware.UserAuth(d.Tokens, d.Accounts))
	{
		user.GET("/me", handlers.GetMe())

		user.POST("/orders", handlers.CreateOrder(d.Orders))
		user.GET("/orders/myorders", handlers.GetMyOrders(d.Orders))
		user.GET("/orders/admin/orders", handlers.GetAllOrders(d.Orders))
		user.GET("/orders/:id", handlers.GetOrderByID(d.Orders))
		user.PUT("/orders/:id/pay", handlers.PayOrder(d.Orders))
		user.PUT("/orders/:id/deliver", handlers.DeliverOrder(d.Orders))
		user.GET("/admin/orders", handlers.GetAllOrders(d.Orders))

		user.GET("/products/:id", handlers.GetProduct(d.Products))

		user.POST("/payment/process-payment", handlers.ProcessPayment(d.Checkout))
		user.GET("/payment/get-stripe-key", handlers.GetStripeKey(d.Checkout))
	}

	admin := api.Group("/admin")
	admin.Use(middleware.UserAuth(d.Tokens, d.Accounts), middleware.AdminOnly())
	{
		admin.POST("/products", handlers.CreateProduct(d.Products))
	}

	return r
}
