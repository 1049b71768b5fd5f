package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/orders"
)

type OrderService interface {
	Create(ctx context.Context, who auth.Identity, in orders.CreateInput) (models.Order, error)
	Get(ctx context.Context, who auth.Identity, id string) (models.Order, error)
	MarkPaid(ctx context.Context, who auth.Identity, id string, result models.PaymentResult) (models.Order, error)
	MarkDelivered(ctx context.Context, who auth.Identity, id string) (models.Order, error)
	ListMine(ctx context.Context, who auth.Identity) ([]models.Order, error)
	ListAll(ctx context.Context, who auth.Identity, page models.Page) ([]models.Order, error)
}

/* =========================
   REQUEST DTOs
========================= */

// createOrderItemRequest accepts the product reference as "product" or
// "_id". Name and price are informational; the catalog values are stored.
type createOrderItemRequest struct {
	Product  string  `json:"product" binding:"required_without=ID"`
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price" binding:"gte=0"`
	Quantity int     `json:"quantity" binding:"gte=0"`
}

type createOrderRequest struct {
	OrderItems      []createOrderItemRequest `json:"orderItems" binding:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress   `json:"shippingAddress" binding:"required"`
	PaymentMethod   string                   `json:"paymentMethod" binding:"required"`
	TaxPrice        float64                  `json:"taxPrice" binding:"gte=0"`
	ShippingPrice   float64                  `json:"shippingPrice" binding:"gte=0"`
	TotalPrice      *float64                 `json:"totalPrice" binding:"omitempty,gte=0"`
}

type payOrderRequest struct {
	ID           string `json:"id" binding:"required"`
	Status       string `json:"status" binding:"required"`
	UpdateTime   string `json:"updateTime"`
	EmailAddress string `json:"emailAddress"`
}

/* =========================
   CREATE ORDER
========================= */

func CreateOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		identity, ok := requireIdentity(c, route)
		if !ok {
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		order, err := svc.Create(c.Request.Context(), identity, buildCreateInput(req))
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		respondOK(c, http.StatusCreated, gin.H{"order": order})
	}
}

func buildCreateInput(req createOrderRequest) orders.CreateInput {
	items := make([]orders.ItemInput, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		ref := strings.TrimSpace(item.Product)
		if ref == "" {
			ref = strings.TrimSpace(item.ID)
		}
		items = append(items, orders.ItemInput{ProductID: ref, Quantity: item.Quantity})
	}
	return orders.CreateInput{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		TaxPrice:        req.TaxPrice,
		ShippingPrice:   req.ShippingPrice,
		TotalPrice:      req.TotalPrice,
	}
}

/* =========================
   READ ORDERS
========================= */

func GetOrderByID(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		identity, ok := requireIdentity(c, route)
		if !ok {
			return
		}

		order, err := svc.Get(c.Request.Context(), identity, c.Param("id"))
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		respondOK(c, http.StatusOK, gin.H{"order": order})
	}
}

func GetMyOrders(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/myorders"
		defer handlePanic(c, route)

		identity, ok := requireIdentity(c, route)
		if !ok {
			return
		}

		list, err := svc.ListMine(c.Request.Context(), identity)
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		respondOK(c, http.StatusOK, gin.H{"orders": list})
	}
}

func GetAllOrders(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/orders"
		defer handlePanic(c, route)

		identity, ok := requireIdentity(c, route)
		if !ok {
			return
		}

		page, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		list, err := svc.ListAll(c.Request.Context(), identity, page)
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		payload := gin.H{"orders": list, "count": len(list)}
		if page.Size > 0 {
			payload["page"] = page.Number
			payload["limit"] = page.Size
		}
		respondOK(c, http.StatusOK, payload)
	}
}

/* =========================
   TRANSITIONS
========================= */

func PayOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/pay"
		defer handlePanic(c, route)

		identity, ok := requireIdentity(c, route)
		if !ok {
			return
		}

		var req payOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		order, err := svc.MarkPaid(c.Request.Context(), identity, c.Param("id"), models.PaymentResult{
			ID:           req.ID,
			Status:       req.Status,
			UpdateTime:   req.UpdateTime,
			EmailAddress: req.EmailAddress,
		})
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		respondOK(c, http.StatusOK, gin.H{"order": order})
	}
}

func DeliverOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/deliver"
		defer handlePanic(c, route)

		identity, ok := requireIdentity(c, route)
		if !ok {
			return
		}

		order, err := svc.MarkDelivered(c.Request.Context(), identity, c.Param("id"))
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		respondOK(c, http.StatusOK, gin.H{"order": order})
	}
}
