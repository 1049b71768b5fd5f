package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

type ProductStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	Create(ctx context.Context, product *models.Product) error
}

type createProductRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	Price       float64             `json:"price" binding:"gt=0"`
	ImageURL    string              `json:"imageUrl" binding:"omitempty,url"`
	Category    models.CategoryList `json:"category"`
	Stock       int                 `json:"stock" binding:"gte=0"`
}

func GetProduct(products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, route, apperr.NotFoundf("Product not found"))
			return
		}

		product, err := products.FindByID(c.Request.Context(), id)
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		respondOK(c, http.StatusOK, gin.H{"product": product})
	}
}

func CreateProduct(products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/products"
		defer handlePanic(c, route)

		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		product := models.Product{
			Name:        strings.TrimSpace(req.Name),
			Description: strings.TrimSpace(req.Description),
			Price:       req.Price,
			ImageURL:    strings.TrimSpace(req.ImageURL),
			Category:    req.Category,
			Stock:       req.Stock,
			CreatedAt:   time.Now().UTC(),
		}
		if err := products.Create(c.Request.Context(), &product); err != nil {
			respondWithError(c, route, err)
			return
		}

		log.Println("[PRODUCT] [INFO] product created:", product.ID.Hex())
		respondOK(c, http.StatusCreated, gin.H{"product": product})
	}
}
