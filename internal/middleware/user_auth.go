package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
)

type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

// UserAuth verifies the bearer token, loads the user it names and attaches
// the identity to the request context.
func UserAuth(verifier TokenVerifier, users IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := auth.BearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			log.Println("[AUTH] [ERROR] missing token")
			abort(c, http.StatusUnauthorized, "Authorization token missing")
			return
		}

		claims, err := verifier.Verify(raw)
		if err != nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.ID)
		if err != nil {
			log.Println("[AUTH] [ERROR] invalid id claim")
			abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := users.ResolveIdentity(c.Request.Context(), userID)
		if apperr.Is(err, apperr.NotFound) {
			log.Println("[AUTH] [ERROR] token names unknown user:", userID.Hex())
			abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		if err != nil {
			log.Println("[AUTH] [ERROR] identity lookup failed:", err)
			abort(c, http.StatusInternalServerError, "internal server error")
			return
		}

		identity := auth.IdentityFromUser(user)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by UserAuth.
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	return auth.FromContext(c.Request.Context())
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
