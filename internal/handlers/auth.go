package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/users"
)

type AccountService interface {
	Register(ctx context.Context, in users.RegisterInput) (users.Session, error)
	Login(ctx context.Context, email, password string) (users.Session, error)
}

const sessionCookie = "token"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// setSessionCookie mirrors the bearer token into an http-only cookie that
// expires with the token.
func setSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(ttl/time.Second), "/", "", false, true)
}

func Register(accounts AccountService, sessionTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		session, err := accounts.Register(c.Request.Context(), users.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		setSessionCookie(c, session.Token, sessionTTL)
		respondOK(c, http.StatusCreated, gin.H{"token": session.Token, "user": session.User})
	}
}

// Login answers 400 for missing fields and a single 401 for any credential
// mismatch.
func Login(accounts AccountService, sessionTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		session, err := accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondWithError(c, route, err)
			return
		}

		setSessionCookie(c, session.Token, sessionTTL)
		respondOK(c, http.StatusOK, gin.H{"token": session.Token, "user": session.User})
	}
}

// Logout clears the token cookie. Bearer tokens stay valid until they
// expire.
func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /logout"
		defer handlePanic(c, route)

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
		log.Println("[AUTH] [INFO] logout")
		respondOK(c, http.StatusOK, gin.H{"message": "Logged Out"})
	}
}

func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /me"
		defer handlePanic(c, route)

		identity, ok := requireIdentity(c, route)
		if !ok {
			return
		}

		respondOK(c, http.StatusOK, gin.H{"user": gin.H{
			"id":    identity.ID.Hex(),
			"name":  identity.Name,
			"email": identity.Email,
			"role":  identity.Role,
		}})
	}
}
