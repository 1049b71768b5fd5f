// Package users owns registration, login and identity resolution for the
// credential gate.
package users

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const minPasswordLength = 8

// Store is the identity persistence the service depends on. Lookups return
// an apperr NotFound when no user matches and Create returns an apperr
// Conflict when the email is taken.
type Store interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type TokenIssuer interface {
	Issue(user models.User) (string, error)
}

type Service struct {
	store    Store
	issuer   TokenIssuer
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store, issuer TokenIssuer) *Service {
	return &Service{
		store:    store,
		issuer:   issuer,
		validate: validator.New(),
		now:      time.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session is returned by Register and Login.
type Session struct {
	User  models.User
	Token string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	user, err := s.create(ctx, in, models.RoleUser)
	if err != nil {
		return Session{}, err
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	log.Println("[AUTH] [INFO] user registered:", user.ID.Hex())
	return Session{User: user, Token: token}, nil
}

// CreateAdmin provisions a privileged account. It is only reachable from the
// operator CLI, never from the HTTP API.
func (s *Service) CreateAdmin(ctx context.Context, in RegisterInput) (models.User, error) {
	user, err := s.create(ctx, in, models.RoleAdmin)
	if err != nil {
		return models.User{}, err
	}
	log.Println("[AUTH] [INFO] admin created:", user.ID.Hex())
	return user, nil
}

func (s *Service) create(ctx context.Context, in RegisterInput, role string) (models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return models.User{}, apperr.BadRequestf("Name, email and password are required")
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return models.User{}, apperr.BadRequestf("Please enter a valid email address")
	}
	if len(in.Password) < minPasswordLength {
		return models.User{}, apperr.BadRequestf("Password should have at least %d characters", minPasswordLength)
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return models.User{}, apperr.Conflictf("User with this email already exists")
	} else if !apperr.Is(err, apperr.NotFound) {
		return models.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

var errInvalidCredentials = apperr.New(apperr.Unauthorized, "Invalid email or password")

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperr.BadRequestf("Please enter email and password")
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			log.Println("[AUTH] [ERROR] login unknown email")
			return Session{}, errInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.Println("[AUTH] [ERROR] stored hash unusable for user:", user.ID.Hex())
		}
		return Session{}, errInvalidCredentials
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	log.Println("[AUTH] [INFO] user login succeeded:", user.ID.Hex())
	return Session{User: user, Token: token}, nil
}

// ResolveIdentity loads the user a verified token points at.
func (s *Service) ResolveIdentity(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.store.FindByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
