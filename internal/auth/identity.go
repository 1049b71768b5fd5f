package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID    primitive.ObjectID
	Name  string
	Email string
	Role  string
}

func IdentityFromUser(u models.User) Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Owns reports whether the identity created the resource owned by ownerID.
func (i Identity) Owns(ownerID primitive.ObjectID) bool {
	return !i.ID.IsZero() && i.ID == ownerID
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && !id.ID.IsZero()
}
